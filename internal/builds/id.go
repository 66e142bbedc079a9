package builds

import (
	"crypto/rand"
	"encoding/hex"
)

// IDProvider issues new build identifiers.
type IDProvider interface {
	NewID() (string, error)
}

type hexIDProvider struct{}

// NewHexIDProvider constructs an IDProvider issuing "b_" + 8 hex character
// identifiers from crypto/rand.
func NewHexIDProvider() IDProvider {
	return &hexIDProvider{}
}

func (p *hexIDProvider) NewID() (string, error) {
	raw := make([]byte, 4)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return "b_" + hex.EncodeToString(raw), nil
}
