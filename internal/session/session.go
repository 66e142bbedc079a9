// Package session resolves the anonymous identity attached to every request.
//
// Identities are opaque capability tokens of the form "sess_" + 24 hex
// characters. The server never records which tokens it issued; validity is
// purely syntactic, so any client that has seen a token can present it.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"

	"github.com/gin-gonic/gin"
)

// Header carries the session identity on both requests and responses.
const Header = "X-Session-ID"

const (
	prefix     = "sess_"
	tokenBytes = 12
	contextKey = "buildshare_session_id"
)

var pattern = regexp.MustCompile(`^sess_[0-9a-f]{24}$`)

// Generate mints a new session identity from cryptographically random bytes.
func Generate() string {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		// crypto/rand failure means the process has no usable entropy source.
		panic(err)
	}
	return prefix + hex.EncodeToString(raw)
}

// Valid reports whether the value is a syntactically well-formed identity.
func Valid(value string) bool {
	return pattern.MatchString(value)
}

// Middleware resolves the request identity: a well-formed X-Session-ID header
// is reused as-is, anything else is replaced by a freshly minted identity.
// The resolved identity is always echoed on the response header so clients
// can persist tokens they were just issued. Resolution cannot fail.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.GetHeader(Header)
		if !Valid(identity) {
			identity = Generate()
		}
		c.Set(contextKey, identity)
		c.Writer.Header().Set(Header, identity)
		c.Next()
	}
}

// FromContext returns the identity resolved by Middleware. It is empty only
// when the middleware did not run, which is a wiring bug.
func FromContext(c *gin.Context) string {
	return c.GetString(contextKey)
}
