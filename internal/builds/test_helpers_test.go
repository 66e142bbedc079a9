package builds

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type staticIDGenerator struct {
	ids   []string
	index int
}

func (g *staticIDGenerator) NewID() (string, error) {
	if g.index >= len(g.ids) {
		return "", errors.New("exhausted ids")
	}
	id := g.ids[g.index]
	g.index++
	return id, nil
}

func newTestService(t *testing.T, ids []string) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:buildshare_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&Build{}, &Vote{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	var provider IDProvider = NewHexIDProvider()
	if ids != nil {
		provider = &staticIDGenerator{ids: ids}
	}

	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: provider,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service, db
}

func validCreateRequest() CreateRequest {
	return CreateRequest{
		Name:               "Bulwark of the Vale",
		Description:        "Frontline tank with cleric support",
		PrimaryArchetype:   "tank",
		SecondaryArchetype: "cleric",
		Race:               "dunir",
		Level:              25,
		Skills:             []string{"shield bash", "consecrate"},
		Equipment:          map[string]string{"weapon": "tower shield"},
		IsPublic:           true,
	}
}

func mustCreate(t *testing.T, service *Service, request CreateRequest, owner string) Build {
	t.Helper()
	summary, err := service.Create(context.Background(), request, owner)
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	return summary.Build
}
