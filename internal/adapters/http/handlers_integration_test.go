//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	handler "github.com/samirrijal/murmur/internal/adapters/http"
	"github.com/samirrijal/murmur/internal/adapters/postgres"
	"github.com/samirrijal/murmur/internal/core/domain"
	"github.com/samirrijal/murmur/internal/core/usecases"
	"github.com/samirrijal/murmur/internal/pkg/config"
)

// setupTestDB connects to the test database and applies migrations.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("murmur-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	if err := postgres.Migrate(ctx, db, "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// setupTestDeps creates dependencies with the real location log, no cache.
func setupTestDeps(t *testing.T, db *postgres.DB) *handler.Dependencies {
	repo := postgres.NewLocationRepo(db)
	return &handler.Dependencies{
		Density: usecases.NewDensityService(repo, nil, nil),
		Paths:   usecases.NewPathService(repo, 0),
		DB:      db,
	}
}

func TestIntegration_Ready(t *testing.T) {
	db := setupTestDB(t)
	app := setupApp(setupTestDeps(t, db))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/ready", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestIntegration_RecordAndQueryDensity(t *testing.T) {
	db := setupTestDB(t)
	app := setupApp(setupTestDeps(t, db))

	// A corner of the Pacific no other test writes to.
	lat, lon := -47.5+float64(time.Now().UnixNano()%1000)/10000, -140.25
	user := "it-" + uuid.NewString()

	var cell string
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/v1/pings",
			strings.NewReader(fmt.Sprintf(`{"lat":%f,"lon":%f}`, lat, lon)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(handler.HeaderUser, user)
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != 201 {
			t.Fatalf("expected 201, got %d", resp.StatusCode)
		}
		var ping domain.LocationPing
		json.NewDecoder(resp.Body).Decode(&ping)
		cell = ping.Cell
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/density/"+cell, nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var d domain.Density
	json.NewDecoder(resp.Body).Decode(&d)
	if d.Count < 2 {
		t.Errorf("expected at least 2 pings in %s, got %d", cell, d.Count)
	}

	day := time.Now().UTC().Format(usecases.DayLayout)
	req := httptest.NewRequest("GET", "/v1/users/"+user+"/path?date="+day, nil)
	req.Header.Set(handler.HeaderUser, user)
	resp, _ = app.Test(req, -1)
	var path domain.UserPath
	json.NewDecoder(resp.Body).Decode(&path)
	if len(path.Points) != 2 {
		t.Errorf("expected 2 path points, got %d", len(path.Points))
	}
}

func TestIntegration_CountEmptyCell(t *testing.T) {
	db := setupTestDB(t)
	repo := postgres.NewLocationRepo(db)

	ctx := context.Background()
	n, err := repo.CountMatching(ctx, "zzzzzz", time.Now().Add(-usecases.DefaultWindow))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("expected an empty cell, got %d", n)
	}
}
