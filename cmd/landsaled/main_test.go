package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"landsale/config"
	"landsale/observability"
)

func TestResolveGenesisPath(t *testing.T) {
	env := map[string]string{genesisPathEnv: " /etc/landsale/genesis.json "}
	lookup := func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
	if got := resolveGenesisPath("./flag.json", lookup); got != "./flag.json" {
		t.Fatalf("flag should win, got %q", got)
	}
	if got := resolveGenesisPath("", lookup); got != "/etc/landsale/genesis.json" {
		t.Fatalf("expected env path, got %q", got)
	}
	if got := resolveGenesisPath("", func(string) (string, bool) { return "", false }); got != "" {
		t.Fatalf("expected no genesis, got %q", got)
	}
}

func TestOpenDatabaseBackends(t *testing.T) {
	for _, backend := range []string{config.BackendMemory, config.BackendBolt, config.BackendLevelDB} {
		cfg := &config.Config{DataDir: t.TempDir(), StorageBackend: backend}
		db, err := openDatabase(cfg)
		if err != nil {
			t.Fatalf("%s: open: %v", backend, err)
		}
		if err := db.Put([]byte("k"), []byte("v")); err != nil {
			t.Fatalf("%s: put: %v", backend, err)
		}
		got, err := db.Get([]byte("k"))
		if err != nil || string(got) != "v" {
			t.Fatalf("%s: get %q err=%v", backend, got, err)
		}
		db.Close()
	}
}

func TestMetricsServerExposesRegistry(t *testing.T) {
	observability.LandSale()
	srv := newMetricsServer("127.0.0.1:0")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "landsale_") {
		t.Fatalf("expected landsale metrics in scrape output")
	}
}
