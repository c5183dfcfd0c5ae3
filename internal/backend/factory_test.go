package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cassa/internal/config"
	"cassa/internal/core"
	"cassa/internal/storage"
	"cassa/internal/storage/memory"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("nil config must fail")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Fatal("unknown backend must fail")
	}

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:    "sqlite",
		SQLiteDBPath:   "/tmp/x.db",
		AMQPURL:        "amqp://localhost/",
		AMQPExchange:   "cassa",
		AMQPQueue:      "ledger_events",
		RedisAddr:      "localhost:6379",
		ReportCacheTTL: time.Minute,
		ReportCacheMax: 8,
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "/tmp/x.db" || cfg.RedisAddr != "localhost:6379" || cfg.ReportCacheMax != 8 {
		t.Errorf("unexpected backend config %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "a.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"unknown type", Config{Type: "sheets"}, true},
		{"amqp without queue", Config{Type: MemoryBackend, AMQPURL: "amqp://x/", AMQPExchange: "e"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := GetBackendTypeStrings()
	if len(got) != 2 || got[0] != "sqlite" || got[1] != "memory" {
		t.Errorf("GetBackendTypeStrings() = %v", got)
	}
}

func TestCreateMemoryBackendFallsBackFromRedis(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := NewFactory(nil).CreateBackend(ctx, Config{
		Type:      MemoryBackend,
		RedisAddr: "127.0.0.1:1",
	})
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()

	if _, ok := res.Backend.Store.(*memory.Store); !ok {
		t.Fatalf("store = %T, want *memory.Store", res.Backend.Store)
	}
	if res.Backend.Memo == nil || res.Backend.Events != nil {
		t.Fatalf("unexpected backend %+v", res.Backend)
	}

	svc := res.LedgerService()
	if _, err := svc.Onboard(ctx, "owner-1", "Bar", core.Restaurant); err != nil {
		t.Fatal(err)
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "cassa.db")

	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := res.Backend.Store.(*storage.SQLiteRepository); !ok {
		t.Fatalf("store = %T, want *storage.SQLiteRepository", res.Backend.Store)
	}

	svc := res.LedgerService()
	if err := svc.Ping(ctx); err != nil {
		t.Fatalf("Ping() = %v", err)
	}
	if err := res.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
}

func TestNilResultClose(t *testing.T) {
	var res *BackendResult
	if err := res.Close(); err != nil {
		t.Fatal(err)
	}
}
