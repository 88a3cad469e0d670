package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("expected sqlite driver, got %q", cfg.Database.Driver)
	}
	if cfg.PubSub.Driver != "memory" {
		t.Fatalf("expected memory pubsub, got %q", cfg.PubSub.Driver)
	}
	if cfg.Chat.Driver != ChatDriverGorm {
		t.Fatalf("expected gorm chat driver, got %q", cfg.Chat.Driver)
	}
	if cfg.Cache.TTL != 30*time.Second {
		t.Fatalf("expected 30s cache ttl, got %s", cfg.Cache.TTL)
	}
	if cfg.WebSocket.PongWait != time.Minute {
		t.Fatalf("expected 60s pong wait, got %s", cfg.WebSocket.PongWait)
	}
	if len(cfg.PubSub.Kafka.Topics) != 2 {
		t.Fatalf("expected default kafka topics, got %v", cfg.PubSub.Kafka.Topics)
	}
	if cfg.Thumbnail.Width != 800 || cfg.Thumbnail.Height != 450 {
		t.Fatalf("unexpected thumbnail size %dx%d", cfg.Thumbnail.Width, cfg.Thumbnail.Height)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  port: 9000
chat:
  driver: cassandra
cache:
  ttl: 2m
embed:
  host: streams.example.com
`)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CASSANDRA_HOSTS", "c1:9042, c2:9042")
	t.Setenv("PUBSUB_DRIVER", "redis")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Fatalf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Chat.Driver != ChatDriverCassandra {
		t.Fatalf("expected cassandra driver, got %q", cfg.Chat.Driver)
	}
	if cfg.Cache.TTL != 2*time.Minute {
		t.Fatalf("expected 2m ttl, got %s", cfg.Cache.TTL)
	}
	if cfg.Embed.Host != "streams.example.com" {
		t.Fatalf("unexpected embed host %q", cfg.Embed.Host)
	}
	if cfg.PubSub.Driver != "redis" {
		t.Fatalf("expected redis pubsub from env, got %q", cfg.PubSub.Driver)
	}
	if len(cfg.Cassandra.Hosts) != 2 || cfg.Cassandra.Hosts[1] != "c2:9042" {
		t.Fatalf("unexpected cassandra hosts %v", cfg.Cassandra.Hosts)
	}
}
