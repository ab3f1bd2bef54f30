package main

import (
	"testing"
)

func TestCorsConfigWildcardWithoutCredentials(t *testing.T) {
	cfg := corsConfig("")
	if len(cfg.AllowOrigins) != 1 || cfg.AllowOrigins[0] != "*" {
		t.Fatalf("unexpected origins: %v", cfg.AllowOrigins)
	}
	if cfg.AllowCredentials {
		t.Fatal("a wildcard origin must never allow credentials")
	}
}

func TestCorsConfigExplicitOriginsEnableCredentials(t *testing.T) {
	cfg := corsConfig("https://board.example.com, https://staging.example.com")
	want := []string{"https://board.example.com", "https://staging.example.com"}
	if len(cfg.AllowOrigins) != len(want) {
		t.Fatalf("unexpected origins: %v", cfg.AllowOrigins)
	}
	for i, o := range want {
		if cfg.AllowOrigins[i] != o {
			t.Fatalf("origin %d: got %q, want %q", i, cfg.AllowOrigins[i], o)
		}
	}
	if !cfg.AllowCredentials {
		t.Fatal("explicit origins must allow the session cookie")
	}
}

func TestCorsConfigIgnoresEmptySegments(t *testing.T) {
	cfg := corsConfig(" , ,")
	if len(cfg.AllowOrigins) != 1 || cfg.AllowOrigins[0] != "*" {
		t.Fatalf("blank list must fall back to wildcard, got %v", cfg.AllowOrigins)
	}
	if cfg.AllowCredentials {
		t.Fatal("blank list must not allow credentials")
	}
}

func TestParseRedisOptionsURL(t *testing.T) {
	opts := parseRedisOptions("redis://:secret@cache.example.com:6380/1")
	if opts.Addr != "cache.example.com:6380" {
		t.Fatalf("unexpected addr: %s", opts.Addr)
	}
	if opts.Password != "secret" {
		t.Fatalf("unexpected password: %s", opts.Password)
	}
	if opts.DB != 1 {
		t.Fatalf("unexpected db: %d", opts.DB)
	}
}

func TestParseRedisOptionsCommaSeparated(t *testing.T) {
	opts := parseRedisOptions("cache.example.com:6380,password=secret,ssl=True")
	if opts.Addr != "cache.example.com:6380" {
		t.Fatalf("unexpected addr: %s", opts.Addr)
	}
	if opts.Password != "secret" {
		t.Fatalf("unexpected password: %s", opts.Password)
	}
	if opts.TLSConfig == nil {
		t.Fatal("ssl=True must enable TLS")
	}
}
