package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadFallsBackOnBadTTL(t *testing.T) {
	t.Setenv("SUMMARY_TTL_SECONDS", "not-a-number")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-1")

	cfg := Load()
	if cfg.SummaryTTLSeconds != 30 {
		t.Fatalf("expected default summary TTL 30, got %d", cfg.SummaryTTLSeconds)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected default token TTL 480, got %d", cfg.AccessTokenTTLMinutes)
	}
}
