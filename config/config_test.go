package config

import (
	"testing"
	"time"
)

func TestLoadFallbacks(t *testing.T) {
	for _, k := range []string{"PORT", "MONGO_URI", "DB", "JWT_SECRET", "TOKEN_TTL", "REDIS_ADDR", "ML_SERVICE_URL", "CORS_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.Port != "5000" {
		t.Errorf("Port = %q, want 5000", cfg.Port)
	}
	if cfg.DBName != "agrirent" {
		t.Errorf("DBName = %q", cfg.DBName)
	}
	if cfg.TokenTTL != 7*24*time.Hour {
		t.Errorf("TokenTTL = %s", cfg.TokenTTL)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want empty", cfg.RedisAddr)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ML_TIMEOUT", "3s")
	t.Setenv("LOCK_TTL", "not-a-duration")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.MLTimeout != 3*time.Second {
		t.Errorf("MLTimeout = %s", cfg.MLTimeout)
	}
	if cfg.LockTTL != 10*time.Second {
		t.Errorf("LockTTL = %s, want fallback", cfg.LockTTL)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}
