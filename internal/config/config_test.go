package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("ADMIN_IDS", "")
	t.Setenv("POST_LIMIT", "")
	t.Setenv("BULK_SEND_DELAY_SECONDS", "")
	t.Setenv("DB_PATH", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "bot.db" || cfg.PostLimit != 10 || cfg.BulkSendDelay != 5*time.Second {
		t.Errorf("defaults wrong: %+v", cfg)
	}
	if cfg.GroqBaseURL != "https://api.groq.com/openai/v1" {
		t.Errorf("groq base url = %q", cfg.GroqBaseURL)
	}
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without token")
	}
}

func TestLoadAdminIDs(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("ADMIN_IDS", "12, 34 ,56")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.AdminIDs) != 3 || cfg.AdminIDs[1] != 34 {
		t.Errorf("admin ids = %v", cfg.AdminIDs)
	}
	if !cfg.IsAdmin(56) || cfg.IsAdmin(99) {
		t.Error("IsAdmin misreports")
	}

	t.Setenv("ADMIN_IDS", "12,abc")
	if _, err := Load(); err == nil {
		t.Error("malformed ADMIN_IDS accepted")
	}
}

func TestForceModeToggle(t *testing.T) {
	var f ForceMode
	if f.Enabled() {
		t.Fatal("force mode should start off")
	}
	if !f.Toggle() {
		t.Error("first toggle should report on")
	}
	if f.Toggle() {
		t.Error("second toggle should report off")
	}
	f.Set(true)
	if !f.Enabled() {
		t.Error("Set(true) not observed")
	}
}
