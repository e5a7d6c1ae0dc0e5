package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_DRIVER", "PUBLIC_BASE_URL", "SMTP_HOST", "SITE_LANG", "DEV", "SESSION_TTL_HOURS"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.Server.Port != "8080" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("driver = %q", cfg.Database.Driver)
	}
	if cfg.SMTP.Enabled() {
		t.Error("SMTP enabled without host")
	}
	if cfg.Session.TTLHours != 336 {
		t.Errorf("session ttl = %d", cfg.Session.TTLHours)
	}
	if cfg.Site.Lang != "fr" {
		t.Errorf("lang = %q", cfg.Site.Lang)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_SQLITE_PATH", "/tmp/q.db")
	t.Setenv("PUBLIC_BASE_URL", "https://shop.example.com/")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("SERVER_READ_TIMEOUT", "not-a-number")

	cfg := Load()
	if cfg.Server.Port != "9000" || cfg.Server.ReadTimeout != 15 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.SQLitePath != "/tmp/q.db" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.App.BaseURL != "https://shop.example.com" {
		t.Errorf("base url = %q", cfg.App.BaseURL)
	}
	if !cfg.SMTP.Enabled() || cfg.SMTP.Port != 2525 {
		t.Errorf("smtp = %+v", cfg.SMTP)
	}
	if !cfg.App.LogPretty {
		t.Error("LOG_PRETTY=yes not honoured")
	}
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.Database.Driver = "mysql"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "DB_DRIVER") {
		t.Errorf("err = %v", err)
	}

	cfg = Load()
	cfg.App.Dev = false
	cfg.Session.Secret = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "SESSION_SECRET") {
		t.Errorf("err = %v", err)
	}

	cfg = Load()
	cfg.SMTP.Host = "smtp.example.com"
	cfg.SMTP.From = ""
	if err := cfg.Validate(); err == nil {
		t.Error("missing SMTP_FROM accepted")
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "quotes", SSLMode: "disable"}
	if got := d.DSN(); got != "host=db port=5432 user=u password=p dbname=quotes sslmode=disable" {
		t.Errorf("DSN = %q", got)
	}
	if got := d.URL(); got != "postgres://u:p@db:5432/quotes?sslmode=disable" {
		t.Errorf("URL = %q", got)
	}
}
