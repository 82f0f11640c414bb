package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ryoda0314/tutoring-app-sub000/config"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: 5s

database:
  driver: "sqlite"
  dsn: ":memory:"

billing:
  confirmation_day: 15
  payment_due_day: 27
  credit_validity_months: 2
  timezone: "Asia/Tokyo"

locking:
  mode: "redis"
  redis_addr: "localhost:6379"
  ttl: 3s

metrics:
  enabled: true
`

	cfg := writeAndLoad(t, content)

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Host = %s, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.Addr() != "127.0.0.1:9090" {
		t.Errorf("Addr = %s, want 127.0.0.1:9090", cfg.Server.Addr())
	}
	if cfg.Billing.ConfirmationDay != 15 || cfg.Billing.PaymentDueDay != 27 {
		t.Errorf("Billing days = %d/%d, want 15/27", cfg.Billing.ConfirmationDay, cfg.Billing.PaymentDueDay)
	}
	if cfg.Locking.Mode != "redis" || cfg.Locking.TTL != 3*time.Second {
		t.Errorf("Locking = %+v", cfg.Locking)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}

	pc, err := cfg.PeriodConfig()
	if err != nil {
		t.Fatalf("PeriodConfig error: %v", err)
	}
	if pc.ConfirmationDay != 15 || pc.PaymentDueDay != 27 || pc.CreditValidityMonths != 2 {
		t.Errorf("PeriodConfig = %+v", pc)
	}
	if pc.Location.String() != "Asia/Tokyo" {
		t.Errorf("Location = %s, want Asia/Tokyo", pc.Location)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := writeAndLoad(t, "logging:\n  level: info\n")

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default Host = %s, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "tutorbill.db" {
		t.Errorf("default Database = %+v", cfg.Database)
	}
	if cfg.Billing.ConfirmationDay != 20 {
		t.Errorf("default ConfirmationDay = %d, want 20", cfg.Billing.ConfirmationDay)
	}
	if cfg.Billing.PaymentDueDay != 25 {
		t.Errorf("default PaymentDueDay = %d, want 25", cfg.Billing.PaymentDueDay)
	}
	if cfg.Billing.CreditValidityMonths != 1 {
		t.Errorf("default CreditValidityMonths = %d, want 1", cfg.Billing.CreditValidityMonths)
	}
	if cfg.Billing.Timezone != "UTC" {
		t.Errorf("default Timezone = %s, want UTC", cfg.Billing.Timezone)
	}
	if cfg.Locking.Mode != "memory" {
		t.Errorf("default Locking.Mode = %s, want memory", cfg.Locking.Mode)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("default Logging.Format = %s, want json", cfg.Logging.Format)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("default Metrics.Path = %s, want /metrics", cfg.Metrics.Path)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_TUTORBILL_DSN", "/var/lib/tutorbill/test.db")

	cfg := writeAndLoad(t, `
database:
  dsn: "${TEST_TUTORBILL_DSN}"
`)

	if cfg.Database.DSN != "/var/lib/tutorbill/test.db" {
		t.Errorf("DSN = %s, want expanded value", cfg.Database.DSN)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "confirmation day past 28",
			content: "billing:\n  confirmation_day: 31\n",
			want:    "confirmation day",
		},
		{
			name:    "negative payment due day",
			content: "billing:\n  payment_due_day: -1\n",
			want:    "payment due day",
		},
		{
			name:    "negative validity",
			content: "billing:\n  credit_validity_months: -2\n",
			want:    "credit validity",
		},
		{
			name:    "unknown timezone",
			content: "billing:\n  timezone: \"Mars/Olympus\"\n",
			want:    "billing.timezone",
		},
		{
			name:    "unknown driver",
			content: "database:\n  driver: \"mysql\"\n",
			want:    "database.driver",
		},
		{
			name:    "postgres without dsn",
			content: "database:\n  driver: \"postgres\"\n",
			want:    "database.dsn",
		},
		{
			name:    "unknown lock mode",
			content: "locking:\n  mode: \"etcd\"\n",
			want:    "locking.mode",
		},
		{
			name:    "redis without address",
			content: "locking:\n  mode: \"redis\"\n",
			want:    "locking.redis_addr",
		},
		{
			name:    "bad log format",
			content: "logging:\n  format: \"xml\"\n",
			want:    "logging.format",
		},
		{
			name:    "relative metrics path",
			content: "metrics:\n  path: \"metrics\"\n",
			want:    "metrics.path",
		},
		{
			name:    "port out of range",
			content: "server:\n  port: 70000\n",
			want:    "server.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := writeAndLoadErr(t, tt.content)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TUTORBILL_SERVER_PORT", "9999")
	t.Setenv("TUTORBILL_DATABASE_DRIVER", "postgres")
	t.Setenv("TUTORBILL_DATABASE_DSN", "postgres://localhost/tutorbill?sslmode=disable")
	t.Setenv("TUTORBILL_CONFIRMATION_DAY", "18")
	t.Setenv("TUTORBILL_PAYMENT_DUE_DAY", "28")
	t.Setenv("TUTORBILL_CREDIT_VALIDITY_MONTHS", "3")
	t.Setenv("TUTORBILL_TIMEZONE", "Asia/Tokyo")
	t.Setenv("TUTORBILL_LOCK_MODE", "redis")
	t.Setenv("TUTORBILL_REDIS_ADDR", "redis:6379")
	t.Setenv("TUTORBILL_REDIS_DB", "2")
	t.Setenv("TUTORBILL_LOG_LEVEL", "debug")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Database.Driver = %s, want postgres", cfg.Database.Driver)
	}
	if cfg.Billing.ConfirmationDay != 18 || cfg.Billing.PaymentDueDay != 28 || cfg.Billing.CreditValidityMonths != 3 {
		t.Errorf("Billing = %+v", cfg.Billing)
	}
	if cfg.Locking.RedisAddr != "redis:6379" || cfg.Locking.RedisDB != 2 {
		t.Errorf("Locking = %+v", cfg.Locking)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %s, want debug", cfg.Logging.Level)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true by default from env")
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	t.Setenv("TUTORBILL_CONFIRMATION_DAY", "30")

	if _, err := config.LoadFromEnv(); err == nil {
		t.Fatal("expected error for confirmation day 30")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("TUTORBILL_SERVER_PORT", "7777")
	t.Setenv("TUTORBILL_PAYMENT_DUE_DAY", "10")
	t.Setenv("TUTORBILL_METRICS_ENABLED", "off")

	cfg := writeAndLoad(t, `
server:
  port: 8000
billing:
  payment_due_day: 25
metrics:
  enabled: true
`)

	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want 7777 (env override)", cfg.Server.Port)
	}
	if cfg.Billing.PaymentDueDay != 10 {
		t.Errorf("PaymentDueDay = %d, want 10 (env override)", cfg.Billing.PaymentDueDay)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true, want false (env override)")
	}
}

func TestEnvOverrides_InvalidIntegers(t *testing.T) {
	t.Setenv("TUTORBILL_SERVER_PORT", "not-a-port")
	t.Setenv("TUTORBILL_CONFIRMATION_DAY", "twenty")
	t.Setenv("TUTORBILL_SERVER_READ_TIMEOUT", "soon")

	cfg := writeAndLoad(t, "server:\n  port: 8081\n")

	if cfg.Server.Port != 8081 {
		t.Errorf("Server.Port = %d, want 8081 (invalid env ignored)", cfg.Server.Port)
	}
	if cfg.Billing.ConfirmationDay != 20 {
		t.Errorf("ConfirmationDay = %d, want default 20", cfg.Billing.ConfirmationDay)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("ReadTimeout = %v, want default 30s", cfg.Server.ReadTimeout)
	}
}

func TestLoadWithFallback(t *testing.T) {
	t.Run("file exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		if err := os.WriteFile(path, []byte("server:\n  port: 8123\n"), 0644); err != nil {
			t.Fatalf("write config: %v", err)
		}

		cfg, err := config.LoadWithFallback(path)
		if err != nil {
			t.Fatalf("LoadWithFallback error: %v", err)
		}
		if cfg.Server.Port != 8123 {
			t.Errorf("Server.Port = %d, want 8123", cfg.Server.Port)
		}
	})

	t.Run("missing file uses env", func(t *testing.T) {
		t.Setenv("TUTORBILL_SERVER_PORT", "8124")

		cfg, err := config.LoadWithFallback(filepath.Join(t.TempDir(), "absent.yaml"))
		if err != nil {
			t.Fatalf("LoadWithFallback error: %v", err)
		}
		if cfg.Server.Port != 8124 {
			t.Errorf("Server.Port = %d, want 8124", cfg.Server.Port)
		}
	})

	t.Run("empty path uses env", func(t *testing.T) {
		cfg, err := config.LoadWithFallback("")
		if err != nil {
			t.Fatalf("LoadWithFallback error: %v", err)
		}
		if cfg.Database.Driver != "sqlite" {
			t.Errorf("Database.Driver = %s, want sqlite", cfg.Database.Driver)
		}
	})
}

func TestParseBoolValues(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{" on ", true},
		{"false", false},
		{"0", false},
		{"off", false},
		{"maybe", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TUTORBILL_METRICS_ENABLED", tt.value)
			cfg, err := config.LoadFromEnv()
			if err != nil {
				t.Fatalf("LoadFromEnv error: %v", err)
			}
			if cfg.Metrics.Enabled != tt.want {
				t.Errorf("Metrics.Enabled for %q = %v, want %v", tt.value, cfg.Metrics.Enabled, tt.want)
			}
		})
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := writeAndLoadErr(t, "server: [unclosed")
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

// Helpers

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := writeAndLoadErr(t, content)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return cfg
}

func writeAndLoadErr(t *testing.T, content string) (*config.Config, error) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return config.Load(path)
}
