package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./animx.db" {
			t.Errorf("expected database path ./animx.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Provider.BaseURL != "https://dashscope.aliyuncs.com/api/v1" {
			t.Errorf("unexpected provider base URL %s", config.Provider.BaseURL)
		}

		if config.Polling.Interval() != 3*time.Second || config.Polling.MaxAttempts != 20 {
			t.Errorf("unexpected polling defaults %+v", config.Polling)
		}

		if config.Polling.RequestTimeout() != 120*time.Second {
			t.Errorf("expected 120s request timeout, got %s", config.Polling.RequestTimeout())
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[server]
host = "127.0.0.1"
port = 8080

[provider]
api_key = "sk-test"
edit_model = "custom-edit"

[polling]
interval_ms = 500
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Addr() != "127.0.0.1:8080" {
			t.Errorf("expected addr 127.0.0.1:8080, got %s", config.Server.Addr())
		}

		if config.Provider.EditModel != "custom-edit" || !config.HasCredentials() {
			t.Errorf("unexpected provider config %+v", config.Provider)
		}

		if config.Polling.Interval() != 500*time.Millisecond || config.Polling.MaxAttempts != 20 {
			t.Errorf("absent values should keep defaults, got %+v", config.Polling)
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		env := map[string]string{
			"DASHSCOPE_API_KEY": "sk-from-env",
			"PORT":              "9000",
			"MONGODB_URI":       "mongodb://db:27017",
			"LOG_LEVEL":         "debug",
		}
		lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

		config := DefaultConfig()
		if err := config.ApplyEnv(lookup); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if config.Provider.APIKey != "sk-from-env" || config.Server.Port != 9000 {
			t.Errorf("env not applied: %+v %+v", config.Provider, config.Server)
		}
		if config.Auth.MongoURI != "mongodb://db:27017" || config.Log.Level != "debug" {
			t.Errorf("env not applied: %+v %+v", config.Auth, config.Log)
		}

		env["PORT"] = "abc"
		if err := config.ApplyEnv(lookup); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("LoadEnv ignores a missing file", func(t *testing.T) {
		if err := LoadEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("LoadEnv reads variables", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(path, []byte("ANIMX_TEST_LOADENV=yes\n"), 0644); err != nil {
			t.Fatal(err)
		}
		t.Setenv("ANIMX_TEST_LOADENV", "")
		os.Unsetenv("ANIMX_TEST_LOADENV")

		if err := LoadEnv(path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if os.Getenv("ANIMX_TEST_LOADENV") != "yes" {
			t.Errorf("expected variable to be loaded")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		t.Run("budget must fit the request timeout", func(t *testing.T) {
			config := DefaultConfig()
			config.Polling.MaxAttempts = 60
			if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})

		t.Run("non-positive polling values", func(t *testing.T) {
			config := DefaultConfig()
			config.Polling.IntervalMS = 0
			if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})

		t.Run("placeholder token secret", func(t *testing.T) {
			config := DefaultConfig()
			config.Auth.JWTSecret = "change-me"
			if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}

			config.Auth.Backend = "none"
			if err := config.Validate(); err != nil {
				t.Errorf("placeholder should be ignored without auth, got %v", err)
			}
		})

		t.Run("mongo backend requires a URI", func(t *testing.T) {
			config := DefaultConfig()
			config.Auth.Backend = "mongo"
			config.Auth.MongoURI = ""
			if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	})

	t.Run("EnsureJWTSecret", func(t *testing.T) {
		t.Run("default secret is empty", func(t *testing.T) {
			if secret := DefaultConfig().Auth.JWTSecret; secret != "" {
				t.Errorf("expected no default secret, got %q", secret)
			}
		})

		t.Run("generates a random secret", func(t *testing.T) {
			a, b := DefaultConfig(), DefaultConfig()
			if !a.EnsureJWTSecret() || !b.EnsureJWTSecret() {
				t.Fatal("expected secrets to be generated")
			}
			if len(a.Auth.JWTSecret) < 16 || a.Auth.JWTSecret == b.Auth.JWTSecret {
				t.Errorf("expected distinct random secrets, got %q and %q", a.Auth.JWTSecret, b.Auth.JWTSecret)
			}
			if err := a.Validate(); err != nil {
				t.Errorf("generated secret should validate: %v", err)
			}
		})

		t.Run("keeps a configured secret", func(t *testing.T) {
			config := DefaultConfig()
			config.Auth.JWTSecret = "s3cret-from-env"
			if config.EnsureJWTSecret() || config.Auth.JWTSecret != "s3cret-from-env" {
				t.Errorf("configured secret was replaced with %q", config.Auth.JWTSecret)
			}
		})

		t.Run("auth disabled", func(t *testing.T) {
			config := DefaultConfig()
			config.Auth.Backend = "none"
			if config.EnsureJWTSecret() || config.Auth.JWTSecret != "" {
				t.Error("expected no secret without an auth backend")
			}
		})
	})
}
