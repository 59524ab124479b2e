package config

import "testing"

func TestValidate_InvalidSink(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Addrs: []string{"localhost:6379"},
		},
		Notify: NotifyConfig{Sink: "carrier-pigeon"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid sink")
	}

	expected := `notify.sink must be "stream" or "log", got "carrier-pigeon"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ValidSinks(t *testing.T) {
	for _, s := range []string{"stream", "log"} {
		t.Run("sink="+s, func(t *testing.T) {
			cfg := Config{
				HTTP: HTTPConfig{Port: 8080},
				Database: DatabaseConfig{
					Addrs: []string{"localhost:6379"},
				},
				Notify: NotifyConfig{Sink: s},
			}

			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for valid sink %q: %v", s, err)
			}
		})
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{Port: 0},
		Database: DatabaseConfig{
			Addrs: []string{"localhost:6379"},
		},
		Notify: NotifyConfig{Sink: "stream"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingDatabaseAddrs(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Addrs: []string{},
		},
		Notify: NotifyConfig{Sink: "stream"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 10 {
		t.Errorf("expected WriteTimeoutSec=10, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.Engine.Workers != 4 {
		t.Errorf("expected Workers=4, got %d", cfg.Engine.Workers)
	}
	if cfg.Engine.QueueSize != 1024 {
		t.Errorf("expected QueueSize=1024, got %d", cfg.Engine.QueueSize)
	}
	if cfg.Ledger.TTLDays != 30 {
		t.Errorf("expected TTLDays=30, got %d", cfg.Ledger.TTLDays)
	}
	if cfg.Criteria.BatchSize != 100 {
		t.Errorf("expected BatchSize=100, got %d", cfg.Criteria.BatchSize)
	}
	if cfg.Criteria.BlockSec != 5 {
		t.Errorf("expected BlockSec=5, got %d", cfg.Criteria.BlockSec)
	}
	if cfg.Notify.Sink != "stream" {
		t.Errorf("expected Sink='stream', got %q", cfg.Notify.Sink)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database: DatabaseConfig{ReadinessTimeout: 15},
		Engine:   EngineConfig{Workers: 8, QueueSize: 64},
		Ledger:   LedgerConfig{TTLDays: 7},
		Notify:   NotifyConfig{Sink: "log"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Engine.Workers != 8 {
		t.Errorf("expected Workers=8, got %d", cfg.Engine.Workers)
	}
	if cfg.Ledger.TTLDays != 7 {
		t.Errorf("expected TTLDays=7, got %d", cfg.Ledger.TTLDays)
	}
	if cfg.Notify.Sink != "log" {
		t.Errorf("expected Sink='log', got %q", cfg.Notify.Sink)
	}
}

func TestApplyDefaults_LedgerNoExpiry(t *testing.T) {
	cfg := Config{Ledger: LedgerConfig{TTLDays: -1}}
	cfg.ApplyDefaults()

	if cfg.Ledger.TTLDays != -1 {
		t.Errorf("expected TTLDays=-1 preserved, got %d", cfg.Ledger.TTLDays)
	}
}
