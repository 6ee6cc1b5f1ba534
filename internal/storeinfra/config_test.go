package storeinfra

import "testing"

func TestSQLConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		cfg       SQLConfig
		wantError bool
	}{
		{name: "valid", cfg: SQLConfig{Dialect: DialectSQLite, DSN: "file:test.db", EntityPath: "widgets"}},
		{name: "missing DSN", cfg: SQLConfig{EntityPath: "widgets"}, wantError: true},
		{name: "missing EntityPath", cfg: SQLConfig{DSN: "file:test.db"}, wantError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantError && err == nil {
				t.Fatal("expected a validation error")
			}
			if !tt.wantError && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestStoreConfigValidate(t *testing.T) {
	t.Run("memory engine ignores an empty SQL config", func(t *testing.T) {
		cfg := StoreConfig{Engine: EngineMemory}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("SQL engine requires a valid SQLConfig", func(t *testing.T) {
		cfg := StoreConfig{Engine: EngineSQL}
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected an error for an unset SQLConfig")
		}

		cfg.SQL = SQLConfig{Dialect: DialectSQLite, DSN: "file:test.db", EntityPath: "widgets"}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("an invalid ReadThrough config fails validation", func(t *testing.T) {
		bad := Config{Capacity: 0, NumShards: 256, TTL: 0, EvictionPercentage: 10}
		cfg := StoreConfig{Engine: EngineMemory, ReadThrough: &bad}
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected an error from the nested ReadThrough config")
		}
	})
}
