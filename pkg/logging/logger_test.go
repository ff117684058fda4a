package logging

import "testing"

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		env     string
		wantErr bool
	}{
		{name: "info local", level: "info", env: "local"},
		{name: "debug production", level: "debug", env: "production"},
		{name: "warn", level: "warn", env: "staging"},
		{name: "bad level", level: "loud", env: "local", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.level, tt.env)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() failed: %v", err)
			}
			if logger == nil {
				t.Fatal("expected logger, got nil")
			}
			_ = logger.Sync()
		})
	}
}
