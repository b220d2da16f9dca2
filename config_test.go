package xforms

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}
}

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name       string
		yaml       string
		want       func(*Config)
		wantFields []string
	}{
		{
			name: "empty keeps defaults",
			yaml: "",
			want: func(*Config) {},
		},
		{
			name: "overrides",
			yaml: "deferral_delay: 500ms\nignore_errors: true\nhighlight_depth_cycle: 2\nlog_prefix: \"form: \"\n",
			want: func(c *Config) {
				c.DeferralDelay = 500 * time.Millisecond
				c.IgnoreErrors = true
				c.HighlightDepthCycle = 2
				c.LogPrefix = "form: "
			},
		},
		{
			name:       "out of bounds",
			yaml:       "deferral_delay: 1m\nhighlight_depth_cycle: 0\nmax_message_size: 10\n",
			wantFields: []string{"deferraldelay", "highlightdepthcycle", "maxmessagesize"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(tt.yaml))
			if tt.wantFields != nil {
				var multi MultiError
				if !errors.As(err, &multi) {
					t.Fatalf("ParseConfig() error = %v, want MultiError", err)
				}
				var fields []string
				for _, fe := range multi {
					fields = append(fields, fe.Field)
				}
				if diff := cmp.Diff(tt.wantFields, fields); diff != "" {
					t.Errorf("invalid fields mismatch (-want +got):\n%s", diff)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseConfig() error = %v", err)
			}
			want := DefaultConfig()
			tt.want(want)
			if diff := cmp.Diff(want, cfg); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xforms.yaml")
	if err := os.WriteFile(path, []byte("session_ttl: 2h\nnormalize_markup: false\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.SessionTTL != 2*time.Hour || cfg.NormalizeMarkup {
		t.Errorf("LoadConfig() = %+v", cfg)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig() of a missing file succeeded")
	}
}

func TestParseConfigRejectsMalformedYAML(t *testing.T) {
	if _, err := ParseConfig([]byte("deferral_delay: [")); err == nil {
		t.Error("ParseConfig() accepted malformed YAML")
	}
}
