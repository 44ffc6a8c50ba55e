package config_test

import (
	"testing"

	"github.com/dantte-lp/goctap/internal/config"
)

func TestDefaultFlags(t *testing.T) {
	t.Parallel()

	f := config.DefaultFlags()

	if f.Debug {
		t.Error("DefaultFlags().Debug = true, want false")
	}
	if !f.UseHidapi {
		t.Error("DefaultFlags().UseHidapi = false, want true")
	}
	if f.UseNfc {
		t.Error("DefaultFlags().UseNfc = true, want false")
	}
	if f.UseWinhello {
		t.Error("DefaultFlags().UseWinhello = true, want false")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	f, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if f.Debug {
		t.Error("Load().Debug = true, want false")
	}
	if !f.UseHidapi {
		t.Error("Load().UseHidapi = false, want true")
	}
}

func TestLoadEnvOverridesDebug(t *testing.T) {
	t.Setenv("FIDO_DEBUG", "true")

	f, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !f.Debug {
		t.Error("Load().Debug = false, want true (from FIDO_DEBUG)")
	}
}

func TestLoadEnvOverridesTransports(t *testing.T) {
	t.Setenv("FIDO_USE_NFC", "true")
	t.Setenv("FIDO_USE_HIDAPI", "false")

	f, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !f.UseNfc {
		t.Error("Load().UseNfc = false, want true (from FIDO_USE_NFC)")
	}
	if f.UseHidapi {
		t.Error("Load().UseHidapi = true, want false (from FIDO_USE_HIDAPI)")
	}
}

func TestLoadOptionsOverrideEnv(t *testing.T) {
	t.Setenv("FIDO_DEBUG", "true")

	f, err := config.Load(config.WithDebug(false))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if f.Debug {
		t.Error("Load(WithDebug(false)).Debug = true, want false")
	}
}

func TestWithTransports(t *testing.T) {
	t.Parallel()

	f, err := config.Load(config.WithTransports(false, true, true))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if f.UseHidapi {
		t.Error("UseHidapi = true, want false")
	}
	if !f.UseNfc {
		t.Error("UseNfc = false, want true")
	}
	if !f.UseWinhello {
		t.Error("UseWinhello = false, want true")
	}
}

func TestParseBool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"yes", true},
		{"on", true},
		{"0", false},
		{"false", false},
		{"no", false},
		{"", false},
		{"garbage", false},
	}

	for _, tt := range tests {
		if got := config.ParseBool(tt.input); got != tt.want {
			t.Errorf("ParseBool(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
