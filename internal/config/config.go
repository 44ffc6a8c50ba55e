// Package config holds the small set of process-wide knobs a CTAP2 client
// embedder may want to override: debug logging and which authenticator
// transports to probe. There is no daemon config file; overrides come from
// explicit Options and the FIDO_DEBUG environment variable.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Flags is the resolved configuration a caller embeds the library with.
type Flags struct {
	// Debug enables verbose protocol-level logging (raw CTAPHID frames,
	// full CBOR request/response dumps). Overridable via FIDO_DEBUG.
	Debug bool `koanf:"debug"`

	// UseHidapi enables probing USB HID authenticators.
	UseHidapi bool `koanf:"use_hidapi"`

	// UseNfc enables probing NFC authenticators.
	UseNfc bool `koanf:"use_nfc"`

	// UseWinhello enables routing through the platform's Windows Hello
	// authenticator instead of a discrete device.
	UseWinhello bool `koanf:"use_winhello"`
}

// DefaultFlags returns the library's defaults: HID probing on, everything
// else off.
func DefaultFlags() *Flags {
	return &Flags{
		Debug:       false,
		UseHidapi:   true,
		UseNfc:      false,
		UseWinhello: false,
	}
}

// Option mutates Flags during Load, applied after defaults and the
// environment.
type Option func(*Flags)

// WithDebug forces the Debug bit regardless of environment.
func WithDebug(debug bool) Option {
	return func(f *Flags) { f.Debug = debug }
}

// WithTransports selects which authenticator transports to probe.
func WithTransports(hidapi, nfc, winhello bool) Option {
	return func(f *Flags) {
		f.UseHidapi = hidapi
		f.UseNfc = nfc
		f.UseWinhello = winhello
	}
}

// envPrefix is the environment variable prefix for overrides, e.g.
// FIDO_DEBUG, FIDO_USE_NFC.
const envPrefix = "FIDO_"

// Load merges DefaultFlags, environment variable overrides (FIDO_ prefix),
// and opts, in that order. The result is not validated.
func Load(opts ...Option) (*Flags, error) {
	k := koanf.New(".")

	defaults := DefaultFlags()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("config: load env overrides: %w", err)
	}

	flags := &Flags{}
	if err := k.Unmarshal("", flags); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	for _, opt := range opts {
		opt(flags)
	}

	return flags, nil
}

// envKeyMapper transforms FIDO_USE_NFC -> use_nfc, matching the koanf
// struct tag on Flags directly (the struct is flat, so no dot-path
// translation is needed).
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	return strings.ToLower(s)
}

func loadDefaults(k *koanf.Koanf, defaults *Flags) error {
	defaultMap := map[string]any{
		"debug":        defaults.Debug,
		"use_hidapi":   defaults.UseHidapi,
		"use_nfc":      defaults.UseNfc,
		"use_winhello": defaults.UseWinhello,
	}
	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}
	return nil
}

// ParseBool parses truthy strings ("1", "true", "yes", "on",
// case-insensitive), defaulting to false for anything else including an
// empty string. Load does not call it: environment values reach Flags
// through koanf's unmarshalling.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return false
}
