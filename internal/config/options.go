package config

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Option keys as the host's settings page stores them.
const (
	OptAPIURL            = PluginName + "_api_url"
	OptAPITimeout        = PluginName + "_api_timeout"
	OptClientID          = PluginName + "_api_client_id"
	OptSecretKey         = PluginName + "_api_secret_key"
	OptSSOURL            = PluginName + "_sso_url"
	OptSSOKey            = PluginName + "_sso_key"
	OptSSOIV             = PluginName + "_sso_iv"
	OptProvisionInterval = PluginName + "_provision_interval"
)

// OptionGetter is the read side of an options store.
type OptionGetter interface {
	Get(ctx context.Context, key string) (string, bool, error)
}

// ApplyOptions overlays host-managed settings onto cfg. Keys that are absent
// or empty keep the value already loaded from the environment.
func ApplyOptions(ctx context.Context, cfg Config, opts OptionGetter) (Config, error) {
	if opts == nil {
		return cfg, nil
	}

	str := func(key string, dst *string) error {
		v, ok, err := opts.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("config: read option %s: %w", key, err)
		}
		if ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
		return nil
	}
	secs := func(key string, dst *time.Duration) error {
		var raw string
		if err := str(key, &raw); err != nil {
			return err
		}
		if raw == "" {
			return nil
		}
		d, ok := parseSeconds(raw)
		if !ok {
			return fmt.Errorf("config: option %s: invalid seconds %q", key, raw)
		}
		*dst = d
		return nil
	}

	steps := []func() error{
		func() error { return str(OptAPIURL, &cfg.APIBaseURL) },
		func() error { return secs(OptAPITimeout, &cfg.APITimeout) },
		func() error { return str(OptClientID, &cfg.ClientID) },
		func() error { return str(OptSecretKey, &cfg.SecretKey) },
		func() error { return str(OptSSOURL, &cfg.SSOURL) },
		func() error { return str(OptSSOKey, &cfg.SSOKey) },
		func() error { return str(OptSSOIV, &cfg.SSOIV) },
		func() error { return secs(OptProvisionInterval, &cfg.ProvisionInterval) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}
