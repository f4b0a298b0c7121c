package config

// EnabledModules returns the sorted list of module IDs a configuration
// enables. The deterministic order ensures consistent module loading.
func EnabledModules(cfg *Config) []string {
	ids := []string{"channel.telegram"}

	if cfg.Gateway.Bind != "" && cfg.Gateway.Bind != "off" {
		ids = append(ids, "gateway.http")
	}

	ids = append(ids, "monitor")

	if cfg.Redis.Host != "" {
		ids = append(ids, "storage.redis")
	} else {
		ids = append(ids, "storage.sqlite")
	}

	if len(cfg.TelegraphTokens) > 0 {
		ids = append(ids, "telegraph")
	}

	return ids
}
