package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnv overlays the documented environment variable contract onto cfg.
// A set environment variable always wins over the config file value.
// Returns an error listing every malformed variable.
func applyEnv(cfg *Config) error {
	var errs []string

	if v, ok := os.LookupEnv("TOKEN"); ok {
		cfg.Token = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("CHATID"); ok {
		cfg.ChatID = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("MANAGER"); ok {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("MANAGER: not a user ID: %q", v))
		} else {
			cfg.Manager = id
		}
	}
	if v, ok := os.LookupEnv("DELAY"); ok {
		secs, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || secs <= 0 {
			errs = append(errs, fmt.Sprintf("DELAY: not a positive number of seconds: %q", v))
		} else {
			cfg.Delay = time.Duration(secs) * time.Second
		}
	}
	if v, ok := os.LookupEnv("TELEGRAPH_TOKEN"); ok {
		cfg.TelegraphTokens = SplitTokens(v)
	}
	if v, ok := os.LookupEnv("API_ID"); ok {
		id, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Sprintf("API_ID: not a number: %q", v))
		} else {
			cfg.APIID = id
		}
	}
	if v, ok := os.LookupEnv("API_HASH"); ok {
		cfg.APIHash = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("IMG_RELAY_SERVER"); ok {
		cfg.ImgRelayServer = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("USER_AGENT"); ok {
		cfg.UserAgent = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("T_PROXY"); ok {
		cfg.TelegramProxy = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("R_PROXY"); ok {
		cfg.FeedProxy = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("REDISHOST"); ok {
		cfg.Redis.Host = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("REDIS_PASSWORD"); ok {
		cfg.Redis.Password = v
	}
	if v, ok := os.LookupEnv("GATEWAY_BIND"); ok {
		cfg.Gateway.Bind = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("DEBUG"); ok {
		cfg.Debug = truthy(v)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SplitTokens splits a TELEGRAPH_TOKEN value into individual tokens.
// Deployments separate tokens with newlines; commas are accepted too.
func SplitTokens(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == ','
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if t := strings.TrimSpace(f); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// truthy reports whether an environment flag value means "enabled".
func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
