// Package config handles telefeed configuration: the environment variable
// contract used by container deployments, an optional YAML file with
// environment variable expansion, and structural validation.
package config

import "time"

// Default values applied when neither the environment nor the config file
// provides one.
const (
	DefaultDelay     = 300 * time.Second
	MinDelay         = 10 * time.Second
	DefaultBind      = "127.0.0.1:8787"
	DefaultUserAgent = "telefeed"
)

// Config is the fully resolved application configuration.
type Config struct {
	// Token is the Telegram bot token (TOKEN).
	Token string `yaml:"token"`

	// ChatID is the target chat, user, or channel the bot forwards feed
	// items to (CHATID). Either a numeric ID or an @channelusername.
	ChatID string `yaml:"chat_id"`

	// Manager is the user ID allowed to issue subscription commands
	// (MANAGER). Defaults to ChatID when ChatID is a positive user ID.
	Manager int64 `yaml:"manager"`

	// Delay is the interval between feed poll cycles. Resolved from the
	// DELAY variable or the file's delay field, both in seconds.
	Delay time.Duration `yaml:"-"`

	// DelaySeconds is the file-facing form of Delay.
	DelaySeconds int `yaml:"delay,omitempty"`

	// TelegraphTokens is the pool of Telegraph access tokens rotated per
	// page creation (TELEGRAPH_TOKEN, newline or comma separated).
	TelegraphTokens []string `yaml:"telegraph_tokens"`

	// APIID and APIHash are Telegram application credentials
	// (API_ID / API_HASH). Accepted for deployment compatibility; the Bot
	// API transport does not use them.
	APIID   int    `yaml:"api_id"`
	APIHash string `yaml:"api_hash"`

	// ImgRelayServer is a base URL prepended to image URLs that Telegram
	// cannot fetch directly, typically due to anti-hotlinking
	// (IMG_RELAY_SERVER).
	ImgRelayServer string `yaml:"img_relay_server"`

	// UserAgent overrides the outbound HTTP User-Agent for feed and
	// Telegraph traffic (USER_AGENT).
	UserAgent string `yaml:"user_agent"`

	// TelegramProxy is a SOCKS5 proxy URL for Telegram Bot API traffic
	// (T_PROXY).
	TelegramProxy string `yaml:"t_proxy"`

	// FeedProxy is a SOCKS5 proxy URL for feed and Telegraph traffic
	// (R_PROXY).
	FeedProxy string `yaml:"r_proxy"`

	// Redis enables the Redis-backed store when Host is non-empty
	// (REDISHOST). Switching backends does not migrate existing state.
	Redis RedisConfig `yaml:"redis"`

	// Debug enables verbose logging (DEBUG).
	Debug bool `yaml:"debug"`

	// Gateway configures the operational HTTP surface.
	Gateway GatewayConfig `yaml:"gateway"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	// Host is "host" or "host:port"; port defaults to 6379.
	Host     string `yaml:"host"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// GatewayConfig holds the HTTP gateway settings.
type GatewayConfig struct {
	// Bind is the listen address. The literal value "off" disables the
	// gateway; empty falls back to DefaultBind.
	Bind string `yaml:"bind"`

	// AuthToken protects /status when non-empty (Bearer token).
	AuthToken string `yaml:"auth_token"`
}

// defaults applies default values to unset fields.
func (c *Config) defaults() {
	if c.Delay == 0 && c.DelaySeconds > 0 {
		c.Delay = time.Duration(c.DelaySeconds) * time.Second
	}
	if c.Delay == 0 {
		c.Delay = DefaultDelay
	}
	// Protect feed hosts from pathological poll rates.
	if c.Delay < MinDelay {
		c.Delay = MinDelay
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Gateway.Bind == "" {
		c.Gateway.Bind = DefaultBind
	}
}
