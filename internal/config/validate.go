package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// tokenPattern matches the Telegram bot token format: <digits>:<alphanum+dash>.
var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Validate checks the resolved configuration for completeness and shape.
// It is read-only and reports all problems at once.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Token == "" {
		errs = append(errs, errors.New("TOKEN is required"))
	} else if !tokenPattern.MatchString(cfg.Token) {
		errs = append(errs, errors.New("TOKEN format invalid (expected <bot_id>:<hash>)"))
	}

	if cfg.ChatID == "" {
		errs = append(errs, errors.New("CHATID is required"))
	} else if !validChatID(cfg.ChatID) {
		errs = append(errs, fmt.Errorf("CHATID must be a numeric ID or @channelusername, got %q", cfg.ChatID))
	}

	if cfg.Manager == 0 {
		errs = append(errs, errors.New("MANAGER is required when CHATID is not a positive user ID"))
	}

	for name, raw := range map[string]string{"T_PROXY": cfg.TelegramProxy, "R_PROXY": cfg.FeedProxy} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme != "socks5" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be a socks5://host:port URL, got %q", name, raw))
		}
	}

	if cfg.ImgRelayServer != "" {
		u, err := url.Parse(cfg.ImgRelayServer)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("IMG_RELAY_SERVER must be an http/https URL, got %q", cfg.ImgRelayServer))
		}
	}

	if bind := cfg.Gateway.Bind; bind != "" && bind != "off" {
		if _, err := net.ResolveTCPAddr("tcp", bind); err != nil {
			errs = append(errs, fmt.Errorf("gateway bind address invalid: %q", bind))
		}
	}

	return errors.Join(errs...)
}

// validChatID reports whether s is a numeric chat ID (possibly negative,
// for groups and channels) or an @username.
func validChatID(s string) bool {
	if strings.HasPrefix(s, "@") {
		return len(s) > 1
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}
