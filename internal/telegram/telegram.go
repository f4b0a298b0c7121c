package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/telefeed/telefeed/internal/core"
)

func init() {
	core.RegisterModule(&Telegram{})
}

// Compile-time interface guards.
var (
	_ core.Provisioner = (*Telegram)(nil)
	_ core.Validator   = (*Telegram)(nil)
	_ core.Starter     = (*Telegram)(nil)
	_ core.Stopper     = (*Telegram)(nil)
)

// Telegram is the bot channel module: it owns the Bot API client, the
// outbound sender, and the manager command poller.
type Telegram struct {
	appCtx  *core.AppContext
	logger  *slog.Logger
	client  *Client
	sender  *Sender
	poller  *Poller
	botUser *User
}

// ModuleInfo implements core.Module.
func (t *Telegram) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "channel.telegram",
		New: func() core.Module { return &Telegram{} },
	}
}

// Provision implements core.Provisioner.
func (t *Telegram) Provision(ctx *core.AppContext) error {
	t.appCtx = ctx
	t.logger = ctx.Logger

	cfg := ctx.Config
	client, err := NewClient(cfg.Token, cfg.TelegramProxy)
	if err != nil {
		return err
	}
	t.client = client
	t.sender = NewSender(client, cfg.ChatID, cfg.Manager, cfg.ImgRelayServer, ctx.Logger)

	ctx.RegisterService("telegram.sender", t.sender)
	return nil
}

// Validate implements core.Validator.
func (t *Telegram) Validate() error {
	if t.appCtx.Config.Token == "" {
		return errors.New("telegram: token is required")
	}
	if t.appCtx.Config.Manager == 0 {
		return errors.New("telegram: manager user ID is required")
	}
	return nil
}

// Start implements core.Starter. It validates the bot token, registers the
// command menu, and starts the manager command poller.
func (t *Telegram) Start() error {
	user, err := t.client.GetMe(context.Background())
	if err != nil {
		return fmt.Errorf("telegram: getMe failed (check token): %w", err)
	}
	t.botUser = user
	t.logger.Info("telegram bot authenticated",
		"id", user.ID,
		"username", user.Username,
	)

	if err := t.client.SetMyCommands(context.Background(), commandMenu); err != nil {
		t.logger.Warn("setMyCommands failed", "error", err)
	}

	svc, ok := t.appCtx.Service("monitor.subscriptions")
	if !ok {
		return errors.New("telegram: subscriptions service not registered")
	}
	subs, ok := svc.(Subscriptions)
	if !ok {
		return errors.New("telegram: subscriptions service has wrong type")
	}

	commands := NewCommands(t.client, subs, t.appCtx.Version, t.logger)
	t.poller = NewPoller(t.client, commands, t.appCtx.Config.Manager, t.logger)
	t.poller.Start()
	t.logger.Info("telegram command polling started", "manager", t.appCtx.Config.Manager)

	return nil
}

// Stop implements core.Stopper.
func (t *Telegram) Stop(_ context.Context) error {
	if t.poller != nil {
		t.poller.Stop()
	}
	return nil
}
