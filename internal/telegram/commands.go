package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"

	"github.com/telefeed/telefeed/internal/storage"
)

// Subscriptions is the subscription management surface the command handler
// drives. Implemented by the monitor module.
type Subscriptions interface {
	// Subscribe validates the feed at url, primes its delivery history, and
	// stores it. name may be empty, in which case the feed's own title is
	// used.
	Subscribe(ctx context.Context, url, name string) (*storage.Feed, error)

	// Unsubscribe removes a subscription by name.
	Unsubscribe(ctx context.Context, name string) error

	// List returns all subscriptions sorted by name.
	List(ctx context.Context) ([]storage.Feed, error)

	// Test re-delivers the newest item of the named feed, bypassing
	// deduplication.
	Test(ctx context.Context, name string) error
}

// commandMenu is registered with setMyCommands at startup.
var commandMenu = []BotCommand{
	{Command: "sub", Description: "Subscribe: /sub <url> [title]"},
	{Command: "unsub", Description: "Unsubscribe: /unsub <title>"},
	{Command: "list", Description: "List subscriptions"},
	{Command: "test", Description: "Send the newest item: /test <title>"},
	{Command: "version", Description: "Show bot version"},
	{Command: "help", Description: "Show usage"},
}

// Commands handles manager commands received by the poller.
type Commands struct {
	client  *Client
	subs    Subscriptions
	version string
	logger  *slog.Logger
}

// NewCommands creates a command handler.
func NewCommands(client *Client, subs Subscriptions, version string, logger *slog.Logger) *Commands {
	return &Commands{
		client:  client,
		subs:    subs,
		version: version,
		logger:  logger,
	}
}

// Handle dispatches one manager message. Non-command text gets usage help.
func (c *Commands) Handle(ctx context.Context, msg *Message) {
	cmd, args := parseCommand(msg.Text)

	var reply string
	switch cmd {
	case "sub", "add":
		reply = c.handleSub(ctx, args)
	case "unsub", "remove":
		reply = c.handleUnsub(ctx, args)
	case "list":
		reply = c.handleList(ctx)
	case "test":
		reply = c.handleTest(ctx, args)
	case "version":
		reply = "telefeed " + c.version
	case "start", "help":
		reply = usageText
	default:
		reply = "Unknown command. " + usageText
	}

	if reply == "" {
		return
	}

	_, err := c.client.SendMessage(ctx, SendMessageRequest{
		ChatID:                strconv.FormatInt(msg.Chat.ID, 10),
		Text:                  reply,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		c.logger.Error("command reply failed", "command", cmd, "error", err)
	}
}

const usageText = `Commands:
/sub &lt;url&gt; [title] - subscribe to a feed
/unsub &lt;title&gt; - unsubscribe
/list - list subscriptions
/test &lt;title&gt; - send the newest item
/version - bot version`

func (c *Commands) handleSub(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return "Usage: /sub <url> [title]"
	}

	url := args[0]
	name := strings.Join(args[1:], " ")

	feed, err := c.subs.Subscribe(ctx, url, name)
	if err != nil {
		return "Subscription failed: " + html.EscapeString(err.Error())
	}
	return fmt.Sprintf("Subscribed to <b>%s</b>", html.EscapeString(feed.Name))
}

func (c *Commands) handleUnsub(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return "Usage: /unsub <title>"
	}

	name := strings.Join(args, " ")
	if err := c.subs.Unsubscribe(ctx, name); err != nil {
		if errors.Is(err, storage.ErrFeedNotFound) {
			return fmt.Sprintf("No subscription named <b>%s</b>", html.EscapeString(name))
		}
		return "Unsubscribe failed: " + html.EscapeString(err.Error())
	}
	return fmt.Sprintf("Unsubscribed from <b>%s</b>", html.EscapeString(name))
}

func (c *Commands) handleList(ctx context.Context) string {
	feeds, err := c.subs.List(ctx)
	if err != nil {
		return "Listing failed: " + html.EscapeString(err.Error())
	}
	if len(feeds) == 0 {
		return "No subscriptions. Add one with /sub <url>"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("<b>%d subscription(s)</b>\n", len(feeds)))
	for _, f := range feeds {
		b.WriteString(fmt.Sprintf("\n<b>%s</b>\n%s", html.EscapeString(f.Name), html.EscapeString(f.URL)))
		if f.ErrorCount > 0 {
			b.WriteString(fmt.Sprintf("\n(%d consecutive fetch errors)", f.ErrorCount))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (c *Commands) handleTest(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return "Usage: /test <title>"
	}

	name := strings.Join(args, " ")
	if err := c.subs.Test(ctx, name); err != nil {
		if errors.Is(err, storage.ErrFeedNotFound) {
			return fmt.Sprintf("No subscription named <b>%s</b>", html.EscapeString(name))
		}
		return "Test failed: " + html.EscapeString(err.Error())
	}
	return "" // the delivered item is the reply
}

// parseCommand splits "/cmd@bot arg1 arg2" into the command name and args.
// Returns an empty command for non-command text.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}

	cmd := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd), fields[1:]
}
