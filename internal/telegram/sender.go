package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
)

// Sender delivers composed messages to the configured target chat.
// Message text uses the Bot API HTML parse mode.
type Sender struct {
	client  *Client
	chatID  string
	manager int64
	relay   string
	logger  *slog.Logger
}

// NewSender creates a Sender targeting chatID. relay, when non-empty, is
// the image relay base URL used as a fallback for photos Telegram cannot
// fetch directly.
func NewSender(client *Client, chatID string, manager int64, relay string, logger *slog.Logger) *Sender {
	return &Sender{
		client:  client,
		chatID:  chatID,
		manager: manager,
		relay:   relay,
		logger:  logger,
	}
}

// SendHTML sends HTML-formatted text to the target chat, splitting it into
// multiple messages when it exceeds the Bot API length limit. A message the
// API rejects as unparsable is retried as plain text rather than dropped.
func (s *Sender) SendHTML(ctx context.Context, html string) error {
	for _, chunk := range splitMessage(html) {
		_, err := s.client.SendMessage(ctx, SendMessageRequest{
			ChatID:    s.chatID,
			Text:      chunk,
			ParseMode: "HTML",
		})
		if isParseError(err) {
			s.logger.Warn("message rejected as HTML, resending as plain text", "error", err)
			_, err = s.client.SendMessage(ctx, SendMessageRequest{
				ChatID: s.chatID,
				Text:   chunk,
			})
		}
		if err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

// SendPhoto sends a photo by URL with an HTML caption. When Telegram cannot
// fetch the photo and an image relay is configured, the send is retried once
// through the relay.
func (s *Sender) SendPhoto(ctx context.Context, photoURL, captionHTML string) error {
	_, err := s.client.SendPhoto(ctx, SendPhotoRequest{
		ChatID:    s.chatID,
		Photo:     photoURL,
		Caption:   captionHTML,
		ParseMode: "HTML",
	})
	if err != nil && s.relay != "" && isPhotoFetchError(err) {
		relayed := s.relayURL(photoURL)
		s.logger.Info("photo send failed, retrying via image relay", "photo", photoURL)
		_, err = s.client.SendPhoto(ctx, SendPhotoRequest{
			ChatID:    s.chatID,
			Photo:     relayed,
			Caption:   captionHTML,
			ParseMode: "HTML",
		})
	}
	if err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	return nil
}

// NotifyManager sends a plain-text service message to the manager's private
// chat.
func (s *Sender) NotifyManager(ctx context.Context, text string) error {
	_, err := s.client.SendMessage(ctx, SendMessageRequest{
		ChatID:              strconv.FormatInt(s.manager, 10),
		Text:                text,
		DisableNotification: true,
	})
	if err != nil {
		return fmt.Errorf("notify manager: %w", err)
	}
	return nil
}

// relayURL rewrites an image URL to go through the configured relay.
func (s *Sender) relayURL(raw string) string {
	return strings.TrimRight(s.relay, "/") + "/" + url.QueryEscape(raw)
}

// isParseError reports whether the API rejected the message because of
// malformed parse-mode markup.
func isParseError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == 400 && strings.Contains(strings.ToLower(apiErr.Description), "parse")
}

// isPhotoFetchError reports whether the API failed to fetch the photo URL
// on its side (the usual symptom of anti-hotlinking).
func isPhotoFetchError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	desc := strings.ToLower(apiErr.Description)
	return apiErr.Code == 400 && (strings.Contains(desc, "wrong file identifier") ||
		strings.Contains(desc, "failed to get http url content") ||
		strings.Contains(desc, "wrong type of the web page content"))
}
