// Package telegram wraps the outbound half of the Telegram Bot API: sending
// messages to a chat and downloading uploaded documents. The inbound side is
// the webhook handler; it never goes through this package.
//
// Messaging failures are logged and swallowed. Errors are reported to users
// over the same channel, so surfacing a send failure as another message would
// only loop.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// ErrDisabled is returned by document downloads when no bot token was
// configured and outbound Telegram calls are disabled.
var ErrDisabled = errors.New("telegram client disabled: no token configured")

// maxMessageLen is Telegram's hard cap on message text.
const maxMessageLen = 4096

// Client is the outbound Telegram API client. A Client built without a token
// is a no-op sender that logs what it would have sent.
type Client struct {
	bot   *tgbotapi.BotAPI
	token string
	http  *http.Client
	log   zerolog.Logger
}

// New builds a Client for the given bot token. An empty token yields a
// disabled client rather than an error so the process can still serve its
// status endpoints; the caller is expected to have logged the degraded mode.
//
// The underlying BotAPI is assembled directly instead of via NewBotAPI to
// avoid the getMe network round-trip at startup.
func New(token string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	hc := &http.Client{Timeout: timeout}
	c := &Client{token: token, http: hc, log: log}
	if token != "" {
		bot := &tgbotapi.BotAPI{
			Token:  token,
			Client: hc,
			Buffer: 100,
		}
		bot.SetAPIEndpoint(tgbotapi.APIEndpoint)
		c.bot = bot
	}
	return c
}

// Enabled reports whether outbound calls will actually reach Telegram.
func (c *Client) Enabled() bool { return c.bot != nil }

// Send delivers a plain-text message to chatID. Oversized texts are clipped
// to the API limit. Failures are logged, never returned.
func (c *Client) Send(chatID int64, text string) {
	if len(text) > maxMessageLen {
		text = text[:maxMessageLen]
	}
	if c.bot == nil {
		c.log.Warn().Int64("chat_id", chatID).Msg("telegram disabled, dropping message")
		return
	}
	if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		c.log.Error().Err(err).Int64("chat_id", chatID).Msg("telegram send failed")
	}
}

// DownloadDocument resolves fileID to a file path and fetches its bytes.
// This is the two-step flow the Bot API requires: getFile, then a GET on the
// file link.
func (c *Client) DownloadDocument(ctx context.Context, fileID string) ([]byte, error) {
	if c.bot == nil {
		return nil, ErrDisabled
	}
	f, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("resolve file %s: %w", fileID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.Link(c.token), nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file %s: unexpected status %d", fileID, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
