// Package telegram adapts the Telegram Bot API to the bot package: it turns
// updates into bot.Command values and delivers replies.
package telegram

import (
	"context"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-nickname-bot/internal/bot"
	"github.com/tbourn/go-nickname-bot/internal/retry"
)

// SecretTokenHeader carries the webhook secret on every webhook request.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// DefaultPollTimeout is the long-poll timeout in seconds.
const DefaultPollTimeout = 30

// botAPI is the subset of *tgbotapi.BotAPI used here.
type botAPI interface {
	GetMe() (tgbotapi.User, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	HandleUpdate(r *http.Request) (*tgbotapi.Update, error)
}

// Client talks to the Bot API.
type Client struct {
	api         botAPI
	username    string
	pollTimeout int
	logger      zerolog.Logger
}

type options struct {
	endpoint    string
	httpClient  *http.Client
	policy      retry.Policy
	pollTimeout int
	logger      *zerolog.Logger
}

// Option customizes New.
type Option func(*options)

// WithEndpoint overrides the API endpoint format
// (default tgbotapi.APIEndpoint, "https://api.telegram.org/bot%s/%s").
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithRetryPolicy overrides the connection retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithPollTimeout sets the long-poll timeout in seconds.
func WithPollTimeout(sec int) Option {
	return func(o *options) { o.pollTimeout = sec }
}

// WithLogger sets the logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New connects to the Bot API and verifies the token with getMe, retrying
// transient failures. An unauthorized token fails at once.
func New(ctx context.Context, token string, opts ...Option) (*Client, error) {
	o := options{
		endpoint:    tgbotapi.APIEndpoint,
		httpClient:  &http.Client{Timeout: time.Duration(DefaultPollTimeout+10) * time.Second},
		policy:      retry.DefaultPolicy(),
		pollTimeout: DefaultPollTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	lg := log.Logger
	if o.logger != nil {
		lg = *o.logger
	}
	lg = lg.With().Str("component", "telegram").Logger()

	var api *tgbotapi.BotAPI
	err := retry.Do(ctx, o.policy, func() error {
		var err error
		api, err = tgbotapi.NewBotAPIWithClient(token, o.endpoint, o.httpClient)
		return err
	}, isTransient, func(err error, next time.Duration) {
		lg.Warn().Err(err).Dur("retry_in", next).Msg("connecting to Telegram failed, retrying")
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect to Telegram")
	}
	lg.Info().Str("bot", api.Self.UserName).Msg("connected to Telegram")
	return newClient(api, api.Self.UserName, o.pollTimeout, lg), nil
}

func newClient(api botAPI, username string, pollTimeout int, lg zerolog.Logger) *Client {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &Client{api: api, username: username, pollTimeout: pollTimeout, logger: lg}
}

// isTransient rejects errors a retry cannot fix, such as a revoked token.
func isTransient(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500 || apiErr.Code == http.StatusTooManyRequests
	}
	return true
}

// Username returns the bot's username.
func (c *Client) Username() string { return c.username }

var markdownStripper = strings.NewReplacer("**", "", "`", "")

// SendText sends text with Markdown formatting. If Telegram rejects the
// markup (e.g. a nickname with an unbalanced "_"), the message is resent as
// plain text.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := c.api.Send(msg)
	if err == nil {
		return nil
	}

	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusBadRequest {
		return errors.Wrap(err, "send message")
	}
	c.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("markdown rejected, sending plain text")

	plain := tgbotapi.NewMessage(chatID, markdownStripper.Replace(text))
	if _, err := c.api.Send(plain); err != nil {
		return errors.Wrap(err, "send plain message")
	}
	return nil
}

// ToCommand extracts a bot.Command from a text message update.
func ToCommand(u tgbotapi.Update) (bot.Command, bool) {
	m := u.Message
	if m == nil || m.Chat == nil || m.Text == "" {
		return bot.Command{}, false
	}
	cmd := bot.Command{
		UpdateID:  u.UpdateID,
		ChatID:    m.Chat.ID,
		ChatType:  m.Chat.Type,
		ChatTitle: m.Chat.Title,
		Text:      m.Text,
	}
	if m.From != nil {
		cmd.UserID = m.From.ID
		cmd.Username = m.From.UserName
		cmd.FullName = strings.TrimSpace(m.From.FirstName + " " + m.From.LastName)
	}
	return cmd, true
}

// Poll removes any webhook, dropping updates queued for it, and long-polls
// for updates, calling handle for every text message, until ctx is done.
func (c *Client) Poll(ctx context.Context, handle func(context.Context, bot.Command)) error {
	if _, err := c.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		return errors.Wrap(err, "delete webhook")
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = c.pollTimeout
	updates := c.api.GetUpdatesChan(cfg)
	c.logger.Info().Int("timeout", c.pollTimeout).Msg("polling for updates")

	for {
		select {
		case <-ctx.Done():
			c.api.StopReceivingUpdates()
			c.logger.Info().Msg("polling stopped")
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			if cmd, ok := ToCommand(u); ok {
				handle(ctx, cmd)
			}
		}
	}
}

// SetWebhook registers url with Telegram. A non-empty secret is registered
// as the secret token Telegram echoes in SecretTokenHeader.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := tgbotapi.NewWebhook(url); err != nil {
		return errors.Wrap(err, "invalid webhook url")
	}
	params := tgbotapi.Params{"url": url}
	if secret != "" {
		params["secret_token"] = secret
	}
	resp, err := c.api.MakeRequest("setWebhook", params)
	if err != nil {
		return errors.Wrap(err, "set webhook")
	}
	if resp != nil && !resp.Ok {
		return errors.Errorf("set webhook: %s", resp.Description)
	}
	c.logger.Info().Str("url", redactURL(url)).Msg("webhook registered")
	return nil
}

// DeleteWebhook unregisters any webhook.
func (c *Client) DeleteWebhook() error {
	_, err := c.api.Request(tgbotapi.DeleteWebhookConfig{})
	return errors.Wrap(err, "delete webhook")
}

// HandleWebhook decodes the update carried by a webhook request.
func (c *Client) HandleWebhook(r *http.Request) (*tgbotapi.Update, error) {
	u, err := c.api.HandleUpdate(r)
	if err != nil {
		return nil, errors.Wrap(err, "decode update")
	}
	return u, nil
}

// DecodeCommand decodes a webhook request into a command. ok is false for
// updates that carry no text message (edits, joins, callbacks).
func (c *Client) DecodeCommand(r *http.Request) (cmd bot.Command, ok bool, err error) {
	u, err := c.HandleWebhook(r)
	if err != nil {
		return bot.Command{}, false, err
	}
	cmd, ok = ToCommand(*u)
	return cmd, ok, nil
}

// Ping checks that the Bot API still accepts the token.
func (c *Client) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		_, err := c.api.GetMe()
		done <- err
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return errors.Wrap(err, "getMe")
	}
}

// redactURL drops the query string, which may carry secrets.
func redactURL(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
