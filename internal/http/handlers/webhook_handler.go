package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-nickname-bot/internal/bot"
	"github.com/tbourn/go-nickname-bot/internal/http/middleware"
	"github.com/tbourn/go-nickname-bot/internal/telegram"
)

// UpdateDecoder turns a webhook request into a bot command.
type UpdateDecoder interface {
	DecodeCommand(r *http.Request) (cmd bot.Command, ok bool, err error)
}

// Dispatcher runs one bot command.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd bot.Command) error
}

// Webhook receives updates pushed by Telegram.
type Webhook struct {
	decoder    UpdateDecoder
	dispatcher Dispatcher
	secret     []byte
}

// NewWebhook builds the webhook endpoint. When secret is non-empty every
// request must echo it in the X-Telegram-Bot-Api-Secret-Token header.
func NewWebhook(dec UpdateDecoder, d Dispatcher, secret string) *Webhook {
	return &Webhook{decoder: dec, dispatcher: d, secret: []byte(secret)}
}

// Handle godoc
// @ID          telegramWebhook
// @Summary     Receive a Telegram update
// @Description Decodes and dispatches one update. Once decoded, the update is
// @Description acknowledged with 200 whatever the command outcome: any other
// @Description status makes Telegram redeliver it.
// @Tags        Telegram
// @Accept      json
// @Produce     json
//
// @Param       X-Telegram-Bot-Api-Secret-Token  header  string  false  "Webhook secret, required when configured"
// @Param       body  body  object  true  "Telegram Update"
//
// @Success     200  {object}  map[string]bool
// @Failure     400  {object}  handlers.ErrorResponse  "Undecodable update"
// @Failure     401  {object}  handlers.ErrorResponse  "Secret mismatch"
// @Router      /webhook [post]
func (w *Webhook) Handle(c *gin.Context) {
	if len(w.secret) > 0 {
		got := []byte(c.GetHeader(telegram.SecretTokenHeader))
		if subtle.ConstantTimeCompare(got, w.secret) != 1 {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid secret token")
			return
		}
	}

	cmd, isMsg, err := w.decoder.DecodeCommand(c.Request)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidBody, "invalid update")
		return
	}
	if isMsg {
		// The reply must go out even if Telegram hangs up first.
		ctx := context.WithoutCancel(c.Request.Context())
		if err := w.dispatcher.Dispatch(ctx, cmd); err != nil {
			middleware.LoggerFrom(c).Error().Err(err).
				Int("update_id", cmd.UpdateID).
				Int64("chat_id", cmd.ChatID).
				Msg("webhook dispatch failed")
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
