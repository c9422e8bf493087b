package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-nickname-bot/internal/domain"
	"github.com/tbourn/go-nickname-bot/internal/http/middleware"
)

// healthTimeout bounds the Bot API round trip made by one health probe.
const healthTimeout = 5 * time.Second

// NicknameService is the read side of the nickname service used over HTTP.
type NicknameService interface {
	Groups(ctx context.Context) ([]domain.GroupSummary, error)
	ListPage(ctx context.Context, groupID int64, page, pageSize int) ([]domain.NicknameRecord, int64, error)
	Healthy() bool
}

// BotPinger checks the Bot API connection.
type BotPinger interface {
	Ping(ctx context.Context) error
}

// Handlers serves health and admin endpoints.
type Handlers struct {
	svc NicknameService
	bot BotPinger
	now func() time.Time
}

// New binds handlers to the nickname service and the bot connection.
func New(svc NicknameService, bot BotPinger) *Handlers {
	return &Handlers{svc: svc, bot: bot, now: time.Now}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string  `json:"status"`
	Timestamp float64 `json:"timestamp"`
	Bot       string  `json:"bot,omitempty"`
	Storage   string  `json:"storage,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Health godoc
// @ID          health
// @Summary     Bot and storage health
// @Description 200 "healthy" when the Bot API answers and the store is usable,
// @Description 200 "degraded" when the Bot API answers but the store is not,
// @Description 503 "unhealthy" when the bot is missing or the Bot API does not answer.
// @Tags        Health
// @Produce     json
//
// @Success     200  {object}  handlers.HealthResponse
// @Failure     503  {object}  handlers.HealthResponse  "Bot unavailable"
// @Router      /health [get]
func (h *Handlers) Health(c *gin.Context) {
	resp := HealthResponse{Timestamp: float64(h.now().UnixNano()) / 1e9}

	if h.bot == nil || h.svc == nil {
		resp.Status, resp.Error = "unhealthy", "Bot not initialized"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()
	if err := h.bot.Ping(ctx); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("health check: bot API unreachable")
		resp.Status, resp.Bot, resp.Error = "unhealthy", "disconnected", "Bot API connection failed"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	resp.Bot = "connected"
	if h.svc.Healthy() {
		resp.Status, resp.Storage = "healthy", "healthy"
	} else {
		resp.Status, resp.Storage = "degraded", "unhealthy"
	}
	ok(c, http.StatusOK, resp)
}
