package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-nickname-bot/internal/domain"
	"github.com/tbourn/go-nickname-bot/internal/ratelimit"
)

// NicknameService is the subset of services.NicknameService the router uses.
type NicknameService interface {
	Add(ctx context.Context, groupID, userID int64, username, raw string) (domain.NicknameRecord, error)
	Change(ctx context.Context, groupID, userID int64, raw string) (oldNick, newNick string, err error)
	Remove(ctx context.Context, groupID, userID int64) (domain.NicknameRecord, error)
	List(ctx context.Context, groupID int64) ([]domain.NicknameRecord, error)
	Durable() bool
}

// Options tunes a Router.
type Options struct {
	// BotUsername, when set, makes the router ignore commands addressed to
	// other bots ("/add@otherbot").
	BotUsername string

	// CommandRPS and CommandBurst throttle commands per (group, user).
	// A non-positive CommandRPS disables the throttle.
	CommandRPS   float64
	CommandBurst int

	// DedupeTTL is how long update ids are remembered.
	DedupeTTL time.Duration

	// Logger defaults to the global zerolog logger.
	Logger *zerolog.Logger
}

// Router dispatches commands to their handlers and sends the replies.
type Router struct {
	svc         NicknameService
	send        Sender
	botUsername string

	dedupe  *dedupe
	limiter *ratelimit.Keyed
	tracer  trace.Tracer
	logger  zerolog.Logger
}

// NewRouter wires a Router.
func NewRouter(svc NicknameService, send Sender, opt Options) *Router {
	r := &Router{
		svc:         svc,
		send:        send,
		botUsername: opt.BotUsername,
		dedupe:      newDedupe(opt.DedupeTTL),
		tracer:      otel.Tracer("github.com/tbourn/go-nickname-bot/internal/bot"),
		logger:      log.Logger,
	}
	if opt.Logger != nil {
		r.logger = *opt.Logger
	}
	if opt.CommandRPS > 0 {
		r.limiter = ratelimit.New(opt.CommandRPS, opt.CommandBurst)
	}
	r.logger = r.logger.With().Str("component", "bot").Logger()
	return r
}

// Dispatch runs one message through the pipeline: dedupe, group gate,
// command recognition, user identity, throttle, handler, reply. Messages
// that are not commands are ignored. The returned error is the reply
// delivery error, if any.
func (r *Router) Dispatch(ctx context.Context, cmd Command) error {
	if !IsCommandText(cmd.Text) {
		return nil
	}
	start := time.Now()
	name, args, ok := ParseCommand(cmd.Text, r.botUsername)
	metric := "unknown"
	if ok {
		metric = label(name)
	}

	lg := r.logger.With().
		Int("update_id", cmd.UpdateID).
		Int64("chat_id", cmd.ChatID).
		Int64("user_id", cmd.UserID).
		Str("command", metric).
		Logger()

	if !r.dedupe.firstSeen(cmd.UpdateID) {
		lg.Debug().Msg("duplicate update ignored")
		commandsTotal.WithLabelValues(metric, outcomeDuplicate).Inc()
		return nil
	}

	if !cmd.IsGroup() {
		lg.Info().Str("chat_type", cmd.ChatType).Msg("command outside a group chat")
		commandsTotal.WithLabelValues(metric, outcomePrivateChat).Inc()
		return r.reply(ctx, lg, cmd.ChatID, msgGroupOnly)
	}
	if !ok {
		return nil
	}

	ctx, span := r.tracer.Start(ctx, "bot "+name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("bot.command", name),
			attribute.Int64("bot.group_id", cmd.ChatID),
			attribute.Int64("bot.user_id", cmd.UserID),
			attribute.Int("bot.update_id", cmd.UpdateID),
		))
	defer span.End()

	var reply, outcome string
	switch {
	case cmd.UserID <= 0:
		reply, outcome = msgUnknownUser, outcomeInvalid
	case r.limiter != nil && !r.limiter.Allow(fmt.Sprintf("%d:%d", cmd.ChatID, cmd.UserID)):
		reply, outcome = msgRateLimit, outcomeRateLimited
	default:
		username := cmd.Username
		if username == "" {
			username = fmt.Sprintf("user_%d", cmd.UserID)
		}
		lg.Info().Str("group_title", cmd.ChatTitle).Str("username", username).Int("args", len(args)).Msg("processing command")
		reply, outcome = r.handle(ctx, lg, name, cmd, username, args)
	}
	span.SetAttributes(attribute.String("bot.outcome", outcome))
	if outcome == outcomeError {
		span.SetStatus(codes.Error, "command failed")
	}

	err := r.reply(ctx, lg, cmd.ChatID, reply)
	if err != nil {
		span.RecordError(err)
	}
	commandsTotal.WithLabelValues(metric, outcome).Inc()
	commandDuration.WithLabelValues(metric).Observe(time.Since(start).Seconds())
	lg.Debug().Str("outcome", outcome).Dur("latency", time.Since(start)).Msg("command handled")
	return err
}

func (r *Router) reply(ctx context.Context, lg zerolog.Logger, chatID int64, text string) error {
	if r.send == nil {
		return nil
	}
	if err := r.send.SendText(ctx, chatID, text); err != nil {
		lg.Error().Err(err).Msg("failed to send reply")
		return err
	}
	return nil
}
