package bot

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-nickname-bot/internal/services"
)

// handle runs the handler for a recognized command and returns the reply
// text and the metrics outcome. Panics are turned into a generic reply.
func (r *Router) handle(ctx context.Context, lg zerolog.Logger, name string, cmd Command, username string, args []string) (reply, outcome string) {
	defer func() {
		if rec := recover(); rec != nil {
			lg.Error().Interface("panic", rec).Msg("command handler panicked")
			reply, outcome = msgUnknownError, outcomeError
		}
	}()

	switch name {
	case CmdStart:
		return startText, outcomeOK
	case CmdHelp:
		return helpText, outcomeOK
	case CmdAll:
		return r.handleAll(ctx, lg, cmd)
	}

	if err := services.ValidateUserContext(cmd.UserID, username, cmd.ChatID); err != nil {
		lg.Warn().Err(err).Msg("invalid user context")
		return withInfo(msgValidationError, reasonOf(err)), outcomeInvalid
	}
	raw := strings.Join(services.SanitizeArgs(args), " ")

	switch name {
	case CmdAdd:
		return r.handleAdd(ctx, lg, cmd, username, raw)
	case CmdChange:
		return r.handleChange(ctx, lg, cmd, username, raw)
	case CmdRemove:
		return r.handleRemove(ctx, lg, cmd, username)
	}
	return msgUnknownError, outcomeError
}

func (r *Router) handleAdd(ctx context.Context, lg zerolog.Logger, cmd Command, username, raw string) (string, string) {
	if raw == "" {
		return addUsageText, outcomeMissingArg
	}
	rec, err := r.svc.Add(ctx, cmd.ChatID, cmd.UserID, username, raw)
	switch {
	case err == nil:
		lg.Info().Str("nickname", rec.Nickname).Msg("nickname added")
		return r.durable(addedText(rec.Nickname, username)), outcomeOK
	case errors.Is(err, services.ErrNicknameExists):
		return alreadyAddedText(rec.Nickname), outcomeExists
	case errors.Is(err, services.ErrMissingNickname):
		return addUsageText, outcomeMissingArg
	}
	return r.failure(lg, err)
}

func (r *Router) handleAll(ctx context.Context, lg zerolog.Logger, cmd Command) (string, string) {
	recs, err := r.svc.List(ctx, cmd.ChatID)
	if err != nil {
		lg.Error().Err(err).Msg("listing nicknames failed")
		return "❌ An unexpected error occurred while retrieving nicknames. Please try again later.", outcomeError
	}
	lg.Info().Int("count", len(recs)).Msg("nicknames listed")
	return listText(recs), outcomeOK
}

func (r *Router) handleChange(ctx context.Context, lg zerolog.Logger, cmd Command, username, raw string) (string, string) {
	oldNick, newNick, err := r.svc.Change(ctx, cmd.ChatID, cmd.UserID, raw)
	switch {
	case err == nil:
		lg.Info().Str("old", oldNick).Str("new", newNick).Msg("nickname changed")
		return r.durable(changedText(oldNick, newNick, username)), outcomeOK
	case errors.Is(err, services.ErrNicknameNotFound):
		return changeNotFoundText, outcomeNotFound
	case errors.Is(err, services.ErrMissingNickname):
		return changeUsageText(oldNick), outcomeMissingArg
	case errors.Is(err, services.ErrNicknameUnchanged):
		return unchangedText(newNick), outcomeUnchanged
	}
	return r.failure(lg, err)
}

func (r *Router) handleRemove(ctx context.Context, lg zerolog.Logger, cmd Command, username string) (string, string) {
	rec, err := r.svc.Remove(ctx, cmd.ChatID, cmd.UserID)
	switch {
	case err == nil:
		lg.Info().Str("nickname", rec.Nickname).Msg("nickname removed")
		return r.durable(removedText(rec.Nickname, username)), outcomeOK
	case errors.Is(err, services.ErrNicknameNotFound):
		return removeNotFoundText, outcomeNotFound
	}
	return r.failure(lg, err)
}

// failure maps the remaining service errors to replies.
func (r *Router) failure(lg zerolog.Logger, err error) (string, string) {
	switch {
	case services.IsValidation(err):
		return withInfo(msgValidationError, reasonOf(err)), outcomeInvalid
	case errors.Is(err, services.ErrStoreUnavailable):
		lg.Error().Err(err).Msg("store unavailable")
		return msgServiceUnavailable, outcomeError
	case errors.Is(err, services.ErrStoreWrite):
		lg.Error().Err(err).Msg("store rejected change")
		return msgStorageError, outcomeError
	}
	lg.Error().Err(err).Msg("command failed")
	return msgUnknownError, outcomeError
}

// durable appends a warning when the last change only reached memory.
func (r *Router) durable(reply string) string {
	if r.svc.Durable() {
		return reply
	}
	return reply + "\n\n" + msgNotDurable
}

func reasonOf(err error) string {
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	return ""
}
