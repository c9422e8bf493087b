package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// zerologAdapter routes the Bot API library's own log lines (mostly
// long-poll errors) into zerolog.
type zerologAdapter struct {
	lg zerolog.Logger
}

func (a zerologAdapter) Println(v ...interface{}) {
	a.lg.Warn().Msg(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func (a zerologAdapter) Printf(format string, v ...interface{}) {
	a.lg.Warn().Msg(strings.TrimSuffix(fmt.Sprintf(format, v...), "\n"))
}

// InstallLogger makes the Bot API library log through lg.
func InstallLogger(lg zerolog.Logger) error {
	return tgbotapi.SetLogger(zerologAdapter{lg: lg.With().Str("component", "tgbotapi").Logger()})
}
