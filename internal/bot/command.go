// Package bot turns incoming chat messages into nickname operations and
// replies. It knows nothing about the Telegram wire format: transports build
// a Command, hand it to Router.Dispatch, and provide a Sender for the reply.
package bot

import (
	"context"
	"strings"
)

// Chat types as reported by Telegram.
const (
	ChatPrivate    = "private"
	ChatGroup      = "group"
	ChatSupergroup = "supergroup"
	ChatChannel    = "channel"
)

// Command names the router answers to.
const (
	CmdStart  = "/start"
	CmdAdd    = "/add"
	CmdAll    = "/all"
	CmdChange = "/change"
	CmdRemove = "/remove"
	CmdHelp   = "/help"
)

var recognized = map[string]bool{
	CmdStart:  true,
	CmdAdd:    true,
	CmdAll:    true,
	CmdChange: true,
	CmdRemove: true,
	CmdHelp:   true,
}

// Command is one incoming text message.
type Command struct {
	UpdateID  int
	ChatID    int64
	ChatType  string
	ChatTitle string
	UserID    int64
	Username  string
	FullName  string
	Text      string
}

// IsGroup reports whether the message came from a group or supergroup.
func (c Command) IsGroup() bool {
	return c.ChatType == ChatGroup || c.ChatType == ChatSupergroup
}

// Sender delivers a reply to a chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, chatID int64, text string) error

// SendText calls f.
func (f SenderFunc) SendText(ctx context.Context, chatID int64, text string) error {
	return f(ctx, chatID, text)
}

// IsCommandText reports whether text looks like a bot command at all.
func IsCommandText(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

// ParseCommand splits "/name@bot arg1 arg2" into the lower-cased command name
// and its whitespace-separated arguments. ok is false when text is not one
// of the recognized commands, or when it is explicitly addressed to a
// different bot. An empty botUsername accepts any addressee.
func ParseCommand(text, botUsername string) (name string, args []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	head := strings.ToLower(fields[0])
	if at := strings.IndexByte(head, '@'); at >= 0 {
		target := head[at+1:]
		head = head[:at]
		if botUsername != "" && target != "" && !strings.EqualFold(target, botUsername) {
			return "", nil, false
		}
	}
	if !recognized[head] {
		return "", nil, false
	}
	return head, fields[1:], true
}
