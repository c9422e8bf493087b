package bot

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels for commandsTotal.
const (
	outcomeOK          = "ok"
	outcomeDuplicate   = "duplicate"
	outcomePrivateChat = "private_chat"
	outcomeRateLimited = "rate_limited"
	outcomeInvalid     = "invalid"
	outcomeExists      = "exists"
	outcomeNotFound    = "not_found"
	outcomeUnchanged   = "unchanged"
	outcomeMissingArg  = "missing_arg"
	outcomeError       = "error"
)

var (
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nicknamebot_commands_total",
			Help: "Bot commands handled, by command and outcome.",
		},
		[]string{"command", "outcome"},
	)

	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nicknamebot_command_duration_seconds",
			Help:    "Time spent handling a bot command, including the reply.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
)

func init() {
	prometheus.MustRegister(commandsTotal, commandDuration)
}

// label strips the leading slash for metric labels.
func label(cmd string) string {
	if len(cmd) > 1 && cmd[0] == '/' {
		return cmd[1:]
	}
	if cmd == "" {
		return "unknown"
	}
	return cmd
}
