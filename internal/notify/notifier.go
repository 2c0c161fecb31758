// Package notify pushes run results to chat channels. Delivery is
// best-effort: a failed webhook is logged and never fails the run that
// produced the report.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/pkg/config"
	"github.com/guberm/wealthsimple-trading-bot/pkg/httputil"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier formats run reports and fans them out to every configured
// sender.
type Notifier struct {
	senders []Sender
	logger  *logger.Logger
}

// New creates a notifier over the given senders.
func New(log *logger.Logger, senders ...Sender) *Notifier {
	return &Notifier{senders: senders, logger: log}
}

// FromConfig builds a notifier from the configured sinks. It returns nil
// when no sink is configured, so callers can skip wiring it entirely.
func FromConfig(cfg *config.Config, client *httputil.Client, log *logger.Logger) *Notifier {
	var senders []Sender
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, NewDiscordSender(cfg.Notify.DiscordWebhookURL, client))
	}
	if cfg.Notify.TelegramBotToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, NewTelegramSender(cfg.Notify.TelegramBotToken, cfg.Notify.TelegramChatID, client))
	}
	if len(senders) == 0 {
		return nil
	}
	return New(log, senders...)
}

// Channels lists the configured sender names.
func (n *Notifier) Channels() []string {
	names := make([]string, 0, len(n.senders))
	for _, s := range n.senders {
		names = append(names, s.Name())
	}
	return names
}

// RunFinished delivers the report to every sender. One sender failing
// does not stop delivery to the rest.
func (n *Notifier) RunFinished(ctx context.Context, report *contracts.RunReport) {
	title, message := FormatReport(report)

	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.WithFields(map[string]interface{}{
				"sender": s.Name(),
				"run_id": report.RunID,
				"error":  err.Error(),
			}).Warn("Notification delivery failed")
			continue
		}
		n.logger.WithFields(map[string]interface{}{
			"sender": s.Name(),
			"run_id": report.RunID,
		}).Debug("Notification delivered")
	}
}

// FormatReport renders a report as a short chat message. The title works
// as a bold headline in both Discord and Telegram markdown.
func FormatReport(report *contracts.RunReport) (title, message string) {
	title = fmt.Sprintf("Rebalance %s (%s)", report.Outcome, report.Mode)

	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\n", report.RunID)
	if report.AccountID != "" {
		fmt.Fprintf(&b, "Account: %s\n", report.AccountID)
	}
	fmt.Fprintf(&b, "Duration: %s\n", report.Duration().Round(100*time.Millisecond))

	if len(report.Picks) > 0 {
		symbols := make([]string, 0, len(report.Picks))
		for i := range report.Picks {
			symbols = append(symbols, report.Picks[i].Symbol)
		}
		fmt.Fprintf(&b, "Picks: %s\n", strings.Join(symbols, ", "))
	}

	if report.Summary != nil {
		fmt.Fprintf(&b, "Portfolio: $%s total, $%s cash\n",
			report.Summary.TotalValue.StringFixed(2),
			report.Summary.CashBalance.StringFixed(2))
	}

	if len(report.Sells)+len(report.Buys) > 0 {
		fmt.Fprintf(&b, "Orders: %d sells, %d buys\n", len(report.Sells), len(report.Buys))
	}
	if report.Execution != nil {
		fmt.Fprintf(&b, "Executed: %d ok, %d failed\n",
			report.Execution.Successful, report.Execution.Failed)
	}

	if report.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", report.Error)
		if stage := lastFailedStage(report); stage != "" {
			fmt.Fprintf(&b, "Failed stage: %s\n", stage)
		}
	}

	return title, strings.TrimRight(b.String(), "\n")
}

func lastFailedStage(report *contracts.RunReport) string {
	for i := len(report.Stages) - 1; i >= 0; i-- {
		if !report.Stages[i].Success {
			return string(report.Stages[i].Stage)
		}
	}
	return ""
}
