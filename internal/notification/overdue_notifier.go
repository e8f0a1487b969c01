package notification

import (
	"context"
	"fmt"

	"github.com/garyjia/clinic-billing/internal/application/port"
	"github.com/garyjia/clinic-billing/internal/domain/billing"
	"github.com/garyjia/clinic-billing/internal/domain/entity"
	"go.uber.org/zap"
)

// OverdueNotifier posts overdue summaries to the billing team's chat.
// Without a sender it only logs.
type OverdueNotifier struct {
	sender   port.MessageSender
	chatID   string
	currency string
	clock    billing.Clock
	logger   *zap.Logger
}

// NewOverdueNotifier creates a notifier. sender may be nil.
func NewOverdueNotifier(
	sender port.MessageSender,
	chatID string,
	currency string,
	clock billing.Clock,
	logger *zap.Logger,
) *OverdueNotifier {
	if clock == nil {
		clock = billing.SystemClock{}
	}
	return &OverdueNotifier{
		sender:   sender,
		chatID:   chatID,
		currency: currency,
		clock:    clock,
		logger:   logger,
	}
}

// NotifyOverdue implements port.OverdueNotifier
func (n *OverdueNotifier) NotifyOverdue(ctx context.Context, invoices []*entity.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}

	today := n.clock.Now()
	summary := Summarize(invoices, today)
	n.logger.Info("Invoices became overdue",
		zap.Int("count", summary.Count),
		zap.Float64("total_outstanding", summary.TotalOutstanding),
		zap.Int("max_days_overdue", summary.MaxDaysOverdue))

	if n.sender == nil || n.chatID == "" {
		return nil
	}

	text := FormatOverdueSummary(summary, today, n.currency)
	messageID, err := n.sender.SendText(ctx, "chat_id", n.chatID, text)
	if err != nil {
		n.logger.Error("Failed to send overdue alert",
			zap.String("chat_id", n.chatID),
			zap.Error(err))
		return fmt.Errorf("send overdue alert: %w", err)
	}

	n.logger.Info("Overdue alert sent",
		zap.String("chat_id", n.chatID),
		zap.String("message_id", messageID))
	return nil
}

var _ port.OverdueNotifier = (*OverdueNotifier)(nil)
