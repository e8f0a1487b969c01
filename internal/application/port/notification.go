package port

import (
	"context"

	"github.com/garyjia/clinic-billing/internal/domain/entity"
)

// OverdueNotifier tells billing staff about invoices that just became overdue
type OverdueNotifier interface {
	NotifyOverdue(ctx context.Context, invoices []*entity.Invoice) error
}

// MessageSender delivers a plain text message to a chat or user
type MessageSender interface {
	SendText(ctx context.Context, receiveIDType, receiveID, text string) (string, error)
}
