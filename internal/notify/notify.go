// Package notify delivers donor-facing messages. Delivery is
// fire-and-forget: failures are logged by callers and never surface as
// reconciliation or batch failures.
package notify

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/haakonmt/girobatch/internal/models"
)

// Notifier sends donor messages for one delivery channel.
type Notifier interface {
	SendDueNotice(ctx context.Context, agreement models.Agreement) error
	SendReceipt(ctx context.Context, donationID uuid.UUID) error
}

// Registry fans notifications out to every registered notifier. It is
// owned by the process entry point and passed by reference to the
// components that need it.
type Registry struct {
	notifiers map[string]Notifier
}

func NewRegistry() *Registry {
	return &Registry{notifiers: make(map[string]Notifier)}
}

// Register adds a named notifier. Later registrations replace earlier
// ones under the same name.
func (r *Registry) Register(name string, n Notifier) {
	r.notifiers[name] = n
}

// SendDueNotice fans out a due notice. Per-channel failures are logged
// and do not stop delivery on the remaining channels.
func (r *Registry) SendDueNotice(ctx context.Context, agreement models.Agreement) error {
	for name, n := range r.notifiers {
		if err := n.SendDueNotice(ctx, agreement); err != nil {
			zap.L().Warn("due notice delivery failed",
				zap.String("notifier", name),
				zap.String("agreement_id", agreement.ID.String()),
				zap.Error(err))
		}
	}
	return nil
}

// SendReceipt fans out a donation receipt.
func (r *Registry) SendReceipt(ctx context.Context, donationID uuid.UUID) error {
	for name, n := range r.notifiers {
		if err := n.SendReceipt(ctx, donationID); err != nil {
			zap.L().Warn("receipt delivery failed",
				zap.String("notifier", name),
				zap.String("donation_id", donationID.String()),
				zap.Error(err))
		}
	}
	return nil
}

// LogNotifier records notifications in the log only. Used when no
// delivery backend is configured.
type LogNotifier struct{}

func (LogNotifier) SendDueNotice(ctx context.Context, agreement models.Agreement) error {
	zap.L().Info("due notice",
		zap.String("agreement_id", agreement.ID.String()),
		zap.String("kid", agreement.KID))
	return nil
}

func (LogNotifier) SendReceipt(ctx context.Context, donationID uuid.UUID) error {
	zap.L().Info("donation receipt", zap.String("donation_id", donationID.String()))
	return nil
}
