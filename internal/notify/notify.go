// Package notify delivers combo events to the cashier UI and downstream consumers.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"combopos/backend/internal/logging"
)

const (
	KindComboApplied     = "combo_applied"
	KindComboApplyFailed = "combo_apply_failed"
	KindComboDismissed   = "combo_dismissed"
	KindComboCustomized  = "combo_customized"
	KindComboReverted    = "combo_reverted"
)

type Event struct {
	Kind          string    `json:"kind"`
	StoreID       string    `json:"store_id"`
	OrderID       string    `json:"order_id"`
	ComboID       string    `json:"combo_id"`
	ComboName     string    `json:"combo_name"`
	LineID        string    `json:"line_id,omitempty"`
	OriginalPrice int64     `json:"original_price,omitempty"`
	FinalPrice    int64     `json:"final_price,omitempty"`
	Message       string    `json:"message"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Notifier must not block the caller for long; failures are reported, never retried.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Message renders the cashier-facing text for an event.
func Message(kind string, comboName string) string {
	switch kind {
	case KindComboApplied:
		return fmt.Sprintf("Promotion %q applied", comboName)
	case KindComboApplyFailed:
		return fmt.Sprintf("Unable to apply promotion %q", comboName)
	case KindComboDismissed:
		return fmt.Sprintf("Promotion %q dismissed", comboName)
	case KindComboCustomized:
		return fmt.Sprintf("Promotion %q updated", comboName)
	case KindComboReverted:
		return fmt.Sprintf("Promotion %q removed", comboName)
	default:
		return comboName
	}
}

type Noop struct{}

func (Noop) Notify(_ context.Context, _ Event) error { return nil }

type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logging.OrNop(logger)}
}

func (n *LogNotifier) Notify(_ context.Context, event Event) error {
	fields := []zap.Field{
		zap.String("kind", event.Kind),
		zap.String("order_id", event.OrderID),
		zap.String("combo_id", event.ComboID),
	}
	if event.LineID != "" {
		fields = append(fields, zap.String("line_id", event.LineID))
	}
	if event.Kind == KindComboApplied || event.Kind == KindComboCustomized {
		fields = append(fields, zap.Int64("original_price", event.OriginalPrice), zap.Int64("final_price", event.FinalPrice))
	}
	if event.Kind == KindComboApplyFailed {
		n.logger.Warn(event.Message, fields...)
		return nil
	}
	n.logger.Info(event.Message, fields...)
	return nil
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
