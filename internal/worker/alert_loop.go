package worker

// alert_loop.go
// Repeats the new-order notification until the order leaves pending (its
// alert token is cancelled by the realtime bus) or the repeat budget runs out.

import (
	"context"
	"time"

	"vendapos/internal/infra"
	"vendapos/internal/model"
	"vendapos/internal/realtime"

	"github.com/rs/zerolog/log"
)

// AlertConfig holds all dependencies for the alert goroutines.
type AlertConfig struct {
	Alerts     *realtime.AlertRegistry
	Notifier   infra.Notifier
	Interval   time.Duration
	MaxRepeats int
}

type AlertLoop struct {
	cfg AlertConfig
}

func NewAlertLoop(cfg AlertConfig) *AlertLoop {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.MaxRepeats <= 0 {
		cfg.MaxRepeats = 30
	}
	if cfg.Notifier == nil {
		cfg.Notifier = infra.NopNotifier{}
	}
	return &AlertLoop{cfg: cfg}
}

// OnNewOrder returns the callback registered with Bus.OnNewOrder. Alerts
// live until ctx is cancelled at the latest.
func (a *AlertLoop) OnNewOrder(ctx context.Context) realtime.OrderCallback {
	return func(o model.Order) {
		if o.Status != model.OrderPending {
			return
		}
		actx, release, ok := a.cfg.Alerts.Start(ctx, o.ID)
		if !ok {
			return
		}
		go a.run(actx, release, o)
	}
}

func (a *AlertLoop) run(ctx context.Context, release func(), o model.Order) {
	defer release()

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= a.cfg.MaxRepeats; attempt++ {
		n := infra.Notification{
			Kind:     "new_order",
			OrderID:  o.ID.String(),
			Customer: o.CustomerName,
			Channel:  string(o.Channel),
			Total:    o.TotalPrice.StringFixed(2),
			Attempt:  attempt,
			SentAt:   time.Now().UTC(),
		}
		if err := a.cfg.Notifier.Notify(ctx, n); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Str("order_id", n.OrderID).Int("attempt", attempt).Msg("alert_loop: notification failed")
		}

		select {
		case <-ctx.Done():
			log.Debug().Str("order_id", n.OrderID).Int("attempts", attempt).Msg("alert_loop: stopped")
			return
		case <-ticker.C:
		}
	}
	log.Info().Str("order_id", o.ID.String()).Int("max_repeats", a.cfg.MaxRepeats).Msg("alert_loop: repeat budget exhausted")
}
