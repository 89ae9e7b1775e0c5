package realtime

import (
	"context"
	"time"

	"vendapos/internal/repository"

	"github.com/rs/zerolog/log"
)

// Poller is the fallback source: every interval it reads rows updated after
// its watermark minus overlap and forwards them. The bus drops what a push
// source or an earlier poll already delivered.
//
// updated_at is stamped before the writing transaction commits, so a row can
// become visible after a newer one was already polled. overlap must cover the
// longest such window, which the persistence timeout bounds.
type Poller struct {
	orders   repository.OrderRepository
	tables   repository.TableRepository
	interval time.Duration
	overlap  time.Duration
	// orders and sessions advance independently
	orderMark   time.Time
	sessionMark time.Time
}

func NewPoller(orders repository.OrderRepository, tables repository.TableRepository, interval, overlap time.Duration, since time.Time) *Poller {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Poller{orders: orders, tables: tables, interval: interval, overlap: overlap, orderMark: since, sessionMark: since}
}

func (p *Poller) Run(ctx context.Context, sink Sink) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	log.Info().Dur("interval", p.interval).Dur("overlap", p.overlap).Msg("realtime: poller started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.Poll(ctx, sink); err != nil {
				log.Warn().Err(err).Msg("realtime: poll failed")
			}
		}
	}
}

// Poll runs one round. A watermark only advances past rows that were
// handed to sink; rows inside the overlap are handed over again.
func (p *Poller) Poll(ctx context.Context, sink Sink) error {
	orders, err := p.orders.ListUpdatedSince(ctx, p.orderMark.Add(-p.overlap))
	if err != nil {
		return err
	}
	for i := range orders {
		o := &orders[i]
		kind := EventUpdate
		if o.CreatedAt.Equal(o.UpdatedAt) {
			kind = EventInsert
		}
		c, err := NewChange(EntityOrder, kind, o.ID, o.UpdatedAt, o)
		if err != nil {
			return err
		}
		if err := sink(ctx, c); err != nil {
			return err
		}
		if o.UpdatedAt.After(p.orderMark) {
			p.orderMark = o.UpdatedAt
		}
	}

	if p.tables == nil {
		return nil
	}
	sessions, err := p.tables.ListSessionsUpdatedSince(ctx, p.sessionMark.Add(-p.overlap))
	if err != nil {
		return err
	}
	for i := range sessions {
		s := &sessions[i]
		c, err := NewChange(EntityTableSession, EventUpdate, s.ID, s.UpdatedAt, s)
		if err != nil {
			return err
		}
		if err := sink(ctx, c); err != nil {
			return err
		}
		if s.UpdatedAt.After(p.sessionMark) {
			p.sessionMark = s.UpdatedAt
		}
	}
	return nil
}

// Watermark returns the order watermark.
func (p *Poller) Watermark() time.Time { return p.orderMark }
