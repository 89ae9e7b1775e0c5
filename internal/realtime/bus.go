package realtime

import (
	"context"
	"sort"
	"sync"
	"time"

	"vendapos/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Subscriber receives every accepted change on the consumer goroutine.
// It must not block.
type Subscriber func(Change)

// OrderCallback runs once for every newly inserted order.
type OrderCallback func(model.Order)

type seenEntry struct {
	fingerprint string
	version     time.Time
}

// Bus is the single dedup boundary for all change sources. Changes are
// applied by one consumer goroutine in receipt order.
type Bus struct {
	in     chan Change
	alerts *AlertRegistry

	mu     sync.RWMutex
	seen   map[string]seenEntry
	orders map[uuid.UUID]model.Order
	tables map[uuid.UUID]model.Table

	obsMu    sync.RWMutex
	nextID   int
	subs     map[int]Subscriber
	newOrder map[int]OrderCallback
}

// NewBus creates a bus with an input buffer of size buffer.
func NewBus(alerts *AlertRegistry, buffer int) *Bus {
	if alerts == nil {
		alerts = NewAlertRegistry()
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &Bus{
		in:       make(chan Change, buffer),
		alerts:   alerts,
		seen:     make(map[string]seenEntry),
		orders:   make(map[uuid.UUID]model.Order),
		tables:   make(map[uuid.UUID]model.Table),
		subs:     make(map[int]Subscriber),
		newOrder: make(map[int]OrderCallback),
	}
}

func (b *Bus) Alerts() *AlertRegistry { return b.alerts }

// Submit queues c for the consumer. It blocks while the buffer is full.
func (b *Bus) Submit(ctx context.Context, c Change) error {
	select {
	case b.in <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the consumer loop. It returns when ctx is cancelled.
func (b *Bus) Run(ctx context.Context) {
	log.Info().Msg("realtime: bus started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("realtime: bus shutting down")
			return
		case c := <-b.in:
			b.Apply(c)
		}
	}
}

// Apply runs one change through dedup and fan-out and reports whether it
// was accepted. Run calls it; tests may call it directly from one goroutine.
func (b *Bus) Apply(c Change) bool {
	if !b.accept(c) {
		return false
	}

	switch c.Entity {
	case EntityOrder:
		var o model.Order
		if err := c.Decode(&o); err != nil {
			log.Warn().Err(err).Msg("realtime: dropping undecodable order change")
			return false
		}
		b.mu.Lock()
		_, existed := b.orders[o.ID]
		b.orders[o.ID] = o
		b.mu.Unlock()

		if o.Status != model.OrderPending {
			if b.alerts.Cancel(o.ID) {
				log.Debug().Str("order_id", o.ID.String()).Str("status", o.Status.String()).Msg("realtime: alert cancelled")
			}
		}
		if c.Kind == EventInsert && !existed {
			for _, fn := range b.orderCallbacks() {
				fn(o)
			}
		}
	case EntityTable:
		var t model.Table
		if err := c.Decode(&t); err != nil {
			log.Warn().Err(err).Msg("realtime: dropping undecodable table change")
			return false
		}
		b.mu.Lock()
		b.tables[t.ID] = t
		b.mu.Unlock()
	case EntityTableSession, EntityRegister:
	default:
		log.Debug().Str("entity", string(c.Entity)).Msg("realtime: unknown entity, forwarding only")
	}

	for _, fn := range b.subscribers() {
		fn(c)
	}
	return true
}

// accept drops changes whose payload is unchanged or whose version is older
// than the last accepted one for the same entity.
func (b *Bus) accept(c Change) bool {
	key := c.Key()
	fp := c.fingerprint()

	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.seen[key]; ok {
		if prev.fingerprint == fp || c.Version.Before(prev.version) {
			return false
		}
	}
	b.seen[key] = seenEntry{fingerprint: fp, version: c.Version}
	return true
}

// Seed loads the initial order collection without firing callbacks.
func (b *Bus) Seed(orders []model.Order) {
	for _, o := range orders {
		c, err := NewChange(EntityOrder, EventUpdate, o.ID, o.UpdatedAt, o)
		if err != nil {
			continue
		}
		b.mu.Lock()
		b.seen[c.Key()] = seenEntry{fingerprint: c.fingerprint(), version: c.Version}
		b.orders[o.ID] = o
		b.mu.Unlock()
	}
}

// Orders returns the in-memory order collection, newest first.
func (b *Bus) Orders() []model.Order {
	b.mu.RLock()
	out := make([]model.Order, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, o)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (b *Bus) Order(id uuid.UUID) (model.Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[id]
	return o, ok
}

// Tables returns the in-memory table collection ordered by number.
func (b *Bus) Tables() []model.Table {
	b.mu.RLock()
	out := make([]model.Table, 0, len(b.tables))
	for _, t := range b.tables {
		out = append(out, t)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// ── Observers ─────────────────────────────────────────────────────────────────

// Subscribe registers fn and returns the func that removes it.
func (b *Bus) Subscribe(fn Subscriber) (unsubscribe func()) {
	b.obsMu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.obsMu.Unlock()
	return func() {
		b.obsMu.Lock()
		delete(b.subs, id)
		b.obsMu.Unlock()
	}
}

// OnNewOrder registers fn for order inserts and returns the func that removes it.
func (b *Bus) OnNewOrder(fn OrderCallback) (unsubscribe func()) {
	b.obsMu.Lock()
	id := b.nextID
	b.nextID++
	b.newOrder[id] = fn
	b.obsMu.Unlock()
	return func() {
		b.obsMu.Lock()
		delete(b.newOrder, id)
		b.obsMu.Unlock()
	}
}

// subscribers and orderCallbacks return registration-ordered snapshots so
// callbacks may unsubscribe themselves.
func (b *Bus) subscribers() []Subscriber {
	b.obsMu.RLock()
	defer b.obsMu.RUnlock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Subscriber, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.subs[id])
	}
	return out
}

func (b *Bus) orderCallbacks() []OrderCallback {
	b.obsMu.RLock()
	defer b.obsMu.RUnlock()
	ids := make([]int, 0, len(b.newOrder))
	for id := range b.newOrder {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]OrderCallback, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.newOrder[id])
	}
	return out
}

// BusPublisher feeds changes straight into an in-process bus. It is the
// publisher used with the local storage backend.
type BusPublisher struct{ bus *Bus }

func NewBusPublisher(b *Bus) *BusPublisher { return &BusPublisher{bus: b} }

func (p *BusPublisher) Publish(ctx context.Context, c Change) error { return p.bus.Submit(ctx, c) }
