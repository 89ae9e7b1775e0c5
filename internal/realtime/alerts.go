package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// AlertRegistry holds one cancellation token per order with a running
// new-order alert. Cancelling the token stops the alert loop.
type AlertRegistry struct {
	mu     sync.Mutex
	seq    uint64
	active map[uuid.UUID]alertToken
}

type alertToken struct {
	seq    uint64
	cancel context.CancelFunc
}

func NewAlertRegistry() *AlertRegistry {
	return &AlertRegistry{active: make(map[uuid.UUID]alertToken)}
}

// Start registers a token for orderID and returns its context together with
// a release func the alert loop calls when it ends on its own. ok is false
// when an alert for orderID is already running.
func (r *AlertRegistry) Start(parent context.Context, orderID uuid.UUID) (ctx context.Context, release func(), ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, running := r.active[orderID]; running {
		return nil, nil, false
	}
	ctx, cancel := context.WithCancel(parent)
	r.seq++
	tok := alertToken{seq: r.seq, cancel: cancel}
	r.active[orderID] = tok

	release = func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if cur, found := r.active[orderID]; found && cur.seq == tok.seq {
			delete(r.active, orderID)
		}
		cancel()
	}
	return ctx, release, true
}

// Cancel stops the alert for orderID. It reports whether one was running.
func (r *AlertRegistry) Cancel(orderID uuid.UUID) bool {
	r.mu.Lock()
	tok, ok := r.active[orderID]
	delete(r.active, orderID)
	r.mu.Unlock()
	if ok {
		tok.cancel()
	}
	return ok
}

func (r *AlertRegistry) Active(orderID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[orderID]
	return ok
}

// CancelAll stops every running alert (shutdown).
func (r *AlertRegistry) CancelAll() {
	r.mu.Lock()
	toks := r.active
	r.active = make(map[uuid.UUID]alertToken)
	r.mu.Unlock()
	for _, tok := range toks {
		tok.cancel()
	}
}
