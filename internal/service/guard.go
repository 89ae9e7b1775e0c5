package service

import (
	"context"
	"errors"
	"time"

	"vendapos/internal/apperror"
	"vendapos/internal/infra"
	"vendapos/internal/realtime"
	"vendapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Guard runs every persistence call under a per-call timeout and through a
// circuit breaker, and translates repository errors into the apperror
// taxonomy. One Guard is shared by all services of a process.
type Guard struct {
	timeout time.Duration
	cb      *infra.CircuitBreaker
}

func NewGuard(timeout time.Duration) *Guard {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	cfg := infra.DefaultCBConfig("persistence")
	cfg.IsFailure = isBackendFailure
	return &Guard{timeout: timeout, cb: infra.NewCircuitBreaker(cfg)}
}

// State exposes the breaker state for the health endpoint.
func (g *Guard) State() infra.CBState { return g.cb.State() }

// Do runs fn with the call timeout. op names the operation in errors.
func (g *Guard) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := g.cb.Execute(func() error {
		cctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return fn(cctx)
	})
	return translate(op, err)
}

// isBackendFailure reports whether err says the backend misbehaved, as
// opposed to a domain rejection that must not trip the breaker.
func isBackendFailure(err error) bool {
	if _, ok := apperror.KindOf(err); ok {
		return false
	}
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrStaleState),
		errors.Is(err, repository.ErrDuplicate),
		errors.Is(err, repository.ErrInsufficientBalance):
		return false
	}
	return true
}

func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.KindOf(err); ok {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound(op + ": registro não encontrado")
	case errors.Is(err, repository.ErrStaleState):
		return apperror.Conflict(apperror.CodeStaleWrite, op+": o registro foi alterado por outra operação")
	case errors.Is(err, repository.ErrDuplicate):
		return apperror.Conflict(apperror.CodeDuplicate, op+": registro duplicado")
	case errors.Is(err, repository.ErrInsufficientBalance):
		return apperror.Validation("saldo de cashback insuficiente")
	}
	return apperror.Unavailable(op, err)
}

// publish hands a change to pub after a successful write. Failures are
// logged and swallowed.
func publish(ctx context.Context, pub realtime.Publisher, entity realtime.EntityType, kind realtime.EventKind, id uuid.UUID, version time.Time, v interface{}) {
	if pub == nil {
		return
	}
	c, err := realtime.NewChange(entity, kind, id, version, v)
	if err == nil {
		err = pub.Publish(ctx, c)
	}
	if err != nil {
		log.Warn().Err(err).Str("entity", string(entity)).Str("id", id.String()).Msg("realtime: publish failed")
	}
}
