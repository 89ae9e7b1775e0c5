// Package repository defines the persistence contract of the sale core and
// its PostgreSQL (gorm) implementation. The local-cache implementation lives
// in repository/localstore; the backend is chosen once at process start.
package repository

import (
	"context"
	"errors"
	"time"

	"vendapos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrStaleState means a conditional write lost against a concurrent change.
	ErrStaleState          = errors.New("stale state")
	ErrDuplicate           = errors.New("duplicate record")
	ErrInsufficientBalance = errors.New("insufficient cashback balance")
)

// OrderFilter narrows order listings. Zero values mean "any".
type OrderFilter struct {
	Status  model.OrderStatus
	Channel model.Channel
	Limit   int
}

// StatusGuard inspects the current status of an order, read under lock,
// and rejects the transition by returning an error.
type StatusGuard func(current model.OrderStatus) error

type OrderRepository interface {
	// Create inserts the order with its items and payments and fills in
	// server-assigned ids and timestamps.
	Create(ctx context.Context, o *model.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	// Transition writes the new status and its audit row as one unit.
	Transition(ctx context.Context, id uuid.UUID, to model.OrderStatus, at time.Time, guard StatusGuard) (*model.Order, error)
	// LinkOrphans attaches every unlinked order to registerID and returns the
	// ids it touched.
	LinkOrphans(ctx context.Context, registerID uuid.UUID) ([]uuid.UUID, error)
	// ListVisible returns orders linked to registerID or unlinked, newest
	// first. A nil registerID returns unlinked orders only.
	ListVisible(ctx context.Context, registerID *uuid.UUID, f OrderFilter) ([]model.Order, error)
	ListUpdatedSince(ctx context.Context, since time.Time) ([]model.Order, error)
	ListByRegister(ctx context.Context, registerID uuid.UUID) ([]model.Order, error)
}

// SessionFunc runs against a table and its current session, both read under
// lock. s is nil when the table has no current sale. fn may mutate s;
// returning an error aborts the whole unit.
type SessionFunc func(t *model.Table, s *model.TableSession) error

// CloseFunc settles s and returns the register movements to record with it.
type CloseFunc func(t *model.Table, s *model.TableSession) ([]model.CashMovement, error)

type TableRepository interface {
	CreateTable(ctx context.Context, t *model.Table) error
	FindTable(ctx context.Context, id uuid.UUID) (*model.Table, error)
	ListTables(ctx context.Context) ([]model.Table, error)
	FindSession(ctx context.Context, id uuid.UUID) (*model.TableSession, error)

	// OpenSession inserts s and moves the table livre → ocupada with
	// current_sale_id = s.ID. ErrStaleState when the table is not livre.
	OpenSession(ctx context.Context, tableID uuid.UUID, s *model.TableSession) (*model.Table, error)
	// SetStatus moves the table from → to. ErrStaleState when it is not in from.
	SetStatus(ctx context.Context, tableID uuid.UUID, from, to model.TableStatus) (*model.Table, error)
	// MutateItems locks the table's current session and lets fn edit s.Items
	// and recompute the totals. Added and removed items are persisted with
	// the new totals as one unit; added items must carry their id.
	MutateItems(ctx context.Context, tableID uuid.UUID, fn SessionFunc) (*model.TableSession, error)
	// CloseSession lets fn settle the session, then persists it as closed with
	// its payments and movements, and leaves the table in limpeza with no
	// current sale.
	CloseSession(ctx context.Context, tableID uuid.UUID, fn CloseFunc) (*model.TableSession, error)
	// CancelSession lets fn mark the session cancelled, then frees the table.
	CancelSession(ctx context.Context, tableID uuid.UUID, fn SessionFunc) (*model.TableSession, error)
	// FreeTable moves the table to livre from any state and clears its
	// current sale. A still-open session is cancelled with reason.
	FreeTable(ctx context.Context, tableID uuid.UUID, reason string) (*model.Table, *model.TableSession, error)

	ListSessionsUpdatedSince(ctx context.Context, since time.Time) ([]model.TableSession, error)
	ListSessionsByRegister(ctx context.Context, registerID uuid.UUID) ([]model.TableSession, error)
}

type CajaRepository interface {
	// CreateSession fails with ErrDuplicate when the station already has an open register.
	CreateSession(ctx context.Context, s *model.CashRegisterSession) error
	FindOpen(ctx context.Context, station int) (*model.CashRegisterSession, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.CashRegisterSession, error)
	// CloseSession persists the closing figures if the session is still open.
	CloseSession(ctx context.Context, s *model.CashRegisterSession) error
	CreateMovement(ctx context.Context, m *model.CashMovement) error
	ListMovements(ctx context.Context, registerID uuid.UUID) ([]model.CashMovement, error)
	SumMovementsByMethod(ctx context.Context, registerID uuid.UUID) (map[model.TenderMethod]decimal.Decimal, error)
	ListClosed(ctx context.Context, station int, limit int) ([]model.CashRegisterSession, error)
}

type CashbackRepository interface {
	FindAccount(ctx context.Context, phone string) (*model.CashbackAccount, error)
	// Apply records t and moves the balance as one unit. A redeem above the
	// balance fails with ErrInsufficientBalance.
	Apply(ctx context.Context, t *model.CashbackTransaction) (*model.CashbackAccount, error)
	ListTransactions(ctx context.Context, phone string) ([]model.CashbackTransaction, error)
}

type ProductRepository interface {
	Create(ctx context.Context, p *model.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	List(ctx context.Context, activeOnly bool) ([]model.Product, error)
	Update(ctx context.Context, p *model.Product) error
}

// Set bundles one backend's repositories.
type Set struct {
	Orders   OrderRepository
	Tables   TableRepository
	Caja     CajaRepository
	Cashback CashbackRepository
	Products ProductRepository
}
