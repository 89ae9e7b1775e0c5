package localstore

import (
	"context"
	"sort"

	"vendapos/internal/model"
	"vendapos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type cajaRepo struct{ s *Store }

func (r *cajaRepo) CreateSession(ctx context.Context, reg *model.CashRegisterSession) error {
	return r.s.update(func(d *snapshot) error {
		for _, other := range d.Registers {
			if other.Station == reg.Station && other.Status == model.RegisterOpen {
				return repository.ErrDuplicate
			}
		}
		if reg.ID == uuid.Nil {
			reg.ID = uuid.New()
		}
		if reg.OpenedAt.IsZero() {
			reg.OpenedAt = r.s.tick()
		}
		d.Registers[reg.ID] = clone(reg)
		return nil
	})
}

func (r *cajaRepo) FindOpen(ctx context.Context, station int) (*model.CashRegisterSession, error) {
	var out *model.CashRegisterSession
	err := r.s.view(func(d *snapshot) error {
		for _, reg := range d.Registers {
			if reg.Station == station && reg.Status == model.RegisterOpen {
				out = clone(reg)
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *cajaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.CashRegisterSession, error) {
	var out *model.CashRegisterSession
	err := r.s.view(func(d *snapshot) error {
		reg, ok := d.Registers[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = clone(reg)
		return nil
	})
	return out, err
}

func (r *cajaRepo) CloseSession(ctx context.Context, reg *model.CashRegisterSession) error {
	return r.s.update(func(d *snapshot) error {
		stored, ok := d.Registers[reg.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if stored.Status != model.RegisterOpen {
			return repository.ErrStaleState
		}
		d.Registers[reg.ID] = clone(reg)
		return nil
	})
}

func (r *cajaRepo) CreateMovement(ctx context.Context, m *model.CashMovement) error {
	return r.s.update(func(d *snapshot) error {
		if _, ok := d.Registers[m.CashRegisterID]; !ok {
			return repository.ErrNotFound
		}
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		m.CreatedAt = r.s.tick()
		d.Movements = append(d.Movements, *m)
		return nil
	})
}

func (r *cajaRepo) ListMovements(ctx context.Context, registerID uuid.UUID) ([]model.CashMovement, error) {
	var out []model.CashMovement
	_ = r.s.view(func(d *snapshot) error {
		for _, m := range d.Movements {
			if m.CashRegisterID == registerID {
				out = append(out, m)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *cajaRepo) SumMovementsByMethod(ctx context.Context, registerID uuid.UUID) (map[model.TenderMethod]decimal.Decimal, error) {
	sums := make(map[model.TenderMethod]decimal.Decimal)
	_ = r.s.view(func(d *snapshot) error {
		for _, m := range d.Movements {
			if m.CashRegisterID == registerID {
				sums[m.Method] = sums[m.Method].Add(m.Amount)
			}
		}
		return nil
	})
	return sums, nil
}

func (r *cajaRepo) ListClosed(ctx context.Context, station int, limit int) ([]model.CashRegisterSession, error) {
	var out []model.CashRegisterSession
	_ = r.s.view(func(d *snapshot) error {
		for _, reg := range d.Registers {
			if reg.Station == station && reg.Status == model.RegisterClosed {
				out = append(out, *clone(reg))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].ClosedAt, out[j].ClosedAt
		return a != nil && (b == nil || a.After(*b))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
