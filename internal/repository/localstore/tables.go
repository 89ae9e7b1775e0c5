package localstore

import (
	"context"
	"sort"
	"time"

	"vendapos/internal/model"
	"vendapos/internal/repository"

	"github.com/google/uuid"
)

type tableRepo struct{ s *Store }

func (r *tableRepo) CreateTable(ctx context.Context, t *model.Table) error {
	return r.s.update(func(d *snapshot) error {
		for _, existing := range d.Tables {
			if existing.Number == t.Number {
				return repository.ErrDuplicate
			}
		}
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		if t.Status == "" {
			t.Status = model.TableLivre
		}
		now := r.s.tick()
		t.CreatedAt, t.UpdatedAt = now, now
		d.Tables[t.ID] = clone(t)
		return nil
	})
}

func (r *tableRepo) FindTable(ctx context.Context, id uuid.UUID) (*model.Table, error) {
	var out *model.Table
	err := r.s.view(func(d *snapshot) error {
		t, ok := d.Tables[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = clone(t)
		return nil
	})
	return out, err
}

func (r *tableRepo) ListTables(ctx context.Context) ([]model.Table, error) {
	var out []model.Table
	_ = r.s.view(func(d *snapshot) error {
		for _, t := range d.Tables {
			out = append(out, *clone(t))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *tableRepo) FindSession(ctx context.Context, id uuid.UUID) (*model.TableSession, error) {
	var out *model.TableSession
	err := r.s.view(func(d *snapshot) error {
		s, ok := d.Sessions[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = clone(s)
		return nil
	})
	return out, err
}

// current returns the stored table and a working copy of its current session.
func current(d *snapshot, tableID uuid.UUID) (*model.Table, *model.TableSession, error) {
	t, ok := d.Tables[tableID]
	if !ok {
		return nil, nil, repository.ErrNotFound
	}
	if t.CurrentSaleID == nil {
		return t, nil, nil
	}
	s, ok := d.Sessions[*t.CurrentSaleID]
	if !ok {
		return nil, nil, repository.ErrNotFound
	}
	return t, clone(s), nil
}

func (r *tableRepo) OpenSession(ctx context.Context, tableID uuid.UUID, s *model.TableSession) (*model.Table, error) {
	var out *model.Table
	err := r.s.update(func(d *snapshot) error {
		t, ok := d.Tables[tableID]
		if !ok {
			return repository.ErrNotFound
		}
		if t.Status != model.TableLivre {
			return repository.ErrStaleState
		}
		for _, other := range d.Sessions {
			if other.TableID == tableID && other.Status == model.SaleOpen {
				return repository.ErrStaleState
			}
		}
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		now := r.s.tick()
		s.TableID = t.ID
		s.TableNumber = t.Number
		s.Status = model.SaleOpen
		s.UpdatedAt = now
		if s.OpenedAt.IsZero() {
			s.OpenedAt = now
		}
		d.Sessions[s.ID] = clone(s)

		id := s.ID
		t.Status = model.TableOcupada
		t.CurrentSaleID = &id
		t.UpdatedAt = now
		out = clone(t)
		return nil
	})
	return out, err
}

func (r *tableRepo) SetStatus(ctx context.Context, tableID uuid.UUID, from, to model.TableStatus) (*model.Table, error) {
	var out *model.Table
	err := r.s.update(func(d *snapshot) error {
		t, ok := d.Tables[tableID]
		if !ok {
			return repository.ErrNotFound
		}
		if t.Status != from {
			return repository.ErrStaleState
		}
		t.Status = to
		t.UpdatedAt = r.s.tick()
		out = clone(t)
		return nil
	})
	return out, err
}

func (r *tableRepo) MutateItems(ctx context.Context, tableID uuid.UUID, fn repository.SessionFunc) (*model.TableSession, error) {
	var out *model.TableSession
	err := r.s.update(func(d *snapshot) error {
		t, s, err := current(d, tableID)
		if err != nil {
			return err
		}
		if err := fn(clone(t), s); err != nil {
			return err
		}
		if s == nil || s.Status != model.SaleOpen {
			return repository.ErrStaleState
		}
		now := r.s.tick()
		for i := range s.Items {
			stampItem(&s.Items[i], s.ID, model.OwnerTableSession, now)
		}
		s.UpdatedAt = now
		d.Sessions[s.ID] = clone(s)
		out = s
		return nil
	})
	return out, err
}

func (r *tableRepo) CloseSession(ctx context.Context, tableID uuid.UUID, fn repository.CloseFunc) (*model.TableSession, error) {
	var out *model.TableSession
	err := r.s.update(func(d *snapshot) error {
		t, s, err := current(d, tableID)
		if err != nil {
			return err
		}
		movements, err := fn(clone(t), s)
		if err != nil {
			return err
		}
		if s == nil {
			return repository.ErrStaleState
		}
		now := r.s.tick()
		for i := range s.Payments {
			stampTender(&s.Payments[i], s.ID, model.OwnerTableSession)
		}
		s.UpdatedAt = now
		d.Sessions[s.ID] = clone(s)
		for _, m := range movements {
			if m.ID == uuid.Nil {
				m.ID = uuid.New()
			}
			m.CreatedAt = now
			d.Movements = append(d.Movements, m)
		}
		t.Status = model.TableLimpeza
		t.CurrentSaleID = nil
		t.UpdatedAt = now
		out = s
		return nil
	})
	return out, err
}

func (r *tableRepo) CancelSession(ctx context.Context, tableID uuid.UUID, fn repository.SessionFunc) (*model.TableSession, error) {
	var out *model.TableSession
	err := r.s.update(func(d *snapshot) error {
		t, s, err := current(d, tableID)
		if err != nil {
			return err
		}
		if err := fn(clone(t), s); err != nil {
			return err
		}
		if s == nil {
			return repository.ErrStaleState
		}
		now := r.s.tick()
		s.UpdatedAt = now
		d.Sessions[s.ID] = clone(s)
		t.Status = model.TableLivre
		t.CurrentSaleID = nil
		t.UpdatedAt = now
		out = s
		return nil
	})
	return out, err
}

func (r *tableRepo) FreeTable(ctx context.Context, tableID uuid.UUID, reason string) (*model.Table, *model.TableSession, error) {
	var (
		table     *model.Table
		abandoned *model.TableSession
	)
	err := r.s.update(func(d *snapshot) error {
		t, s, err := current(d, tableID)
		if err != nil {
			return err
		}
		now := r.s.tick()
		if s != nil && s.Status == model.SaleOpen {
			s.Status = model.SaleCancelled
			s.CancelReason = &reason
			s.ClosedAt = &now
			s.UpdatedAt = now
			d.Sessions[s.ID] = clone(s)
			abandoned = s
		}
		t.Status = model.TableLivre
		t.CurrentSaleID = nil
		t.UpdatedAt = now
		table = clone(t)
		return nil
	})
	return table, abandoned, err
}

func (r *tableRepo) ListSessionsUpdatedSince(ctx context.Context, since time.Time) ([]model.TableSession, error) {
	return r.listSessions(func(s *model.TableSession) bool { return s.UpdatedAt.After(since) },
		func(a, b model.TableSession) bool { return a.UpdatedAt.Before(b.UpdatedAt) })
}

func (r *tableRepo) ListSessionsByRegister(ctx context.Context, registerID uuid.UUID) ([]model.TableSession, error) {
	return r.listSessions(func(s *model.TableSession) bool {
		return s.Status == model.SaleClosed && s.CashRegisterID != nil && *s.CashRegisterID == registerID
	}, func(a, b model.TableSession) bool { return a.UpdatedAt.Before(b.UpdatedAt) })
}

func (r *tableRepo) listSessions(keep func(*model.TableSession) bool, less func(a, b model.TableSession) bool) ([]model.TableSession, error) {
	var out []model.TableSession
	_ = r.s.view(func(d *snapshot) error {
		for _, s := range d.Sessions {
			if keep(s) {
				out = append(out, *clone(s))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, nil
}
