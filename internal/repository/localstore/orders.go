package localstore

import (
	"context"
	"sort"
	"time"

	"vendapos/internal/model"
	"vendapos/internal/repository"

	"github.com/google/uuid"
)

type orderRepo struct{ s *Store }

func (r *orderRepo) Create(ctx context.Context, o *model.Order) error {
	return r.s.update(func(d *snapshot) error {
		if o.ID == uuid.Nil {
			o.ID = uuid.New()
		}
		if _, ok := d.Orders[o.ID]; ok {
			return repository.ErrDuplicate
		}
		now := r.s.tick()
		o.CreatedAt, o.UpdatedAt = now, now
		for i := range o.Items {
			stampItem(&o.Items[i], o.ID, model.OwnerOrder, now)
		}
		for i := range o.Payments {
			stampTender(&o.Payments[i], o.ID, model.OwnerOrder)
		}
		d.Orders[o.ID] = clone(o)
		return nil
	})
}

func (r *orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var out *model.Order
	err := r.s.view(func(d *snapshot) error {
		o, ok := d.Orders[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = clone(o)
		return nil
	})
	return out, err
}

func (r *orderRepo) Transition(ctx context.Context, id uuid.UUID, to model.OrderStatus, at time.Time, guard repository.StatusGuard) (*model.Order, error) {
	var out *model.Order
	err := r.s.update(func(d *snapshot) error {
		o, ok := d.Orders[id]
		if !ok {
			return repository.ErrNotFound
		}
		if guard != nil {
			if err := guard(o.Status); err != nil {
				return err
			}
		}
		o.StatusHistory = append(o.StatusHistory, model.OrderStatusEvent{
			ID: uuid.New(), OrderID: id, From: o.Status, To: to, ChangedAt: at,
		})
		o.Status = to
		o.UpdatedAt = r.s.tick()
		out = clone(o)
		return nil
	})
	return out, err
}

func (r *orderRepo) LinkOrphans(ctx context.Context, registerID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.s.update(func(d *snapshot) error {
		for id, o := range d.Orders {
			if o.CashRegisterID != nil {
				continue
			}
			reg := registerID
			o.CashRegisterID = &reg
			o.UpdatedAt = r.s.tick()
			ids = append(ids, id)
		}
		return nil
	})
	return ids, err
}

func (r *orderRepo) ListVisible(ctx context.Context, registerID *uuid.UUID, f repository.OrderFilter) ([]model.Order, error) {
	return r.list(func(o *model.Order) bool {
		if o.CashRegisterID != nil && (registerID == nil || *o.CashRegisterID != *registerID) {
			return false
		}
		if f.Status != "" && o.Status != f.Status {
			return false
		}
		if f.Channel != "" && o.Channel != f.Channel {
			return false
		}
		return true
	}, func(a, b *model.Order) bool { return a.CreatedAt.After(b.CreatedAt) }, f.Limit)
}

func (r *orderRepo) ListUpdatedSince(ctx context.Context, since time.Time) ([]model.Order, error) {
	return r.list(func(o *model.Order) bool { return o.UpdatedAt.After(since) },
		func(a, b *model.Order) bool { return a.UpdatedAt.Before(b.UpdatedAt) }, 0)
}

func (r *orderRepo) ListByRegister(ctx context.Context, registerID uuid.UUID) ([]model.Order, error) {
	return r.list(func(o *model.Order) bool { return o.CashRegisterID != nil && *o.CashRegisterID == registerID },
		func(a, b *model.Order) bool { return a.CreatedAt.Before(b.CreatedAt) }, 0)
}

func (r *orderRepo) list(keep func(*model.Order) bool, less func(a, b *model.Order) bool, limit int) ([]model.Order, error) {
	var matched []*model.Order
	_ = r.s.view(func(d *snapshot) error {
		for _, o := range d.Orders {
			if keep(o) {
				matched = append(matched, clone(o))
			}
		}
		return nil
	})
	sort.Slice(matched, func(i, j int) bool { return less(matched[i], matched[j]) })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]model.Order, len(matched))
	for i, o := range matched {
		out[i] = *o
	}
	return out, nil
}

func stampItem(it *model.SaleItem, ownerID uuid.UUID, ownerType string, at time.Time) {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	it.OwnerID = ownerID
	it.OwnerType = ownerType
	if it.CreatedAt.IsZero() {
		it.CreatedAt = at
	}
	for i := range it.Complements {
		if it.Complements[i].ID == uuid.Nil {
			it.Complements[i].ID = uuid.New()
		}
		it.Complements[i].SaleItemID = it.ID
	}
}

func stampTender(t *model.Tender, ownerID uuid.UUID, ownerType string) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.OwnerID = ownerID
	t.OwnerType = ownerType
}
