package localstore

import (
	"context"
	"sort"

	"vendapos/internal/model"
	"vendapos/internal/repository"

	"github.com/google/uuid"
)

type productRepo struct{ s *Store }

func (r *productRepo) Create(ctx context.Context, p *model.Product) error {
	return r.s.update(func(d *snapshot) error {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		now := r.s.tick()
		p.CreatedAt, p.UpdatedAt = now, now
		d.Products[p.ID] = clone(p)
		return nil
	})
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var out *model.Product
	err := r.s.view(func(d *snapshot) error {
		p, ok := d.Products[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = clone(p)
		return nil
	})
	return out, err
}

func (r *productRepo) List(ctx context.Context, activeOnly bool) ([]model.Product, error) {
	var out []model.Product
	_ = r.s.view(func(d *snapshot) error {
		for _, p := range d.Products {
			if activeOnly && !p.Active {
				continue
			}
			out = append(out, *clone(p))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *productRepo) Update(ctx context.Context, p *model.Product) error {
	return r.s.update(func(d *snapshot) error {
		if _, ok := d.Products[p.ID]; !ok {
			return repository.ErrNotFound
		}
		p.UpdatedAt = r.s.tick()
		d.Products[p.ID] = clone(p)
		return nil
	})
}
