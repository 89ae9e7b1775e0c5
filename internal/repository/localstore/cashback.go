package localstore

import (
	"context"
	"sort"

	"vendapos/internal/model"
	"vendapos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type cashbackRepo struct{ s *Store }

func (r *cashbackRepo) FindAccount(ctx context.Context, phone string) (*model.CashbackAccount, error) {
	var out *model.CashbackAccount
	err := r.s.view(func(d *snapshot) error {
		a, ok := d.Accounts[phone]
		if !ok {
			return repository.ErrNotFound
		}
		out = clone(a)
		return nil
	})
	return out, err
}

func (r *cashbackRepo) Apply(ctx context.Context, t *model.CashbackTransaction) (*model.CashbackAccount, error) {
	var out *model.CashbackAccount
	err := r.s.update(func(d *snapshot) error {
		a, ok := d.Accounts[t.Phone]
		if !ok {
			a = &model.CashbackAccount{Phone: t.Phone, Balance: decimal.Zero}
		}
		next := a.Balance.Add(t.Signed())
		if next.IsNegative() {
			return repository.ErrInsufficientBalance
		}
		now := r.s.tick()
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		t.CreatedAt = now
		d.CashbackTx = append(d.CashbackTx, *t)

		a.Balance = next
		a.UpdatedAt = now
		d.Accounts[t.Phone] = a
		out = clone(a)
		return nil
	})
	return out, err
}

func (r *cashbackRepo) ListTransactions(ctx context.Context, phone string) ([]model.CashbackTransaction, error) {
	var out []model.CashbackTransaction
	_ = r.s.view(func(d *snapshot) error {
		for _, t := range d.CashbackTx {
			if t.Phone == phone {
				out = append(out, t)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
