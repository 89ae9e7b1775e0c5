package repository

import (
	"context"
	"time"

	"vendapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type orderRepo struct{ db *gorm.DB }

func NewOrderRepository(db *gorm.DB) OrderRepository { return &orderRepo{db: db} }

func preloadOrder(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Items.Complements").
		Preload("Payments").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB { return db.Order("changed_at ASC") })
}

func (r *orderRepo) Create(ctx context.Context, o *model.Order) error {
	return mapErr(r.db.WithContext(ctx).Create(o).Error)
}

func (r *orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var o model.Order
	if err := preloadOrder(r.db.WithContext(ctx)).First(&o, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &o, nil
}

func (r *orderRepo) Transition(ctx context.Context, id uuid.UUID, to model.OrderStatus, at time.Time, guard StatusGuard) (*model.Order, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.Order
		if err := tx.Clauses(forUpdate()).Select("id", "status").First(&cur, "id = ?", id).Error; err != nil {
			return mapErr(err)
		}
		if guard != nil {
			if err := guard(cur.Status); err != nil {
				return err
			}
		}
		res := tx.Model(&model.Order{}).
			Where("id = ? AND status = ?", id, cur.Status).
			Updates(map[string]interface{}{"status": to, "updated_at": at})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleState
		}
		return tx.Create(&model.OrderStatusEvent{OrderID: id, From: cur.Status, To: to, ChangedAt: at}).Error
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *orderRepo) LinkOrphans(ctx context.Context, registerID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Order{}).Clauses(forUpdate()).
			Where("cash_register_id IS NULL").
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&model.Order{}).
			Where("id IN ? AND cash_register_id IS NULL", ids).
			Updates(map[string]interface{}{"cash_register_id": registerID, "updated_at": time.Now()}).Error
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *orderRepo) ListVisible(ctx context.Context, registerID *uuid.UUID, f OrderFilter) ([]model.Order, error) {
	q := preloadOrder(r.db.WithContext(ctx)).Model(&model.Order{})
	if registerID != nil {
		q = q.Where("cash_register_id = ? OR cash_register_id IS NULL", *registerID)
	} else {
		q = q.Where("cash_register_id IS NULL")
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Channel != "" {
		q = q.Where("channel = ?", f.Channel)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var orders []model.Order
	err := q.Order("created_at DESC").Find(&orders).Error
	return orders, err
}

func (r *orderRepo) ListUpdatedSince(ctx context.Context, since time.Time) ([]model.Order, error) {
	var orders []model.Order
	err := preloadOrder(r.db.WithContext(ctx)).
		Where("updated_at > ?", since).
		Order("updated_at ASC").
		Find(&orders).Error
	return orders, err
}

func (r *orderRepo) ListByRegister(ctx context.Context, registerID uuid.UUID) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).Preload("Payments").
		Where("cash_register_id = ?", registerID).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}
