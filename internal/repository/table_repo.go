package repository

import (
	"context"
	"errors"
	"time"

	"vendapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type tableRepo struct{ db *gorm.DB }

func NewTableRepository(db *gorm.DB) TableRepository { return &tableRepo{db: db} }

func closeColumns(s *model.TableSession) map[string]interface{} {
	return map[string]interface{}{
		"status":           s.Status,
		"subtotal":         s.Subtotal,
		"discount_kind":    s.DiscountKind,
		"discount_value":   s.DiscountValue,
		"discount_amount":  s.DiscountAmount,
		"cashback_applied": s.CashbackApplied,
		"total_amount":     s.TotalAmount,
		"payment_method":   s.PaymentMethod,
		"change_for":       s.ChangeFor,
		"change_amount":    s.ChangeAmount,
		"customer_phone":   s.CustomerPhone,
		"cash_register_id": s.CashRegisterID,
		"closed_at":        s.ClosedAt,
		"updated_at":       s.UpdatedAt,
	}
}

func totalsColumns(s *model.TableSession) map[string]interface{} {
	return map[string]interface{}{
		"subtotal":         s.Subtotal,
		"discount_amount":  s.DiscountAmount,
		"cashback_applied": s.CashbackApplied,
		"total_amount":     s.TotalAmount,
		"updated_at":       s.UpdatedAt,
	}
}

func preloadSession(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Items.Complements").
		Preload("Payments")
}

func (r *tableRepo) CreateTable(ctx context.Context, t *model.Table) error {
	return mapErr(r.db.WithContext(ctx).Create(t).Error)
}

func (r *tableRepo) FindTable(ctx context.Context, id uuid.UUID) (*model.Table, error) {
	var t model.Table
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (r *tableRepo) ListTables(ctx context.Context) ([]model.Table, error) {
	var tables []model.Table
	err := r.db.WithContext(ctx).Order("number ASC").Find(&tables).Error
	return tables, err
}

func (r *tableRepo) FindSession(ctx context.Context, id uuid.UUID) (*model.TableSession, error) {
	var s model.TableSession
	if err := preloadSession(r.db.WithContext(ctx)).First(&s, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

// lockTable loads the table row FOR UPDATE and its current session, if any.
func lockTable(tx *gorm.DB, tableID uuid.UUID) (*model.Table, *model.TableSession, error) {
	var t model.Table
	if err := tx.Clauses(forUpdate()).First(&t, "id = ?", tableID).Error; err != nil {
		return nil, nil, mapErr(err)
	}
	if t.CurrentSaleID == nil {
		return &t, nil, nil
	}
	var s model.TableSession
	if err := preloadSession(tx).Clauses(forUpdate()).First(&s, "id = ?", *t.CurrentSaleID).Error; err != nil {
		return nil, nil, mapErr(err)
	}
	return &t, &s, nil
}

func (r *tableRepo) OpenSession(ctx context.Context, tableID uuid.UUID, s *model.TableSession) (*model.Table, error) {
	var table model.Table
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate()).First(&table, "id = ?", tableID).Error; err != nil {
			return mapErr(err)
		}
		if table.Status != model.TableLivre {
			return ErrStaleState
		}
		s.TableID = table.ID
		s.TableNumber = table.Number
		s.Status = model.SaleOpen
		if err := tx.Create(s).Error; err != nil {
			if errors.Is(mapErr(err), ErrDuplicate) {
				return ErrStaleState
			}
			return err
		}
		res := tx.Model(&model.Table{}).
			Where("id = ? AND status = ?", tableID, model.TableLivre).
			Updates(map[string]interface{}{"status": model.TableOcupada, "current_sale_id": s.ID, "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleState
		}
		table.Status = model.TableOcupada
		table.CurrentSaleID = &s.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &table, nil
}

func (r *tableRepo) SetStatus(ctx context.Context, tableID uuid.UUID, from, to model.TableStatus) (*model.Table, error) {
	res := r.db.WithContext(ctx).Model(&model.Table{}).
		Where("id = ? AND status = ?", tableID, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindTable(ctx, tableID); err != nil {
			return nil, err
		}
		return nil, ErrStaleState
	}
	return r.FindTable(ctx, tableID)
}

func (r *tableRepo) MutateItems(ctx context.Context, tableID uuid.UUID, fn SessionFunc) (*model.TableSession, error) {
	var sessionID uuid.UUID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, s, err := lockTable(tx, tableID)
		if err != nil {
			return err
		}
		before := make(map[uuid.UUID]bool)
		if s != nil {
			for _, it := range s.Items {
				before[it.ID] = true
			}
		}
		if err := fn(t, s); err != nil {
			return err
		}
		if s == nil || s.Status != model.SaleOpen {
			return ErrStaleState
		}
		sessionID = s.ID

		after := make(map[uuid.UUID]bool, len(s.Items))
		for i := range s.Items {
			it := &s.Items[i]
			after[it.ID] = true
			if before[it.ID] {
				continue
			}
			it.OwnerID = s.ID
			it.OwnerType = model.OwnerTableSession
			if err := tx.Create(it).Error; err != nil {
				return err
			}
		}
		for id := range before {
			if after[id] {
				continue
			}
			if err := tx.Where("sale_item_id = ?", id).Delete(&model.ItemComplement{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&model.SaleItem{}, "id = ?", id).Error; err != nil {
				return err
			}
		}

		s.UpdatedAt = time.Now()
		return tx.Model(&model.TableSession{}).Where("id = ?", s.ID).Updates(totalsColumns(s)).Error
	})
	if err != nil {
		return nil, err
	}
	return r.FindSession(ctx, sessionID)
}

func (r *tableRepo) CloseSession(ctx context.Context, tableID uuid.UUID, fn CloseFunc) (*model.TableSession, error) {
	var sessionID uuid.UUID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, s, err := lockTable(tx, tableID)
		if err != nil {
			return err
		}
		movements, err := fn(t, s)
		if err != nil {
			return err
		}
		if s == nil {
			return ErrStaleState
		}
		sessionID = s.ID
		now := time.Now()
		s.UpdatedAt = now

		res := tx.Model(&model.TableSession{}).
			Where("id = ? AND status = ?", s.ID, model.SaleOpen).
			Updates(closeColumns(s))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleState
		}
		for i := range s.Payments {
			s.Payments[i].OwnerID = s.ID
			s.Payments[i].OwnerType = model.OwnerTableSession
		}
		if len(s.Payments) > 0 {
			if err := tx.Create(&s.Payments).Error; err != nil {
				return err
			}
		}
		if len(movements) > 0 {
			if err := tx.Create(&movements).Error; err != nil {
				return err
			}
		}
		return releaseTable(tx, t.ID, s.ID, model.TableLimpeza, now)
	})
	if err != nil {
		return nil, err
	}
	return r.FindSession(ctx, sessionID)
}

func (r *tableRepo) CancelSession(ctx context.Context, tableID uuid.UUID, fn SessionFunc) (*model.TableSession, error) {
	var sessionID uuid.UUID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, s, err := lockTable(tx, tableID)
		if err != nil {
			return err
		}
		if err := fn(t, s); err != nil {
			return err
		}
		if s == nil {
			return ErrStaleState
		}
		sessionID = s.ID
		now := time.Now()
		res := tx.Model(&model.TableSession{}).
			Where("id = ? AND status = ?", s.ID, model.SaleOpen).
			Updates(map[string]interface{}{"status": s.Status, "cancel_reason": s.CancelReason, "closed_at": s.ClosedAt, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleState
		}
		return releaseTable(tx, t.ID, s.ID, model.TableLivre, now)
	})
	if err != nil {
		return nil, err
	}
	return r.FindSession(ctx, sessionID)
}

// releaseTable clears the table's current sale, guarded on it still being saleID.
func releaseTable(tx *gorm.DB, tableID, saleID uuid.UUID, to model.TableStatus, at time.Time) error {
	res := tx.Model(&model.Table{}).
		Where("id = ? AND current_sale_id = ?", tableID, saleID).
		Updates(map[string]interface{}{"status": to, "current_sale_id": nil, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *tableRepo) FreeTable(ctx context.Context, tableID uuid.UUID, reason string) (*model.Table, *model.TableSession, error) {
	var abandoned *model.TableSession
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, s, err := lockTable(tx, tableID)
		if err != nil {
			return err
		}
		now := time.Now()
		if s != nil && s.Status == model.SaleOpen {
			if err := tx.Model(&model.TableSession{}).Where("id = ?", s.ID).
				Updates(map[string]interface{}{"status": model.SaleCancelled, "cancel_reason": reason, "closed_at": now, "updated_at": now}).Error; err != nil {
				return err
			}
			abandoned = s
		}
		return tx.Model(&model.Table{}).Where("id = ?", t.ID).
			Updates(map[string]interface{}{"status": model.TableLivre, "current_sale_id": nil, "updated_at": now}).Error
	})
	if err != nil {
		return nil, nil, err
	}
	t, err := r.FindTable(ctx, tableID)
	if err != nil {
		return nil, nil, err
	}
	if abandoned != nil {
		if abandoned, err = r.FindSession(ctx, abandoned.ID); err != nil {
			return nil, nil, err
		}
	}
	return t, abandoned, nil
}

func (r *tableRepo) ListSessionsUpdatedSince(ctx context.Context, since time.Time) ([]model.TableSession, error) {
	var sessions []model.TableSession
	err := preloadSession(r.db.WithContext(ctx)).
		Where("updated_at > ?", since).
		Order("updated_at ASC").
		Find(&sessions).Error
	return sessions, err
}

func (r *tableRepo) ListSessionsByRegister(ctx context.Context, registerID uuid.UUID) ([]model.TableSession, error) {
	var sessions []model.TableSession
	err := r.db.WithContext(ctx).Preload("Payments").
		Where("cash_register_id = ? AND status = ?", registerID, model.SaleClosed).
		Order("closed_at ASC").
		Find(&sessions).Error
	return sessions, err
}
