package repository

import (
	"context"
	"time"

	"vendapos/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type cashbackRepo struct{ db *gorm.DB }

func NewCashbackRepository(db *gorm.DB) CashbackRepository { return &cashbackRepo{db: db} }

func (r *cashbackRepo) FindAccount(ctx context.Context, phone string) (*model.CashbackAccount, error) {
	var a model.CashbackAccount
	if err := r.db.WithContext(ctx).First(&a, "phone = ?", phone).Error; err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (r *cashbackRepo) Apply(ctx context.Context, t *model.CashbackTransaction) (*model.CashbackAccount, error) {
	var account model.CashbackAccount
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Make sure the row exists so it can be locked.
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.CashbackAccount{Phone: t.Phone, Balance: decimal.Zero, UpdatedAt: time.Now()}).Error; err != nil {
			return err
		}
		if err := tx.Clauses(forUpdate()).First(&account, "phone = ?", t.Phone).Error; err != nil {
			return mapErr(err)
		}
		next := account.Balance.Add(t.Signed())
		if next.IsNegative() {
			return ErrInsufficientBalance
		}
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		account.Balance = next
		account.UpdatedAt = time.Now()
		return tx.Model(&model.CashbackAccount{}).Where("phone = ?", t.Phone).
			Updates(map[string]interface{}{"balance": next, "updated_at": account.UpdatedAt}).Error
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *cashbackRepo) ListTransactions(ctx context.Context, phone string) ([]model.CashbackTransaction, error) {
	var txs []model.CashbackTransaction
	err := r.db.WithContext(ctx).Where("phone = ?", phone).Order("created_at DESC").Find(&txs).Error
	return txs, err
}
