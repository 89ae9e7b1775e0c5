package repository

import (
	"context"
	"time"

	"vendapos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type cajaRepo struct{ db *gorm.DB }

func NewCajaRepository(db *gorm.DB) CajaRepository { return &cajaRepo{db: db} }

func (r *cajaRepo) CreateSession(ctx context.Context, s *model.CashRegisterSession) error {
	return mapErr(r.db.WithContext(ctx).Create(s).Error)
}

func (r *cajaRepo) FindOpen(ctx context.Context, station int) (*model.CashRegisterSession, error) {
	var s model.CashRegisterSession
	err := r.db.WithContext(ctx).
		Where("station = ? AND status = ?", station, model.RegisterOpen).
		First(&s).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

func (r *cajaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.CashRegisterSession, error) {
	var s model.CashRegisterSession
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

func (r *cajaRepo) CloseSession(ctx context.Context, s *model.CashRegisterSession) error {
	res := r.db.WithContext(ctx).Model(&model.CashRegisterSession{}).
		Where("id = ? AND status = ?", s.ID, model.RegisterOpen).
		Updates(map[string]interface{}{
			"status":          s.Status,
			"expected_amount": s.ExpectedAmount,
			"declared_amount": s.DeclaredAmount,
			"deviation":       s.Deviation,
			"deviation_pct":   s.DeviationPct,
			"deviation_class": s.DeviationClass,
			"notes":           s.Notes,
			"closed_at":       s.ClosedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *cajaRepo) CreateMovement(ctx context.Context, m *model.CashMovement) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *cajaRepo) ListMovements(ctx context.Context, registerID uuid.UUID) ([]model.CashMovement, error) {
	var movs []model.CashMovement
	err := r.db.WithContext(ctx).
		Where("cash_register_id = ?", registerID).
		Order("created_at ASC").
		Find(&movs).Error
	return movs, err
}

func (r *cajaRepo) SumMovementsByMethod(ctx context.Context, registerID uuid.UUID) (map[model.TenderMethod]decimal.Decimal, error) {
	var rows []struct {
		Method model.TenderMethod
		Total  decimal.Decimal
	}
	err := r.db.WithContext(ctx).Model(&model.CashMovement{}).
		Select("method, COALESCE(SUM(amount), 0) AS total").
		Where("cash_register_id = ?", registerID).
		Group("method").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	sums := make(map[model.TenderMethod]decimal.Decimal, len(rows))
	for _, row := range rows {
		sums[row.Method] = row.Total
	}
	return sums, nil
}

func (r *cajaRepo) ListClosed(ctx context.Context, station int, limit int) ([]model.CashRegisterSession, error) {
	var sessions []model.CashRegisterSession
	q := r.db.WithContext(ctx).
		Where("station = ? AND status = ?", station, model.RegisterClosed).
		Order("closed_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&sessions).Error
	return sessions, err
}
