package service

import (
	"context"
	"strings"

	"vendapos/internal/apperror"
	"vendapos/internal/dto"
	"vendapos/internal/model"
	"vendapos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashbackService is the loyalty collaborator. Settlement never calls it;
// order and table services redeem before persisting a sale and refund on
// failure or cancellation.
type CashbackService interface {
	GetBalance(ctx context.Context, phone string) (decimal.Decimal, error)
	Statement(ctx context.Context, phone string) (*dto.CashbackStatementResponse, error)
	Redeem(ctx context.Context, phone string, amount decimal.Decimal, ref uuid.UUID) error
	Accrue(ctx context.Context, phone string, amount decimal.Decimal, ref uuid.UUID) error
	Refund(ctx context.Context, phone string, amount decimal.Decimal, ref uuid.UUID) error
}

type cashbackService struct {
	repo  repository.CashbackRepository
	guard *Guard
}

func NewCashbackService(repo repository.CashbackRepository, guard *Guard) CashbackService {
	return &cashbackService{repo: repo, guard: guard}
}

func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// GetBalance returns zero for phones without an account.
func (s *cashbackService) GetBalance(ctx context.Context, phone string) (decimal.Decimal, error) {
	phone = normalizePhone(phone)
	if phone == "" {
		return decimal.Zero, nil
	}
	var acc *model.CashbackAccount
	err := s.guard.Do(ctx, "consultar cashback", func(ctx context.Context) (err error) {
		acc, err = s.repo.FindAccount(ctx, phone)
		return err
	})
	if apperror.IsNotFound(err) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return acc.Balance, nil
}

func (s *cashbackService) Statement(ctx context.Context, phone string) (*dto.CashbackStatementResponse, error) {
	phone = normalizePhone(phone)
	if phone == "" {
		return nil, apperror.ValidationFields("telefone inválido", map[string]string{"phone": "required"})
	}
	balance, err := s.GetBalance(ctx, phone)
	if err != nil {
		return nil, err
	}
	var txs []model.CashbackTransaction
	err = s.guard.Do(ctx, "extrato de cashback", func(ctx context.Context) (err error) {
		txs, err = s.repo.ListTransactions(ctx, phone)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &dto.CashbackStatementResponse{Phone: phone, Balance: balance, Transactions: txs}, nil
}

func (s *cashbackService) Redeem(ctx context.Context, phone string, amount decimal.Decimal, ref uuid.UUID) error {
	return s.apply(ctx, "resgatar cashback", model.CashbackRedeem, phone, amount, ref)
}

func (s *cashbackService) Accrue(ctx context.Context, phone string, amount decimal.Decimal, ref uuid.UUID) error {
	return s.apply(ctx, "acumular cashback", model.CashbackAccrue, phone, amount, ref)
}

func (s *cashbackService) Refund(ctx context.Context, phone string, amount decimal.Decimal, ref uuid.UUID) error {
	return s.apply(ctx, "estornar cashback", model.CashbackRefund, phone, amount, ref)
}

func (s *cashbackService) apply(ctx context.Context, op string, kind model.CashbackKind, phone string, amount decimal.Decimal, ref uuid.UUID) error {
	phone = normalizePhone(phone)
	amount = amount.Round(2)
	if amount.IsZero() {
		return nil
	}
	if amount.IsNegative() {
		return apperror.Validation("valor de cashback não pode ser negativo")
	}
	if phone == "" {
		return apperror.ValidationFields("telefone obrigatório para cashback", map[string]string{"customer_phone": "required"})
	}
	tx := &model.CashbackTransaction{Phone: phone, Kind: kind, Amount: amount, ReferenceID: &ref}
	return s.guard.Do(ctx, op, func(ctx context.Context) error {
		_, err := s.repo.Apply(ctx, tx)
		return err
	})
}
