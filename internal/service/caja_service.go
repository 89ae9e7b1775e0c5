package service

import (
	"context"
	"time"

	"vendapos/internal/apperror"
	"vendapos/internal/dto"
	"vendapos/internal/model"
	"vendapos/internal/realtime"
	"vendapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// RegisterReader is the read-only view of the register that the order
// ledger and the table manager consume. Current returns nil when no
// register is open at this station.
type RegisterReader interface {
	Current(ctx context.Context) (*model.CashRegisterSession, error)
}

// RegisterHook runs after a register opens. Hook failures are the hook's
// own business and never undo the opening.
type RegisterHook func(ctx context.Context, reg *model.CashRegisterSession)

type CajaService interface {
	RegisterReader
	Open(ctx context.Context, req dto.OpenRegisterRequest) (*dto.RegisterReportResponse, error)
	RecordMovement(ctx context.Context, req dto.MovementRequest) (*model.CashMovement, error)
	Close(ctx context.Context, req dto.CloseRegisterRequest) (*dto.CloseRegisterResponse, error)
	Report(ctx context.Context, id uuid.UUID) (*dto.RegisterReportResponse, error)
	ListClosed(ctx context.Context, limit int) ([]model.CashRegisterSession, error)
	OnOpen(fn RegisterHook)
}

type cajaService struct {
	repo    repository.CajaRepository
	orders  repository.OrderRepository
	tables  repository.TableRepository
	guard   *Guard
	pub     realtime.Publisher
	station int
	hooks   []RegisterHook
}

func NewCajaService(
	repo repository.CajaRepository,
	orders repository.OrderRepository,
	tables repository.TableRepository,
	guard *Guard,
	pub realtime.Publisher,
	station int,
) CajaService {
	return &cajaService{repo: repo, orders: orders, tables: tables, guard: guard, pub: pub, station: station}
}

// OnOpen must be called during wiring, before the service handles requests.
func (s *cajaService) OnOpen(fn RegisterHook) { s.hooks = append(s.hooks, fn) }

// ── Current ───────────────────────────────────────────────────────────────────

func (s *cajaService) Current(ctx context.Context) (*model.CashRegisterSession, error) {
	var reg *model.CashRegisterSession
	err := s.guard.Do(ctx, "consultar caixa", func(ctx context.Context) (err error) {
		reg, err = s.repo.FindOpen(ctx, s.station)
		return err
	})
	if apperror.IsNotFound(err) {
		return nil, nil
	}
	return reg, err
}

// ── Open ──────────────────────────────────────────────────────────────────────
// One open register per station; opening links every orphan order to it.

func (s *cajaService) Open(ctx context.Context, req dto.OpenRegisterRequest) (*dto.RegisterReportResponse, error) {
	station := req.Station
	if station == 0 {
		station = s.station
	}
	if req.OpeningAmount.IsNegative() {
		return nil, apperror.ValidationFields("valor de abertura inválido", map[string]string{"opening_amount": "min=0"})
	}

	reg := &model.CashRegisterSession{
		Station:       station,
		OperatorName:  req.OperatorName,
		OpeningAmount: req.OpeningAmount.Round(2),
		Status:        model.RegisterOpen,
	}
	err := s.guard.Do(ctx, "abrir caixa", func(ctx context.Context) error { return s.repo.CreateSession(ctx, reg) })
	if apperror.CodeOf(err) == apperror.CodeDuplicate {
		return nil, apperror.Conflict(apperror.CodeRegisterOpen, "já existe um caixa aberto neste ponto de venda")
	}
	if err != nil {
		return nil, err
	}
	log.Info().Str("register_id", reg.ID.String()).Int("station", station).Msg("Register opened")

	publish(ctx, s.pub, realtime.EntityRegister, realtime.EventInsert, reg.ID, reg.OpenedAt, reg)
	for _, fn := range s.hooks {
		fn(ctx, reg)
	}
	return s.buildReport(ctx, reg)
}

// ── RecordMovement ────────────────────────────────────────────────────────────
// Manual cash in / out. Movements are immutable: no Update/Delete.

func (s *cajaService) RecordMovement(ctx context.Context, req dto.MovementRequest) (*model.CashMovement, error) {
	reg, err := s.openRegister(ctx, req.RegisterID)
	if err != nil {
		return nil, err
	}
	method, err := model.ParseTenderMethod(req.Method)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if !req.Amount.IsPositive() {
		return nil, apperror.ValidationFields("valor inválido", map[string]string{"amount": "gt=0"})
	}

	kind := model.MovementKind(req.Kind)
	amount := req.Amount.Round(2)
	switch kind {
	case model.MovementManualIn:
	case model.MovementManualOut:
		amount = amount.Neg()
	case model.MovementSale, model.MovementVoid:
		return nil, apperror.Validation("movimentos de venda são registrados pelo fechamento da venda")
	default:
		return nil, apperror.Validationf("tipo de movimento desconhecido: %q", req.Kind)
	}

	mov := &model.CashMovement{
		CashRegisterID: reg.ID,
		Kind:           kind,
		Method:         method,
		Amount:         amount,
		Description:    req.Description,
	}
	if err := s.guard.Do(ctx, "registrar movimento", func(ctx context.Context) error { return s.repo.CreateMovement(ctx, mov) }); err != nil {
		return nil, err
	}
	return mov, nil
}

// ── Close ─────────────────────────────────────────────────────────────────────
// Blind count: the deviation is calculated only after the declaration is
// received. A critical deviation requires notes.

func (s *cajaService) Close(ctx context.Context, req dto.CloseRegisterRequest) (*dto.CloseRegisterResponse, error) {
	reg, err := s.openRegister(ctx, req.RegisterID)
	if err != nil {
		return nil, err
	}

	expected, err := s.expected(ctx, reg)
	if err != nil {
		return nil, err
	}
	declared := dto.AmountsByMethod{
		Cash:    req.Declared.Cash,
		Pix:     req.Declared.Pix,
		Credit:  req.Declared.Credit,
		Debit:   req.Declared.Debit,
		Voucher: req.Declared.Voucher,
	}
	declared.Total = declared.Cash.Add(declared.Pix).Add(declared.Credit).Add(declared.Debit).Add(declared.Voucher)

	deviation := declared.Total.Sub(expected.Total)
	var pct decimal.Decimal
	if !expected.Total.IsZero() {
		pct = deviation.Div(expected.Total).Mul(decimal.NewFromInt(100)).Round(2)
	}
	class := classifyDeviation(pct)

	if class == model.DeviationCritical && (req.Notes == nil || *req.Notes == "") {
		return nil, apperror.ValidationFields("desvio crítico: observações do supervisor são obrigatórias", map[string]string{"notes": "required"})
	}

	now := time.Now().UTC()
	reg.ExpectedAmount = &expected.Total
	reg.DeclaredAmount = &declared.Total
	reg.Deviation = &deviation
	reg.DeviationPct = &pct
	reg.DeviationClass = &class
	reg.Notes = req.Notes
	reg.Status = model.RegisterClosed
	reg.ClosedAt = &now

	err = s.guard.Do(ctx, "fechar caixa", func(ctx context.Context) error { return s.repo.CloseSession(ctx, reg) })
	if apperror.CodeOf(err) == apperror.CodeStaleWrite {
		return nil, apperror.Conflict(apperror.CodeRegisterClosed, "o caixa já foi fechado")
	}
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("register_id", reg.ID.String()).
		Str("deviation", deviation.StringFixed(2)).
		Str("class", string(class)).
		Msg("Register closed")
	publish(ctx, s.pub, realtime.EntityRegister, realtime.EventUpdate, reg.ID, now, reg)

	return &dto.CloseRegisterResponse{
		RegisterID: reg.ID.String(),
		Expected:   expected,
		Declared:   declared,
		Deviation:  dto.DeviationResponse{Amount: deviation, Percent: pct, Class: string(class)},
		Status:     string(model.RegisterClosed),
	}, nil
}

// ── Report ────────────────────────────────────────────────────────────────────

func (s *cajaService) Report(ctx context.Context, id uuid.UUID) (*dto.RegisterReportResponse, error) {
	var reg *model.CashRegisterSession
	err := s.guard.Do(ctx, "relatório de caixa", func(ctx context.Context) (err error) {
		reg, err = s.repo.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.buildReport(ctx, reg)
}

func (s *cajaService) ListClosed(ctx context.Context, limit int) ([]model.CashRegisterSession, error) {
	var out []model.CashRegisterSession
	err := s.guard.Do(ctx, "listar caixas", func(ctx context.Context) (err error) {
		out, err = s.repo.ListClosed(ctx, s.station, limit)
		return err
	})
	return out, err
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// openRegister resolves id, or the station's current register when id is empty.
func (s *cajaService) openRegister(ctx context.Context, id string) (*model.CashRegisterSession, error) {
	if id == "" {
		reg, err := s.Current(ctx)
		if err != nil {
			return nil, err
		}
		if reg == nil {
			return nil, apperror.Conflict(apperror.CodeRegisterClosed, "não há caixa aberto")
		}
		return reg, nil
	}
	regID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.ValidationFields("register_id inválido", map[string]string{"register_id": "uuid"})
	}
	var reg *model.CashRegisterSession
	err = s.guard.Do(ctx, "buscar caixa", func(ctx context.Context) (err error) {
		reg, err = s.repo.FindByID(ctx, regID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !reg.IsOpen() {
		return nil, apperror.Conflict(apperror.CodeRegisterClosed, "o caixa já está fechado")
	}
	return reg, nil
}

func (s *cajaService) expected(ctx context.Context, reg *model.CashRegisterSession) (dto.AmountsByMethod, error) {
	var sums map[model.TenderMethod]decimal.Decimal
	err := s.guard.Do(ctx, "somar movimentos", func(ctx context.Context) (err error) {
		sums, err = s.repo.SumMovementsByMethod(ctx, reg.ID)
		return err
	})
	if err != nil {
		return dto.AmountsByMethod{}, err
	}
	out := dto.AmountsByMethod{
		Cash:    reg.OpeningAmount.Add(sums[model.TenderCash]),
		Pix:     sums[model.TenderPix],
		Credit:  sums[model.TenderCredit],
		Debit:   sums[model.TenderDebit],
		Voucher: sums[model.TenderVoucher],
	}
	out.Total = out.Cash.Add(out.Pix).Add(out.Credit).Add(out.Debit).Add(out.Voucher)
	return out, nil
}

// classifyDeviation: normal ≤ 1%, warning ≤ 5%, critical above.
func classifyDeviation(pct decimal.Decimal) model.DeviationClass {
	abs := pct.Abs()
	switch {
	case abs.LessThanOrEqual(decimal.NewFromInt(1)):
		return model.DeviationNormal
	case abs.LessThanOrEqual(decimal.NewFromInt(5)):
		return model.DeviationWarning
	default:
		return model.DeviationCritical
	}
}

func (s *cajaService) buildReport(ctx context.Context, reg *model.CashRegisterSession) (*dto.RegisterReportResponse, error) {
	expected, err := s.expected(ctx, reg)
	if err != nil {
		return nil, err
	}
	var (
		orders   []model.Order
		sessions []model.TableSession
	)
	err = s.guard.Do(ctx, "vendas do caixa", func(ctx context.Context) (err error) {
		if orders, err = s.orders.ListByRegister(ctx, reg.ID); err != nil {
			return err
		}
		sessions, err = s.tables.ListSessionsByRegister(ctx, reg.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	report := &dto.RegisterReportResponse{
		RegisterID:    reg.ID.String(),
		Station:       reg.Station,
		OperatorName:  reg.OperatorName,
		OpeningAmount: reg.OpeningAmount,
		Expected:      expected,
		Declared:      reg.DeclaredAmount,
		Status:        string(reg.Status),
		Notes:         reg.Notes,
		OrderCount:    len(orders),
		TableSales:    len(sessions),
		OpenedAt:      reg.OpenedAt.Format(time.RFC3339),
	}
	if reg.Deviation != nil && reg.DeviationPct != nil && reg.DeviationClass != nil {
		report.Deviation = &dto.DeviationResponse{
			Amount:  *reg.Deviation,
			Percent: *reg.DeviationPct,
			Class:   string(*reg.DeviationClass),
		}
	}
	if reg.ClosedAt != nil {
		t := reg.ClosedAt.Format(time.RFC3339)
		report.ClosedAt = &t
	}
	return report, nil
}
