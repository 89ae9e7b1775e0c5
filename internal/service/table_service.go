package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vendapos/internal/apperror"
	"vendapos/internal/dto"
	"vendapos/internal/infra"
	"vendapos/internal/model"
	"vendapos/internal/realtime"
	"vendapos/internal/repository"
	"vendapos/internal/settlement"
	"vendapos/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// FreeTableReason is recorded on a sale abandoned by FreeTable.
const FreeTableReason = "liberada manualmente"

// TableService drives the table state machine and the sale attached to it:
//
//	livre → ocupada → aguardando_conta → limpeza → livre
//
// CancelSale goes straight back to livre; FreeTable forces livre from anywhere.
type TableService interface {
	CreateTable(ctx context.Context, req dto.CreateTableRequest) (*model.Table, error)
	ListTables(ctx context.Context) ([]model.Table, error)
	GetSale(ctx context.Context, tableID uuid.UUID) (*model.TableSession, error)
	OpenTable(ctx context.Context, tableID uuid.UUID, req dto.OpenTableRequest) (*model.TableSession, error)
	RequestBill(ctx context.Context, tableID uuid.UUID) (*model.Table, error)
	AddItemToSale(ctx context.Context, tableID uuid.UUID, req dto.ItemRequest) (*model.TableSession, error)
	DeleteItemFromSale(ctx context.Context, tableID, itemID uuid.UUID) (*model.TableSession, error)
	CloseSale(ctx context.Context, tableID uuid.UUID, req dto.CloseSaleRequest) (*model.TableSession, error)
	CancelSale(ctx context.Context, tableID uuid.UUID, reason string) (*model.TableSession, error)
	FreeTable(ctx context.Context, tableID uuid.UUID) (*model.Table, error)
}

type tableService struct {
	repo       repository.TableRepository
	products   ProductService
	cashback   CashbackService
	register   RegisterReader
	guard      *Guard
	pub        realtime.Publisher
	dispatcher *worker.Dispatcher
}

func NewTableService(
	repo repository.TableRepository,
	products ProductService,
	cashback CashbackService,
	register RegisterReader,
	guard *Guard,
	pub realtime.Publisher,
	dispatcher *worker.Dispatcher,
) TableService {
	return &tableService{
		repo:       repo,
		products:   products,
		cashback:   cashback,
		register:   register,
		guard:      guard,
		pub:        pub,
		dispatcher: dispatcher,
	}
}

func tableStateConflict(t *model.Table, action string) error {
	return apperror.Conflictf(apperror.CodeTableState, "mesa %d está %s: não é possível %s", t.Number, t.Status, action)
}

// activeSale rejects tables without an open sale.
func activeSale(t *model.Table, s *model.TableSession, action string) error {
	if !t.Status.HasActiveSale() || s == nil || s.Status != model.SaleOpen {
		return tableStateConflict(t, action)
	}
	return nil
}

// ── Tables ────────────────────────────────────────────────────────────────────

func (s *tableService) CreateTable(ctx context.Context, req dto.CreateTableRequest) (*model.Table, error) {
	if req.Number < 1 {
		return nil, apperror.ValidationFields("número da mesa inválido", map[string]string{"number": "min=1"})
	}
	capacity := req.Capacity
	if capacity == 0 {
		capacity = 4
	}
	t := &model.Table{Number: req.Number, Capacity: capacity, Status: model.TableLivre}
	err := s.guard.Do(ctx, "criar mesa", func(ctx context.Context) error { return s.repo.CreateTable(ctx, t) })
	if apperror.CodeOf(err) == apperror.CodeDuplicate {
		return nil, apperror.ValidationFields(fmt.Sprintf("a mesa %d já existe", req.Number), map[string]string{"number": "unique"})
	}
	if err != nil {
		return nil, err
	}
	publish(ctx, s.pub, realtime.EntityTable, realtime.EventInsert, t.ID, t.UpdatedAt, t)
	return t, nil
}

func (s *tableService) ListTables(ctx context.Context) ([]model.Table, error) {
	var out []model.Table
	err := s.guard.Do(ctx, "listar mesas", func(ctx context.Context) (err error) {
		out, err = s.repo.ListTables(ctx)
		return err
	})
	return out, err
}

func (s *tableService) findTable(ctx context.Context, tableID uuid.UUID) (*model.Table, error) {
	var t *model.Table
	err := s.guard.Do(ctx, "buscar mesa", func(ctx context.Context) (err error) {
		t, err = s.repo.FindTable(ctx, tableID)
		return err
	})
	return t, err
}

func (s *tableService) GetSale(ctx context.Context, tableID uuid.UUID) (*model.TableSession, error) {
	t, err := s.findTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if t.CurrentSaleID == nil {
		return nil, apperror.NotFound(fmt.Sprintf("mesa %d sem venda aberta", t.Number))
	}
	var sess *model.TableSession
	err = s.guard.Do(ctx, "buscar venda da mesa", func(ctx context.Context) (err error) {
		sess, err = s.repo.FindSession(ctx, *t.CurrentSaleID)
		return err
	})
	return sess, err
}

// ── OpenTable ─────────────────────────────────────────────────────────────────
// Session insert and livre → ocupada are one conditional unit; losing the
// race to another terminal surfaces as a table_state conflict.

func (s *tableService) OpenTable(ctx context.Context, tableID uuid.UUID, req dto.OpenTableRequest) (*model.TableSession, error) {
	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		return nil, apperror.ValidationFields("informe o nome do cliente", map[string]string{"customer_name": "required"})
	}
	count := req.CustomerCount
	if count <= 0 {
		count = 1
	}
	sess := &model.TableSession{
		ID:            uuid.New(),
		CustomerName:  name,
		CustomerCount: count,
		DiscountKind:  model.DiscountNone,
		Status:        model.SaleOpen,
	}
	var t *model.Table
	err := s.guard.Do(ctx, "abrir mesa", func(ctx context.Context) (err error) {
		t, err = s.repo.OpenSession(ctx, tableID, sess)
		return err
	})
	if apperror.CodeOf(err) == apperror.CodeStaleWrite {
		return nil, apperror.Conflict(apperror.CodeTableState, "a mesa não está livre")
	}
	if err != nil {
		return nil, err
	}
	log.Info().Str("table_id", tableID.String()).Str("sale_id", sess.ID.String()).Msg("Table opened")
	publish(ctx, s.pub, realtime.EntityTableSession, realtime.EventInsert, sess.ID, sess.UpdatedAt, sess)
	publish(ctx, s.pub, realtime.EntityTable, realtime.EventUpdate, t.ID, t.UpdatedAt, t)
	return sess, nil
}

// ── RequestBill ───────────────────────────────────────────────────────────────

func (s *tableService) RequestBill(ctx context.Context, tableID uuid.UUID) (*model.Table, error) {
	var t *model.Table
	err := s.guard.Do(ctx, "pedir conta", func(ctx context.Context) (err error) {
		t, err = s.repo.SetStatus(ctx, tableID, model.TableOcupada, model.TableAguardandoConta)
		return err
	})
	if apperror.CodeOf(err) == apperror.CodeStaleWrite {
		return nil, apperror.Conflict(apperror.CodeTableState, "a conta só pode ser pedida por uma mesa ocupada")
	}
	if err != nil {
		return nil, err
	}
	publish(ctx, s.pub, realtime.EntityTable, realtime.EventUpdate, t.ID, t.UpdatedAt, t)
	return t, nil
}

// ── Items ─────────────────────────────────────────────────────────────────────
// Every mutation reloads the current item set under lock and recomputes the
// totals from the full set; item and totals are persisted together.

func (s *tableService) AddItemToSale(ctx context.Context, tableID uuid.UUID, req dto.ItemRequest) (*model.TableSession, error) {
	it, err := s.products.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, "adicionar item", tableID, func(t *model.Table, sess *model.TableSession) error {
		if err := activeSale(t, sess, "adicionar itens"); err != nil {
			return err
		}
		sess.Items = append(sess.Items, it)
		return recomputeRunningTotals(sess)
	})
}

func (s *tableService) DeleteItemFromSale(ctx context.Context, tableID, itemID uuid.UUID) (*model.TableSession, error) {
	return s.mutate(ctx, "remover item", tableID, func(t *model.Table, sess *model.TableSession) error {
		if err := activeSale(t, sess, "remover itens"); err != nil {
			return err
		}
		kept := sess.Items[:0]
		found := false
		for _, it := range sess.Items {
			if it.ID == itemID {
				found = true
				continue
			}
			kept = append(kept, it)
		}
		if !found {
			return apperror.NotFound("item não encontrado na venda da mesa")
		}
		sess.Items = kept
		return recomputeRunningTotals(sess)
	})
}

func (s *tableService) mutate(ctx context.Context, op string, tableID uuid.UUID, fn repository.SessionFunc) (*model.TableSession, error) {
	var sess *model.TableSession
	err := s.guard.Do(ctx, op, func(ctx context.Context) (err error) {
		sess, err = s.repo.MutateItems(ctx, tableID, fn)
		return err
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, s.pub, realtime.EntityTableSession, realtime.EventUpdate, sess.ID, sess.UpdatedAt, sess)
	return sess, nil
}

// recomputeRunningTotals prices every item again and applies the session
// discount. Cashback is only known at close.
func recomputeRunningTotals(sess *model.TableSession) error {
	subtotal := decimal.Zero
	for i := range sess.Items {
		sub, err := settlement.LineSubtotal(settlement.LineFromItem(sess.Items[i]))
		if err != nil {
			return err
		}
		sess.Items[i].Subtotal = sub
		subtotal = subtotal.Add(sub)
	}
	amount, after, err := settlement.ApplyDiscount(subtotal, settlement.Discount{Kind: sess.DiscountKind, Value: sess.DiscountValue})
	if err != nil {
		return err
	}
	sess.Subtotal = settlement.Round(subtotal)
	sess.DiscountAmount = amount
	sess.CashbackApplied = decimal.Zero
	sess.TotalAmount = after
	return nil
}

// ── CloseSale ─────────────────────────────────────────────────────────────────
// Checks run in this order, so a repeated close always reports the table state:
//   1. table has an open sale            (table_state conflict)
//   2. sale has items and a positive total (validation)
//   3. a register is open                 (register_closed conflict)
//   4. settlement: discount, cashback, tenders, change
// Then the session, its payments, the register movements and the table move
// to limpeza are persisted as one unit.

func (s *tableService) CloseSale(ctx context.Context, tableID uuid.UUID, req dto.CloseSaleRequest) (*model.TableSession, error) {
	t, err := s.findTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if !t.Status.HasActiveSale() || t.CurrentSaleID == nil {
		return nil, tableStateConflict(t, "fechar a venda")
	}
	current, err := s.GetSale(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if err := checkClosable(current); err != nil {
		return nil, err
	}

	reg, err := s.register.Current(ctx)
	if err != nil {
		return nil, err
	}
	if !reg.IsOpen() {
		return nil, apperror.Conflict(apperror.CodeRegisterClosed, "abra o caixa antes de fechar a venda")
	}

	discount, err := toDiscount(req.Discount)
	if err != nil {
		return nil, err
	}
	tenders, err := toTenders(req.Payments)
	if err != nil {
		return nil, err
	}
	phone := ""
	if req.CustomerPhone != nil {
		phone = normalizePhone(*req.CustomerPhone)
	}
	available := decimal.Zero
	if req.CashbackRequested.IsPositive() {
		if phone == "" {
			return nil, apperror.ValidationFields("telefone obrigatório para usar cashback", map[string]string{"customer_phone": "required"})
		}
		if available, err = s.cashback.GetBalance(ctx, phone); err != nil {
			return nil, err
		}
	}
	settle := func(items []model.SaleItem, cashbackAvailable decimal.Decimal) (settlement.Breakdown, error) {
		return settlement.Settle(settlement.Request{
			Lines:             linesOf(items),
			Discount:          discount,
			CashbackRequested: req.CashbackRequested,
			CashbackAvailable: cashbackAvailable,
			Tenders:           tenders,
			ChangeFor:         req.ChangeFor,
		})
	}

	// Price once outside the lock to learn how much cashback to redeem.
	quote, err := settle(current.Items, available)
	if err != nil {
		return nil, err
	}
	redeemed := quote.CashbackApplied
	if redeemed.IsPositive() {
		if err := s.cashback.Redeem(ctx, phone, redeemed, current.ID); err != nil {
			return nil, err
		}
	}

	registerID := reg.ID
	closeFn := func(t *model.Table, sess *model.TableSession) ([]model.CashMovement, error) {
		if err := activeSale(t, sess, "fechar a venda"); err != nil {
			return nil, err
		}
		if err := checkClosable(sess); err != nil {
			return nil, err
		}
		b, err := settle(sess.Items, redeemed)
		if err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		method := b.PaymentMethod
		sess.Status = model.SaleClosed
		sess.Subtotal = b.Subtotal
		sess.DiscountKind = discount.Kind
		sess.DiscountValue = discount.Value
		sess.DiscountAmount = b.DiscountAmount
		sess.CashbackApplied = b.CashbackApplied
		sess.TotalAmount = b.Total
		sess.Payments = b.Tenders
		sess.PaymentMethod = &method
		sess.ChangeFor = req.ChangeFor
		sess.ChangeAmount = b.Change
		sess.CashRegisterID = &registerID
		sess.ClosedAt = &now
		if phone != "" {
			sess.CustomerPhone = &phone
		}
		return saleMovements(b, registerID, sess.ID, fmt.Sprintf("Mesa %d", t.Number)), nil
	}

	var closed *model.TableSession
	err = s.guard.Do(ctx, "fechar venda", func(ctx context.Context) (err error) {
		closed, err = s.repo.CloseSession(ctx, tableID, closeFn)
		return err
	})
	if err != nil {
		if redeemed.IsPositive() && s.stillOpen(ctx, current.ID) {
			s.refund(ctx, phone, redeemed, current.ID)
		}
		if apperror.CodeOf(err) == apperror.CodeStaleWrite {
			return nil, apperror.Conflict(apperror.CodeTableState, "a venda da mesa já foi encerrada")
		}
		return nil, err
	}
	if unused := redeemed.Sub(closed.CashbackApplied); unused.IsPositive() {
		s.refund(ctx, phone, unused, closed.ID)
	}

	log.Info().
		Str("table_id", tableID.String()).
		Str("sale_id", closed.ID.String()).
		Str("register_id", registerID.String()).
		Str("total", closed.TotalAmount.StringFixed(2)).
		Msg("Table sale closed")
	publish(ctx, s.pub, realtime.EntityTableSession, realtime.EventUpdate, closed.ID, closed.UpdatedAt, closed)
	s.publishTable(ctx, tableID)
	s.enqueueReceipt(ctx, closed)
	return closed, nil
}

func checkClosable(sess *model.TableSession) error {
	if len(sess.Items) == 0 {
		return apperror.Validation("a venda não tem itens")
	}
	if !sess.TotalAmount.IsPositive() {
		return apperror.Validation("o total da venda deve ser maior que zero")
	}
	return nil
}

// refund gives back redeemed cashback. It runs after the request may have
// been cancelled, so it detaches from ctx.
// stillOpen re-reads the session after a failed close. A timeout can fire
// after the close committed, and a committed close keeps its cashback; only a
// session confirmed open gets the redemption back.
func (s *tableService) stillOpen(ctx context.Context, sessionID uuid.UUID) bool {
	var sess *model.TableSession
	err := s.guard.Do(context.WithoutCancel(ctx), "reler venda da mesa", func(ctx context.Context) (err error) {
		sess, err = s.repo.FindSession(ctx, sessionID)
		return err
	})
	if err != nil {
		log.Error().Err(err).Str("sale_id", sessionID.String()).
			Msg("cashback: sale state unknown after failed close, refund left for manual review")
		return false
	}
	return sess.Status == model.SaleOpen
}

func (s *tableService) refund(ctx context.Context, phone string, amount decimal.Decimal, ref uuid.UUID) {
	if !amount.IsPositive() {
		return
	}
	if err := s.cashback.Refund(context.WithoutCancel(ctx), phone, amount, ref); err != nil {
		log.Error().Err(err).Str("sale_id", ref.String()).Msg("cashback: compensation refund failed")
	}
}

// ── CancelSale ────────────────────────────────────────────────────────────────

func (s *tableService) CancelSale(ctx context.Context, tableID uuid.UUID, reason string) (*model.TableSession, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.ValidationFields("informe o motivo do cancelamento", map[string]string{"reason": "required"})
	}
	var sess *model.TableSession
	err := s.guard.Do(ctx, "cancelar venda", func(ctx context.Context) (err error) {
		sess, err = s.repo.CancelSession(ctx, tableID, func(t *model.Table, cur *model.TableSession) error {
			if err := activeSale(t, cur, "cancelar a venda"); err != nil {
				return err
			}
			now := time.Now().UTC()
			cur.Status = model.SaleCancelled
			cur.CancelReason = &reason
			cur.ClosedAt = &now
			return nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("table_id", tableID.String()).Str("sale_id", sess.ID.String()).Str("reason", reason).Msg("Table sale cancelled")
	publish(ctx, s.pub, realtime.EntityTableSession, realtime.EventUpdate, sess.ID, sess.UpdatedAt, sess)
	s.publishTable(ctx, tableID)
	return sess, nil
}

// ── FreeTable ─────────────────────────────────────────────────────────────────
// Administrative override: any state → livre. An abandoned open sale is
// cancelled with FreeTableReason.

func (s *tableService) FreeTable(ctx context.Context, tableID uuid.UUID) (*model.Table, error) {
	var (
		t         *model.Table
		abandoned *model.TableSession
	)
	err := s.guard.Do(ctx, "liberar mesa", func(ctx context.Context) (err error) {
		t, abandoned, err = s.repo.FreeTable(ctx, tableID, FreeTableReason)
		return err
	})
	if err != nil {
		return nil, err
	}
	if abandoned != nil {
		log.Warn().Str("table_id", tableID.String()).Str("sale_id", abandoned.ID.String()).Msg("Open sale abandoned by manual release")
		publish(ctx, s.pub, realtime.EntityTableSession, realtime.EventUpdate, abandoned.ID, abandoned.UpdatedAt, abandoned)
	}
	publish(ctx, s.pub, realtime.EntityTable, realtime.EventUpdate, t.ID, t.UpdatedAt, t)
	return t, nil
}

func (s *tableService) publishTable(ctx context.Context, tableID uuid.UUID) {
	if s.pub == nil {
		return
	}
	t, err := s.findTable(ctx, tableID)
	if err != nil {
		return
	}
	publish(ctx, s.pub, realtime.EntityTable, realtime.EventUpdate, t.ID, t.UpdatedAt, t)
}

func (s *tableService) enqueueReceipt(ctx context.Context, sess *model.TableSession) {
	if s.dispatcher == nil {
		return
	}
	payload := worker.ReceiptJobPayload{Kind: "table_session", ReferenceID: sess.ID.String(), Receipt: infra.ReceiptFromSession(sess)}
	if err := s.dispatcher.EnqueueReceipt(ctx, payload); err != nil {
		log.Warn().Err(err).Str("sale_id", sess.ID.String()).Msg("receipt: enqueue failed")
	}
}
