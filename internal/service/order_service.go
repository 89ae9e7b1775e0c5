package service

import (
	"context"
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

// OrderService is the order ledger: creation, status lifecycle and linkage
// of orders to the open register.
type OrderService interface {
	CreateOrder(ctx context.Context, req dto.CreateOrderRequest) (*model.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*model.Order, error)
	ReconcileOrphans(ctx context.Context, registerID uuid.UUID) (int, error)
	ListVisible(ctx context.Context, f dto.OrderFilter) ([]model.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Order, error)
	// Load reconciles orphans against the open register, then lists.
	Load(ctx context.Context, f dto.OrderFilter) ([]model.Order, error)
}

type orderService struct {
	repo       repository.OrderRepository
	products   ProductService
	cashback   CashbackService
	register   RegisterReader
	guard      *Guard
	pub        realtime.Publisher
	dispatcher *worker.Dispatcher
	accrualPct decimal.Decimal
}

func NewOrderService(
	repo repository.OrderRepository,
	products ProductService,
	cashback CashbackService,
	register RegisterReader,
	guard *Guard,
	pub realtime.Publisher,
	dispatcher *worker.Dispatcher,
	accrualPct decimal.Decimal,
) OrderService {
	return &orderService{
		repo:       repo,
		products:   products,
		cashback:   cashback,
		register:   register,
		guard:      guard,
		pub:        pub,
		dispatcher: dispatcher,
		accrualPct: accrualPct,
	}
}

// ── CreateOrder ───────────────────────────────────────────────────────────────
//   1. Validate channel, customer and address
//   2. Resolve items against the catalog and settle
//   3. Attach the open register, if any
//   4. Redeem cashback, insert; refund the redemption if the insert fails
//   5. Publish the insert and enqueue the kitchen receipt (non-critical)

func (s *orderService) CreateOrder(ctx context.Context, req dto.CreateOrderRequest) (*model.Order, error) {
	channel := model.Channel(req.Channel)
	if !channel.Valid() {
		return nil, apperror.ValidationFields("canal inválido", map[string]string{"channel": "oneof"})
	}
	if err := validateCustomer(channel, req); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, apperror.ValidationFields("o pedido precisa de ao menos um item", map[string]string{"items": "min=1"})
	}

	items := make([]model.SaleItem, 0, len(req.Items))
	for _, ir := range req.Items {
		it, err := s.products.Resolve(ctx, ir)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
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

	b, err := settlement.Settle(settlement.Request{
		Lines:             linesOf(items),
		Discount:          discount,
		DeliveryFee:       req.DeliveryFee,
		CashbackRequested: req.CashbackRequested,
		CashbackAvailable: available,
		Tenders:           tenders,
		ChangeFor:         req.ChangeFor,
	})
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Subtotal = b.LineSubtotals[i]
	}

	reg, err := s.register.Current(ctx)
	if err != nil {
		return nil, err
	}

	o := &model.Order{
		ID:              uuid.New(),
		Channel:         channel,
		Status:          model.OrderPending,
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerPhone:   req.CustomerPhone,
		IsPickup:        req.IsPickup,
		Street:          req.Street,
		Number:          req.Number,
		Neighborhood:    req.Neighborhood,
		Reference:       req.Reference,
		Observation:     req.Observation,
		Items:           items,
		Payments:        b.Tenders,
		PaymentMethod:   b.PaymentMethod,
		ChangeFor:       req.ChangeFor,
		ChangeAmount:    b.Change,
		DeliveryFee:     b.DeliveryFee,
		Subtotal:        b.Subtotal,
		DiscountKind:    discount.Kind,
		DiscountValue:   discount.Value,
		DiscountAmount:  b.DiscountAmount,
		CashbackApplied: b.CashbackApplied,
		TotalPrice:      b.Total,
	}
	if reg.IsOpen() {
		id := reg.ID
		o.CashRegisterID = &id
	}
	if phone != "" {
		o.CustomerPhone = &phone
	}

	if b.CashbackApplied.IsPositive() {
		if err := s.cashback.Redeem(ctx, phone, b.CashbackApplied, o.ID); err != nil {
			return nil, err
		}
	}
	if err := s.guard.Do(ctx, "criar pedido", func(ctx context.Context) error { return s.repo.Create(ctx, o) }); err != nil {
		if b.CashbackApplied.IsPositive() {
			if rerr := s.cashback.Refund(context.WithoutCancel(ctx), phone, b.CashbackApplied, o.ID); rerr != nil {
				log.Error().Err(rerr).Str("order_id", o.ID.String()).Msg("cashback: compensation refund failed")
			}
		}
		return nil, err
	}

	log.Info().
		Str("order_id", o.ID.String()).
		Str("channel", string(o.Channel)).
		Str("total", o.TotalPrice.StringFixed(2)).
		Msg("Order created")
	publish(ctx, s.pub, realtime.EntityOrder, realtime.EventInsert, o.ID, o.UpdatedAt, o)
	s.enqueueReceipt(ctx, o)
	return o, nil
}

// validateCustomer: name always; phone and address for delivery unless pickup.
func validateCustomer(channel model.Channel, req dto.CreateOrderRequest) error {
	fields := map[string]string{}
	if strings.TrimSpace(req.CustomerName) == "" {
		fields["customer_name"] = "required"
	}
	if channel == model.ChannelDelivery && !req.IsPickup {
		if blank(req.CustomerPhone) {
			fields["customer_phone"] = "required"
		}
		if blank(req.Street) {
			fields["street"] = "required"
		}
		if blank(req.Number) {
			fields["number"] = "required"
		}
		if blank(req.Neighborhood) {
			fields["neighborhood"] = "required"
		}
	}
	if len(fields) > 0 {
		return apperror.ValidationFields("dados do cliente incompletos", fields)
	}
	return nil
}

func blank(s *string) bool { return s == nil || strings.TrimSpace(*s) == "" }

// ── UpdateStatus ──────────────────────────────────────────────────────────────
// Any non-terminal status may move to any other status, skips included.
// delivered and cancelled are final.

func (s *orderService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*model.Order, error) {
	to, err := model.ParseOrderStatus(status)
	if err != nil {
		return nil, apperror.ValidationFields(err.Error(), map[string]string{"status": "oneof"})
	}

	guard := func(current model.OrderStatus) error {
		switch {
		case current.Terminal():
			return apperror.Conflictf(apperror.CodeTerminalStatus, "o pedido já está %s", current)
		case current == to:
			return apperror.Validationf("o pedido já está %s", current)
		}
		return nil
	}

	var o *model.Order
	err = s.guard.Do(ctx, "atualizar status", func(ctx context.Context) (err error) {
		o, err = s.repo.Transition(ctx, id, to, time.Now().UTC(), guard)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("order_id", id.String()).Str("status", to.String()).Msg("Order status updated")

	s.afterTransition(ctx, o)
	publish(ctx, s.pub, realtime.EntityOrder, realtime.EventUpdate, o.ID, o.UpdatedAt, o)
	return o, nil
}

// afterTransition runs the cashback side effects. Failures are logged only.
func (s *orderService) afterTransition(ctx context.Context, o *model.Order) {
	if o.CustomerPhone == nil || *o.CustomerPhone == "" {
		return
	}
	phone := *o.CustomerPhone
	switch o.Status {
	case model.OrderCancelled:
		if o.CashbackApplied.IsPositive() {
			if err := s.cashback.Refund(ctx, phone, o.CashbackApplied, o.ID); err != nil {
				log.Warn().Err(err).Str("order_id", o.ID.String()).Msg("cashback: refund on cancel failed")
			}
		}
	case model.OrderDelivered:
		amount := settlement.Round(o.TotalPrice.Mul(s.accrualPct).Div(decimal.NewFromInt(100)))
		if amount.IsPositive() {
			if err := s.cashback.Accrue(ctx, phone, amount, o.ID); err != nil {
				log.Warn().Err(err).Str("order_id", o.ID.String()).Msg("cashback: accrual failed")
			}
		}
	case model.OrderPending, model.OrderConfirmed, model.OrderPreparing,
		model.OrderOutForDelivery, model.OrderReadyForPickup:
	}
}

// ── ReconcileOrphans ──────────────────────────────────────────────────────────
// Idempotent: a second run finds nothing unlinked and returns 0.

func (s *orderService) ReconcileOrphans(ctx context.Context, registerID uuid.UUID) (int, error) {
	var ids []uuid.UUID
	err := s.guard.Do(ctx, "vincular pedidos", func(ctx context.Context) (err error) {
		ids, err = s.repo.LinkOrphans(ctx, registerID)
		return err
	})
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		log.Info().Str("register_id", registerID.String()).Int("orders", len(ids)).Msg("Orphan orders linked to register")
	}
	for _, id := range ids {
		o, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		publish(ctx, s.pub, realtime.EntityOrder, realtime.EventUpdate, o.ID, o.UpdatedAt, o)
	}
	return len(ids), nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

// ListVisible: with a register open, orders linked to it or unlinked; with
// none open, unlinked orders only.
func (s *orderService) ListVisible(ctx context.Context, f dto.OrderFilter) ([]model.Order, error) {
	filter, err := toOrderFilter(f)
	if err != nil {
		return nil, err
	}
	reg, err := s.register.Current(ctx)
	if err != nil {
		return nil, err
	}
	var regID *uuid.UUID
	if reg.IsOpen() {
		regID = &reg.ID
	}
	var out []model.Order
	err = s.guard.Do(ctx, "listar pedidos", func(ctx context.Context) (err error) {
		out, err = s.repo.ListVisible(ctx, regID, filter)
		return err
	})
	return out, err
}

func (s *orderService) Get(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var o *model.Order
	err := s.guard.Do(ctx, "buscar pedido", func(ctx context.Context) (err error) {
		o, err = s.repo.FindByID(ctx, id)
		return err
	})
	return o, err
}

func (s *orderService) Load(ctx context.Context, f dto.OrderFilter) ([]model.Order, error) {
	reg, err := s.register.Current(ctx)
	if err != nil {
		return nil, err
	}
	if reg.IsOpen() {
		if _, err := s.ReconcileOrphans(ctx, reg.ID); err != nil {
			return nil, err
		}
	}
	return s.ListVisible(ctx, f)
}

func toOrderFilter(f dto.OrderFilter) (repository.OrderFilter, error) {
	out := repository.OrderFilter{Limit: f.Limit}
	if f.Status != "" {
		st, err := model.ParseOrderStatus(f.Status)
		if err != nil {
			return out, apperror.ValidationFields(err.Error(), map[string]string{"status": "oneof"})
		}
		out.Status = st
	}
	if f.Channel != "" {
		ch := model.Channel(f.Channel)
		if !ch.Valid() {
			return out, apperror.ValidationFields("canal inválido", map[string]string{"channel": "oneof"})
		}
		out.Channel = ch
	}
	return out, nil
}

func (s *orderService) enqueueReceipt(ctx context.Context, o *model.Order) {
	if s.dispatcher == nil {
		return
	}
	payload := worker.ReceiptJobPayload{Kind: "order", ReferenceID: o.ID.String(), Receipt: infra.ReceiptFromOrder(o)}
	if err := s.dispatcher.EnqueueReceipt(ctx, payload); err != nil {
		log.Warn().Err(err).Str("order_id", o.ID.String()).Msg("receipt: enqueue failed")
	}
}
