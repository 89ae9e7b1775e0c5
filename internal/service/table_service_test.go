package service

import (
	"context"
	"errors"
	"testing"

	"vendapos/internal/apperror"
	"vendapos/internal/dto"
	"vendapos/internal/model"
	"vendapos/internal/realtime"
	"vendapos/internal/repository"
	"vendapos/internal/repository/localstore"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) seatedTable(t *testing.T, number int) *model.Table {
	t.Helper()
	ctx := context.Background()
	tbl, err := f.tables.CreateTable(ctx, dto.CreateTableRequest{Number: number})
	require.NoError(t, err)
	_, err = f.tables.OpenTable(ctx, tbl.ID, dto.OpenTableRequest{CustomerName: "Família Souza", CustomerCount: 4})
	require.NoError(t, err)
	return tbl
}

func (f *fixture) addScenarioItems(t *testing.T, tableID uuid.UUID) *model.TableSession {
	t.Helper()
	var (
		sess *model.TableSession
		err  error
	)
	for _, it := range f.scenarioItems() {
		sess, err = f.tables.AddItemToSale(context.Background(), tableID, it)
		require.NoError(t, err)
	}
	return sess
}

func (f *fixture) tableStatus(t *testing.T, id uuid.UUID) *model.Table {
	t.Helper()
	tables, err := f.tables.ListTables(context.Background())
	require.NoError(t, err)
	for i := range tables {
		if tables[i].ID == id {
			return &tables[i]
		}
	}
	t.Fatalf("table %s not listed", id)
	return nil
}

func TestOpenTable_OnlyFromLivre(t *testing.T) {
	f := newFixture(t)
	tbl := f.seatedTable(t, 1)

	_, err := f.tables.OpenTable(context.Background(), tbl.ID, dto.OpenTableRequest{CustomerName: "Outra"})
	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
	assert.Equal(t, apperror.CodeTableState, apperror.CodeOf(err))

	got := f.tableStatus(t, tbl.ID)
	assert.Equal(t, model.TableOcupada, got.Status)
	require.NotNil(t, got.CurrentSaleID)
}

func TestOpenTable_DefaultsCustomerCount(t *testing.T) {
	f := newFixture(t)
	tbl, err := f.tables.CreateTable(context.Background(), dto.CreateTableRequest{Number: 2})
	require.NoError(t, err)
	sess, err := f.tables.OpenTable(context.Background(), tbl.ID, dto.OpenTableRequest{CustomerName: "Rui"})
	require.NoError(t, err)
	assert.Equal(t, 1, sess.CustomerCount)
	assert.Equal(t, 2, sess.TableNumber)
}

func TestOpenTable_RequiresCustomerName(t *testing.T) {
	f := newFixture(t)
	tbl, err := f.tables.CreateTable(context.Background(), dto.CreateTableRequest{Number: 3})
	require.NoError(t, err)

	_, err = f.tables.OpenTable(context.Background(), tbl.ID, dto.OpenTableRequest{CustomerName: "   "})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Equal(t, model.TableLivre, f.tableStatus(t, tbl.ID).Status)
}

func TestCreateTable_DuplicateNumber(t *testing.T) {
	f := newFixture(t)
	_, err := f.tables.CreateTable(context.Background(), dto.CreateTableRequest{Number: 7})
	require.NoError(t, err)
	_, err = f.tables.CreateTable(context.Background(), dto.CreateTableRequest{Number: 7})
	assert.True(t, apperror.IsValidation(err))
}

func TestItems_RecomputedFromFullSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tbl := f.seatedTable(t, 3)

	sess := f.addScenarioItems(t, tbl.ID)
	require.Len(t, sess.Items, 2)
	assertMoney(t, "45.30", sess.Subtotal)
	assertMoney(t, "45.30", sess.TotalAmount)

	sess, err := f.tables.DeleteItemFromSale(ctx, tbl.ID, sess.Items[0].ID)
	require.NoError(t, err)
	require.Len(t, sess.Items, 1)
	assertMoney(t, "13.50", sess.Subtotal)
	assertMoney(t, "13.50", sess.TotalAmount)

	_, err = f.tables.DeleteItemFromSale(ctx, tbl.ID, uuid.New())
	assert.True(t, apperror.IsNotFound(err))

	stored, err := f.tables.GetSale(ctx, tbl.ID)
	require.NoError(t, err)
	assertMoney(t, "13.50", stored.TotalAmount)
	assert.NotEmpty(t, f.pub.of(realtime.EntityTableSession, realtime.EventUpdate))
}

func TestItems_RejectedWithoutActiveSale(t *testing.T) {
	f := newFixture(t)
	tbl, err := f.tables.CreateTable(context.Background(), dto.CreateTableRequest{Number: 4})
	require.NoError(t, err)

	_, err = f.tables.AddItemToSale(context.Background(), tbl.ID, f.scenarioItems()[0])
	require.Error(t, err)
	assert.Equal(t, apperror.CodeTableState, apperror.CodeOf(err))
}

// Scenario 5: closing an empty table is a validation error and leaves it ocupada.
func TestCloseSale_EmptyTable(t *testing.T) {
	f := newFixture(t)
	f.openRegister(t, "100")
	tbl := f.seatedTable(t, 5)

	_, err := f.tables.CloseSale(context.Background(), tbl.ID, dto.CloseSaleRequest{
		Payments: []dto.TenderRequest{tender("cash", "")},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))

	got := f.tableStatus(t, tbl.ID)
	assert.Equal(t, model.TableOcupada, got.Status)
	sale, err := f.tables.GetSale(context.Background(), tbl.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SaleOpen, sale.Status)
}

func TestCloseSale_RequiresOpenRegister(t *testing.T) {
	f := newFixture(t)
	tbl := f.seatedTable(t, 6)
	f.addScenarioItems(t, tbl.ID)

	_, err := f.tables.CloseSale(context.Background(), tbl.ID, dto.CloseSaleRequest{
		Payments: []dto.TenderRequest{tender("pix", "")},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
	assert.Equal(t, apperror.CodeRegisterClosed, apperror.CodeOf(err))
	assert.Equal(t, model.TableOcupada, f.tableStatus(t, tbl.ID).Status)
}

func TestTableLifecycle_CloseThenFree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rep := f.openRegister(t, "100.00")
	tbl := f.seatedTable(t, 8)
	f.addScenarioItems(t, tbl.ID)

	billed, err := f.tables.RequestBill(ctx, tbl.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TableAguardandoConta, billed.Status)
	_, err = f.tables.RequestBill(ctx, tbl.ID)
	assert.Equal(t, apperror.CodeTableState, apperror.CodeOf(err))

	closed, err := f.tables.CloseSale(ctx, tbl.ID, dto.CloseSaleRequest{
		Payments: []dto.TenderRequest{tender("cash", "50.00")},
	})
	require.NoError(t, err)
	assert.Equal(t, model.SaleClosed, closed.Status)
	assertMoney(t, "45.30", closed.TotalAmount)
	assertMoney(t, "4.70", closed.ChangeAmount)
	require.NotNil(t, closed.PaymentMethod)
	assert.Equal(t, "cash", *closed.PaymentMethod)
	require.NotNil(t, closed.ClosedAt)
	require.NotNil(t, closed.CashRegisterID)
	assert.Equal(t, rep.RegisterID, closed.CashRegisterID.String())

	got := f.tableStatus(t, tbl.ID)
	assert.Equal(t, model.TableLimpeza, got.Status)
	assert.Nil(t, got.CurrentSaleID)

	// Repeating the close on limpeza is a state conflict.
	_, err = f.tables.CloseSale(ctx, tbl.ID, dto.CloseSaleRequest{Payments: []dto.TenderRequest{tender("cash", "")}})
	assert.True(t, apperror.IsConflict(err))
	assert.Equal(t, apperror.CodeTableState, apperror.CodeOf(err))

	freed, err := f.tables.FreeTable(ctx, tbl.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TableLivre, freed.Status)

	// And on livre.
	_, err = f.tables.CloseSale(ctx, tbl.ID, dto.CloseSaleRequest{Payments: []dto.TenderRequest{tender("cash", "")}})
	assert.Equal(t, apperror.CodeTableState, apperror.CodeOf(err))

	// Only the amount due is booked as cash, not the 50.00 handed over.
	movements, err := f.set.Caja.ListMovements(ctx, *closed.CashRegisterID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, model.MovementSale, movements[0].Kind)
	assertMoney(t, "45.30", movements[0].Amount)
}

func TestCloseSale_MixedTenderAndCashback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.openRegister(t, "0")
	const phone = "11955554444"
	require.NoError(t, f.cashback.Accrue(ctx, phone, dec("10.00"), f.acai.ID))
	tbl := f.seatedTable(t, 9)
	f.addScenarioItems(t, tbl.ID)

	closed, err := f.tables.CloseSale(ctx, tbl.ID, dto.CloseSaleRequest{
		Payments:          []dto.TenderRequest{tender("cash", "20.00"), tender("pix", "15.30")},
		CustomerPhone:     strPtr(phone),
		CashbackRequested: dec("10.00"),
	})
	require.NoError(t, err)
	assertMoney(t, "10.00", closed.CashbackApplied)
	assertMoney(t, "35.30", closed.TotalAmount)
	require.NotNil(t, closed.PaymentMethod)
	assert.Equal(t, model.PaymentMixed, *closed.PaymentMethod)
	require.Len(t, closed.Payments, 2)

	balance, err := f.cashback.GetBalance(ctx, phone)
	require.NoError(t, err)
	assertMoney(t, "0", balance)
}

func TestCloseSale_SettlementErrorRefundsNothingTaken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.openRegister(t, "0")
	tbl := f.seatedTable(t, 10)
	f.addScenarioItems(t, tbl.ID)

	_, err := f.tables.CloseSale(ctx, tbl.ID, dto.CloseSaleRequest{
		Payments: []dto.TenderRequest{tender("cash", "20.00"), tender("pix", "25.28")},
	})
	assert.True(t, apperror.IsValidation(err))
	assert.Equal(t, model.TableOcupada, f.tableStatus(t, tbl.ID).Status)
}

func TestCancelSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tbl := f.seatedTable(t, 11)
	f.addScenarioItems(t, tbl.ID)

	_, err := f.tables.CancelSale(ctx, tbl.ID, "  ")
	assert.True(t, apperror.IsValidation(err))

	sess, err := f.tables.CancelSale(ctx, tbl.ID, "cliente desistiu")
	require.NoError(t, err)
	assert.Equal(t, model.SaleCancelled, sess.Status)
	require.NotNil(t, sess.CancelReason)
	assert.Equal(t, "cliente desistiu", *sess.CancelReason)

	got := f.tableStatus(t, tbl.ID)
	assert.Equal(t, model.TableLivre, got.Status, "cancel skips limpeza")
	assert.Nil(t, got.CurrentSaleID)

	_, err = f.tables.CancelSale(ctx, tbl.ID, "de novo")
	assert.Equal(t, apperror.CodeTableState, apperror.CodeOf(err))
}

func TestFreeTable_AbandonsOpenSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tbl := f.seatedTable(t, 12)
	open, err := f.tables.GetSale(ctx, tbl.ID)
	require.NoError(t, err)

	freed, err := f.tables.FreeTable(ctx, tbl.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TableLivre, freed.Status)
	assert.Nil(t, freed.CurrentSaleID)

	_, err = f.tables.GetSale(ctx, tbl.ID)
	assert.True(t, apperror.IsNotFound(err))

	abandoned, err := f.set.Tables.FindSession(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SaleCancelled, abandoned.Status)
	require.NotNil(t, abandoned.CancelReason)
	assert.Equal(t, FreeTableReason, *abandoned.CancelReason)

	// The table can be seated again right away.
	_, err = f.tables.OpenTable(ctx, tbl.ID, dto.OpenTableRequest{CustomerName: "Nova"})
	assert.NoError(t, err)
}

// lateCommitTables commits the close and then reports a timeout, as a guard
// deadline firing after the transaction finished would.
type lateCommitTables struct{ repository.TableRepository }

func (r lateCommitTables) CloseSession(ctx context.Context, tableID uuid.UUID, fn repository.CloseFunc) (*model.TableSession, error) {
	if _, err := r.TableRepository.CloseSession(ctx, tableID, fn); err != nil {
		return nil, err
	}
	return nil, context.DeadlineExceeded
}

// refusedCloseTables fails the close before anything is written.
type refusedCloseTables struct{ repository.TableRepository }

func (refusedCloseTables) CloseSession(context.Context, uuid.UUID, repository.CloseFunc) (*model.TableSession, error) {
	return nil, errors.New("dial tcp 10.0.0.5:5432: connection refused")
}

func closeWithCashback(t *testing.T, tables func(repository.TableRepository) repository.TableRepository) (*fixture, error) {
	t.Helper()
	set := localstore.NewSet(localstore.NewMemory())
	set.Tables = tables(set.Tables)
	f := newFixtureWith(t, set)
	ctx := context.Background()
	f.openRegister(t, "0")
	require.NoError(t, f.cashback.Accrue(ctx, "11944443333", dec("10.00"), f.acai.ID))
	tbl := f.seatedTable(t, 15)
	f.addScenarioItems(t, tbl.ID)

	_, err := f.tables.CloseSale(ctx, tbl.ID, dto.CloseSaleRequest{
		Payments:          []dto.TenderRequest{tender("pix", "")},
		CustomerPhone:     strPtr("11944443333"),
		CashbackRequested: dec("10.00"),
	})
	return f, err
}

func TestCloseSale_CommittedBeforeTimeoutKeepsRedemption(t *testing.T) {
	f, err := closeWithCashback(t, func(r repository.TableRepository) repository.TableRepository {
		return lateCommitTables{r}
	})
	require.Error(t, err)
	assert.True(t, apperror.IsUnavailable(err))

	balance, err := f.cashback.GetBalance(context.Background(), "11944443333")
	require.NoError(t, err)
	assertMoney(t, "0", balance, "the closed sale already spent the cashback")
}

func TestCloseSale_FailedBeforeCommitRefundsRedemption(t *testing.T) {
	f, err := closeWithCashback(t, func(r repository.TableRepository) repository.TableRepository {
		return refusedCloseTables{r}
	})
	require.Error(t, err)
	assert.True(t, apperror.IsUnavailable(err))

	balance, err := f.cashback.GetBalance(context.Background(), "11944443333")
	require.NoError(t, err)
	assertMoney(t, "10.00", balance)
}
