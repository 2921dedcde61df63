package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
	redisstore "github.com/jhoicas/stock-ledger/internal/infrastructure/redis"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	v := dec(s)
	return &v
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "esperado %s, obtenido %s", want, got)
}

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

type fixture struct {
	store *memory.Store
	uc    *inventory.LedgerUseCase
}

func newFixture(t *testing.T, cfg inventory.LedgerConfig) *fixture {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Products().Create(ctx, &entity.Product{
		ID: "P1", SKU: "SKU-1", Name: "Tornillo",
		UnitVolume:   decimal.NewNullDecimal(dec("1")),
		SellingPrice: dec("15"), CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, store.Products().Create(ctx, &entity.Product{
		ID: "P2", SKU: "SKU-2", Name: "Tuerca", CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, store.Locations().Create(ctx, &entity.Location{
		ID: "L1", Name: "Rack A", MaxCapacityVolume: decPtr("100"), CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, store.Locations().Create(ctx, &entity.Location{
		ID: "L2", Name: "Rack B", CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, store.Locations().Create(ctx, &entity.Location{
		ID: "L3", Name: "Estante C", MaxCapacityVolume: decPtr("5"), CreatedAt: now, UpdatedAt: now,
	}))

	if cfg.DefaultUnitVolume.IsZero() {
		cfg.DefaultUnitVolume = dec("1")
	}
	uc := inventory.NewLedgerUseCase(store, store.Products(), store.Locations(), store.Movements(), store.Stock(), logger.Nop(), cfg)
	return &fixture{store: store, uc: uc}
}

func (f *fixture) receive(t *testing.T, lines ...inventory.MovementLineInput) *entity.Movement {
	t.Helper()
	mov, err := f.uc.Receive(context.Background(), inventory.MovementRequest{Reference: "OC-1", OperatorID: "op", Lines: lines})
	require.NoError(t, err)
	return mov
}

func in(product, location, qty, price string) inventory.MovementLineInput {
	return inventory.MovementLineInput{ProductID: product, LocationID: location, Quantity: dec(qty), UnitPrice: decPtr(price)}
}

func key(product, location, batch string) entity.StockKey {
	return entity.StockKey{ProductID: product, LocationID: location, BatchLabel: batch}
}

func TestReceive_MovingAverage(t *testing.T) {
	f := newFixture(t, inventory.LedgerConfig{})

	f.receive(t, in("P1", "L2", "10", "100"))
	row := f.store.Row(key("P1", "L2", ""))
	require.NotNil(t, row)
	assertDec(t, "10", row.Quantity)
	assertDec(t, "100", row.AverageCost)

	mov := f.receive(t, in("P1", "L2", "10", "120"))
	row = f.store.Row(key("P1", "L2", ""))
	assertDec(t, "20", row.Quantity)
	assertDec(t, "110", row.AverageCost)

	assert.Equal(t, entity.MovementReceipt, mov.Kind)
	require.Len(t, mov.Lines, 1)
	assert.Equal(t, 1, mov.Lines[0].LineNo)
	assertDec(t, "10", mov.Lines[0].Quantity)
	assertDec(t, "120", mov.Lines[0].UnitPrice)
}

func TestReceive_LineRecordsSuppliedExpiry(t *testing.T) {
	f := newFixture(t, inventory.LedgerConfig{})
	f.receive(t, inventory.MovementLineInput{ProductID: "P1", LocationID: "L2", Quantity: dec("2"), UnitPrice: decPtr("5"), BatchLabel: "B1", ExpiryDate: day(2025, 1, 1)})

	mov := f.receive(t, inventory.MovementLineInput{ProductID: "P1", LocationID: "L2", Quantity: dec("2"), UnitPrice: decPtr("5"), BatchLabel: "B1", ExpiryDate: day(2026, 6, 1)})
	require.Len(t, mov.Lines, 1)
	require.NotNil(t, mov.Lines[0].ExpiryDate)
	assert.True(t, mov.Lines[0].ExpiryDate.Equal(*day(2026, 6, 1)))

	row := f.store.Row(key("P1", "L2", "B1"))
	require.NotNil(t, row.ExpiryDate)
	assert.True(t, row.ExpiryDate.Equal(*day(2025, 1, 1)))

	// sin vencimiento informado la línea toma el de la fila
	mov = f.receive(t, inventory.MovementLineInput{ProductID: "P1", LocationID: "L2", Quantity: dec("1"), UnitPrice: decPtr("5"), BatchLabel: "B1"})
	require.NotNil(t, mov.Lines[0].ExpiryDate)
	assert.True(t, mov.Lines[0].ExpiryDate.Equal(*day(2025, 1, 1)))
}

func TestReceive_RepeatingDecimalKeepsPrecision(t *testing.T) {
	f := newFixture(t, inventory.LedgerConfig{})

	f.receive(t, in("P2", "L2", "5", "100"))
	f.receive(t, in("P2", "L2", "10", "110"))

	row := f.store.Row(key("P2", "L2", ""))
	assertDec(t, "15", row.Quantity)
	assertDec(t, "106.66666667", row.AverageCost)
}

func TestReceive_CapacityIsCumulativeWithinOperation(t *testing.T) {
	f := newFixture(t, inventory.LedgerConfig{})
	f.receive(t, in("P1", "L1", "90", "1"))

	_, err := f.uc.Receive(context.Background(), inventory.MovementRequest{Lines: []inventory.MovementLineInput{
		in("P1", "L1", "5", "1"),
		in("P1", "L1", "8", "1"),
	}})
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)

	row := f.store.Row(key("P1", "L1", ""))
	assertDec(t, "90", row.Quantity)
	assert.Len(t, f.store.MovementLog(), 1)

	// justo hasta el límite
	f.receive(t, in("P1", "L1", "4", "1"), in("P1", "L1", "6", "1"))
	assertDec(t, "100", f.store.Row(key("P1", "L1", "")).Quantity)
}

func TestReceive_DefaultUnitVolume(t *testing.T) {
	f := newFixture(t, inventory.LedgerConfig{DefaultUnitVolume: dec("2")})

	// P2 no tiene volumen: 3 unidades * 2 = 6 > 5
	_, err := f.uc.Receive(context.Background(), inventory.MovementRequest{Lines: []inventory.MovementLineInput{in("P2", "L3", "3", "1")}})
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)

	f.receive(t, in("P2", "L3", "2", "1"))
}

func TestReceive_Validation(t *testing.T) {
	f := newFixture(t, inventory.LedgerConfig{})
	ctx := context.Background()

	_, err := f.uc.Receive(ctx, inventory.MovementRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.uc.Receive(ctx, inventory.MovementRequest{Lines: []inventory.MovementLineInput{in("P1", "L2", "0", "1")}})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.uc.Receive(ctx, inventory.MovementRequest{Lines: []inventory.MovementLineInput{in("P1", "L2", "-3", "1")}})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.uc.Receive(ctx, inventory.MovementRequest{Lines: []inventory.MovementLineInput{
		{ProductID: "P1", LocationID: "L2", Quantity: dec("1")},
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.uc.Receive(ctx, inventory.MovementRequest{Lines: []inventory.MovementLineInput{in("NOPE", "L2", "1", "1")}})
	assert.ErrorIs(t, err, domain.ErrInvalidReference)

	_, err = f.uc.Receive(ctx, inventory.MovementRequest{Lines: []inventory.MovementLineInput{in("P1", "NOPE", "1", "1")}})
	assert.ErrorIs(t, err, domain.ErrInvalidReference)

	assert.Empty(t, f.store.StockRows())
	assert.Empty(t, f.store.MovementLog())
}

func TestReceive_RefreshesSellingPrice(t *testing.T) {
	f := newFixture(t, inventory.LedgerConfig{})
	line := in("P1", "L2", "1", "10")
	line.SellingPrice = decPtr("18.50")
	f.receive(t, line)

	p, err := f.store.Products().GetByID(context.Background(), "P1")
	require.NoError(t, err)
	assertDec(t, "18.50", p.SellingPrice)
}

func TestShip_FIFOByExpiry(t *testing.T) {
	f := newFixture(t, inventory.LedgerConfig{})
	f.receive(t,
		inventory.MovementLineInput{ProductID: "P1", LocationID: "L2", Quantity: dec("10"), UnitPrice: decPtr("12"), BatchLabel: "B", ExpiryDate: day(2026, 2, 1)},
		inventory.MovementLineInput{ProductID: "P1", LocationID: "L2", Quantity: dec("5"), UnitPrice: decPtr("10"), BatchLabel: "A", ExpiryDate: day(2026, 1, 10)},
	)

	mov, err := f.uc.Ship(context.Background(), inventory.MovementRequest{Reference: "PED-1", Lines: []inventory.MovementLineInput{
		{ProductID: "P1", LocationID: "L2", Quantity: dec("8")},
	}})
	require.NoError(t, err)

	assertDec(t, "0", f.store.Row(key("P1", "L2", "A")).Quantity)
	assertDec(t, "7", f.store.Row(key("P1", "L2", "B")).Quantity)

	require.Len(t, mov.Lines, 2)
	assert.Equal(t, "A", mov.Lines[0].BatchLabel)
	assertDec(t, "-5", mov.Lines[0].Quantity)
	assertDec(t, "10", mov.Lines[0].UnitPrice)
	assert.Equal(t, "B", mov.Lines[1].BatchLabel)
	assertDec(t, "-3", mov.Lines[1].Quantity)
	assertDec(t, "12", mov.Lines[1].UnitPrice)

	// la fila en cero conserva su costo
	assertDec(t, "10", f.store.Row(key("P1", "L2", "A")).AverageCost)
}

func TestShip_SpecificBatch(t *testing.T) {
	f := newFixture(t, inventory.LedgerConfig{})
	f.receive(t,
		inventory.MovementLineInput{ProductID: "P1", LocationID: "L2", Quantity: dec("5"), UnitPrice: decPtr("10"), BatchLabel: "A", ExpiryDate: day(2026, 1, 10)},
		inventory.MovementLineInput{ProductID: "P1", LocationID: "L2", Quantity: dec("5"), UnitPrice: decPtr("12"), BatchLabel: "B", ExpiryDate: day(2026, 2, 1)},
	)

	_, err := f.uc.Ship(context.Background(), inventory.MovementRequest{Lines: []inventory.MovementLineInput{
		{ProductID: "P1", LocationID: "L2", Quantity: dec("2"), BatchLabel: "B"},
	}})
	require.NoError(t, err)
	assertDec(t, "5", f.store.Row(key("P1", "L2", "A")).Quantity)
	assertDec(t, "3", f.store.Row(key("P1", "L2", "B")).Quantity)

	_, err = f.uc.Ship(context.Background(), inventory.MovementRequest{Lines: []inventory.MovementLineInput{
		{ProductID: "P1", LocationID: "L2", Quantity: dec("4"), BatchLabel: "B"},
	}})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestShip_InsufficientStockLeavesLedgerUntouched(t *testing.T) {
	f := newFixture(t, inventory.LedgerConfig{})
	f.receive(t, in("P1", "L2", "10", "5"), in("P2", "L2", "1", "5"))
	before := f.store.StockRows()

	_, err := f.uc.Ship(context.Background(), inventory.MovementRequest{Lines: []inventory.MovementLineInput{
		{ProductID: "P1", LocationID: "L2", Quantity: dec("4")},
		{ProductID: "P2", LocationID: "L2", Quantity: dec("2")},
	}})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, before, f.store.StockRows())
	assert.Len(t, f.store.MovementLog(), 1)

	// demanda acumulada de la misma fila en varias líneas
	_, err = f.uc.Ship(context.Background(), inventory.MovementRequest{Lines: []inventory.MovementLineInput{
		{ProductID: "P1", LocationID: "L2", Quantity: dec("6")},
		{ProductID: "P1", LocationID: "L2", Quantity: dec("6")},
	}})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, before, f.store.StockRows())
}

func TestRollback_MovementWriteFailure(t *testing.T) {
	f := newFixture(t, inventory.LedgerConfig{})
	f.receive(t, in("P1", "L2", "10", "5"))
	before := f.store.StockRows()

	boom := errors.New("fallo al escribir")
	f.store.OnMovementCreate = func(*entity.Movement) error { return boom }

	_, err := f.uc.Receive(context.Background(), inventory.MovementRequest{Lines: []inventory.MovementLineInput{
		in("P1", "L2", "10", "50"),
		in("P2", "L2", "3", "1"),
	}})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, before, f.store.StockRows())
	assert.Len(t, f.store.MovementLog(), 1)

	f.store.OnMovementCreate = nil
	f.receive(t, in("P1", "L2", "10", "15"))
	assertDec(t, "10", f.store.Row(key("P1", "L2", "")).AverageCost)
}

func TestShip_ConcurrentNeverOversells(t *testing.T) {
	f := newFixture(t, inventory.LedgerConfig{})
	f.receive(t, in("P1", "L2", "10", "5"))

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, short int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.uc.Ship(context.Background(), inventory.MovementRequest{Lines: []inventory.MovementLineInput{
				{ProductID: "P1", LocationID: "L2", Quantity: dec("1")},
			}})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrInsufficientStock):
				short++
			default:
				t.Errorf("error inesperado: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, 10, short)
	assertDec(t, "0", f.store.Row(key("P1", "L2", "")).Quantity)
	assert.Len(t, f.store.MovementLog(), 11)
}

func TestTransfer_CarriesCostAndBatch(t *testing.T) {
	f := newFixture(t, inventory.LedgerConfig{})
	f.receive(t, inventory.MovementLineInput{ProductID: "P1", LocationID: "L2", Quantity: dec("10"), UnitPrice: decPtr("50"), BatchLabel: "L-01", ExpiryDate: day(2026, 3, 1)})

	mov, err := f.uc.Transfer(context.Background(), inventory.TransferRequest{Note: "reubicación", Lines: []inventory.TransferLineInput{
		{ProductID: "P1", FromLocationID: "L2", ToLocationID: "L1", Quantity: dec("4")},
	}})
	require.NoError(t, err)

	assertDec(t, "6", f.store.Row(key("P1", "L2", "L-01")).Quantity)
	dest := f.store.Row(key("P1", "L1", "L-01"))
	require.NotNil(t, dest)
	assertDec(t, "4", dest.Quantity)
	assertDec(t, "50", dest.AverageCost)
	require.NotNil(t, dest.ExpiryDate)
	assert.True(t, dest.ExpiryDate.Equal(*day(2026, 3, 1)))

	assert.Equal(t, entity.MovementTransfer, mov.Kind)
	require.Len(t, mov.Lines, 2)
	assertDec(t, "-4", mov.Lines[0].Quantity)
	assert.Equal(t, "L2", mov.Lines[0].LocationID)
	assertDec(t, "4", mov.Lines[1].Quantity)
	assert.Equal(t, "L1", mov.Lines[1].LocationID)
}

func TestTransfer_IntoStockedRowKeepsInventoryValue(t *testing.T) {
	f := newFixture(t, inventory.LedgerConfig{})
	f.receive(t, in("P2", "L2", "10", "200"), in("P2", "L1", "10", "100"))

	_, err := f.uc.Transfer(context.Background(), inventory.TransferRequest{Lines: []inventory.TransferLineInput{
		{ProductID: "P2", FromLocationID: "L2", ToLocationID: "L1", Quantity: dec("10")},
	}})
	require.NoError(t, err)

	src := f.store.Row(key("P2", "L2", ""))
	dest := f.store.Row(key("P2", "L1", ""))
	assertDec(t, "0", src.Quantity)
	assertDec(t, "20", dest.Quantity)
	assertDec(t, "150", dest.AverageCost)

	// 10*200 + 10*100 antes del traslado
	value := src.Quantity.Mul(src.AverageCost).Add(dest.Quantity.Mul(dest.AverageCost))
	assertDec(t, "3000", value)
}

func TestTransfer_Errors(t *testing.T) {
	f := newFixture(t, inventory.LedgerConfig{})
	f.receive(t, in("P1", "L2", "10", "50"))
	ctx := context.Background()
	before := f.store.StockRows()

	_, err := f.uc.Transfer(ctx, inventory.TransferRequest{Lines: []inventory.TransferLineInput{
		{ProductID: "P1", FromLocationID: "L2", ToLocationID: "L2", Quantity: dec("1")},
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidTransfer)

	_, err = f.uc.Transfer(ctx, inventory.TransferRequest{Lines: []inventory.TransferLineInput{
		{ProductID: "P1", FromLocationID: "L2", ToLocationID: "L1", Quantity: dec("11")},
	}})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	_, err = f.uc.Transfer(ctx, inventory.TransferRequest{Lines: []inventory.TransferLineInput{
		{ProductID: "P1", FromLocationID: "L2", ToLocationID: "L3", Quantity: dec("6")},
	}})
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)

	_, err = f.uc.Transfer(ctx, inventory.TransferRequest{Lines: []inventory.TransferLineInput{
		{ProductID: "P1", FromLocationID: "L2", ToLocationID: "L1", Quantity: dec("0")},
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	assert.Equal(t, before, f.store.StockRows())
}

func TestAdjust_PhysicalCount(t *testing.T) {
	f := newFixture(t, inventory.LedgerConfig{})
	f.receive(t, in("P1", "L2", "10", "20"))
	ctx := context.Background()

	mov, err := f.uc.Adjust(ctx, inventory.AdjustmentRequest{Note: "conteo", Lines: []inventory.CountLineInput{
		{ProductID: "P1", LocationID: "L2", PhysicalCount: dec("7"), SystemCount: dec("10")},
	}})
	require.NoError(t, err)
	require.Len(t, mov.Lines, 1)
	assertDec(t, "-3", mov.Lines[0].Quantity)
	assertDec(t, "20", mov.Lines[0].UnitPrice)
	assertDec(t, "7", f.store.Row(key("P1", "L2", "")).Quantity)

	_, err = f.uc.Adjust(ctx, inventory.AdjustmentRequest{Lines: []inventory.CountLineInput{
		{ProductID: "P1", LocationID: "L2", PhysicalCount: dec("12"), SystemCount: dec("7")},
	}})
	require.NoError(t, err)
	row := f.store.Row(key("P1", "L2", ""))
	assertDec(t, "12", row.Quantity)
	assertDec(t, "20", row.AverageCost)

	_, err = f.uc.Adjust(ctx, inventory.AdjustmentRequest{Lines: []inventory.CountLineInput{
		{ProductID: "P1", LocationID: "L2", PhysicalCount: dec("12"), SystemCount: dec("12")},
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.uc.Adjust(ctx, inventory.AdjustmentRequest{Lines: []inventory.CountLineInput{
		{ProductID: "P1", LocationID: "L2", PhysicalCount: dec("0"), SystemCount: dec("20")},
	}})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assertDec(t, "12", f.store.Row(key("P1", "L2", "")).Quantity)
}

func TestAdjust_NewBatchUsesLastKnownCost(t *testing.T) {
	f := newFixture(t, inventory.LedgerConfig{})
	f.receive(t, in("P1", "L2", "10", "20"))

	_, err := f.uc.Adjust(context.Background(), inventory.AdjustmentRequest{Lines: []inventory.CountLineInput{
		{ProductID: "P1", LocationID: "L2", BatchLabel: "HALLADO", PhysicalCount: dec("2"), SystemCount: dec("0")},
	}})
	require.NoError(t, err)

	row := f.store.Row(key("P1", "L2", "HALLADO"))
	require.NotNil(t, row)
	assertDec(t, "2", row.Quantity)
	assertDec(t, "20", row.AverageCost)
}

func TestAdjust_UnbatchedCountSpansBatchesFIFO(t *testing.T) {
	f := newFixture(t, inventory.LedgerConfig{})
	f.receive(t,
		inventory.MovementLineInput{ProductID: "P1", LocationID: "L2", Quantity: dec("3"), UnitPrice: decPtr("30"), BatchLabel: "LOT-A", ExpiryDate: day(2026, 1, 1)},
		inventory.MovementLineInput{ProductID: "P1", LocationID: "L2", Quantity: dec("5"), UnitPrice: decPtr("40"), BatchLabel: "LOT-B", ExpiryDate: day(2026, 6, 1)},
	)
	ctx := context.Background()

	// conteo del producto en la ubicación: 8 en sistema, 4 físicos
	mov, err := f.uc.Adjust(ctx, inventory.AdjustmentRequest{Note: "opname", Lines: []inventory.CountLineInput{
		{ProductID: "P1", LocationID: "L2", PhysicalCount: dec("4"), SystemCount: dec("8")},
	}})
	require.NoError(t, err)
	require.Len(t, mov.Lines, 2)
	assert.Equal(t, "LOT-A", mov.Lines[0].BatchLabel)
	assertDec(t, "-3", mov.Lines[0].Quantity)
	assertDec(t, "30", mov.Lines[0].UnitPrice)
	assert.Equal(t, "LOT-B", mov.Lines[1].BatchLabel)
	assertDec(t, "-1", mov.Lines[1].Quantity)
	assertDec(t, "40", mov.Lines[1].UnitPrice)

	assertDec(t, "0", f.store.Row(key("P1", "L2", "LOT-A")).Quantity)
	assertDec(t, "4", f.store.Row(key("P1", "L2", "LOT-B")).Quantity)
	assert.Nil(t, f.store.Row(key("P1", "L2", "")))

	// un sobrante sin lote entra a la fila sin lote
	_, err = f.uc.Adjust(ctx, inventory.AdjustmentRequest{Lines: []inventory.CountLineInput{
		{ProductID: "P1", LocationID: "L2", PhysicalCount: dec("6"), SystemCount: dec("4"), UnitCost: decPtr("35")},
	}})
	require.NoError(t, err)
	extra := f.store.Row(key("P1", "L2", ""))
	require.NotNil(t, extra)
	assertDec(t, "2", extra.Quantity)
	assertDec(t, "35", extra.AverageCost)
	assertDec(t, "4", f.store.Row(key("P1", "L2", "LOT-B")).Quantity)
}

func TestAdjust_SingleBatchUnbatchedCount(t *testing.T) {
	f := newFixture(t, inventory.LedgerConfig{})
	f.receive(t, inventory.MovementLineInput{ProductID: "P1", LocationID: "L2", Quantity: dec("10"), UnitPrice: decPtr("12"), BatchLabel: "LOT-A"})

	_, err := f.uc.Adjust(context.Background(), inventory.AdjustmentRequest{Lines: []inventory.CountLineInput{
		{ProductID: "P1", LocationID: "L2", PhysicalCount: dec("8"), SystemCount: dec("10")},
	}})
	require.NoError(t, err)
	assertDec(t, "8", f.store.Row(key("P1", "L2", "LOT-A")).Quantity)
}

func TestIdempotentReplay(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t, inventory.LedgerConfig{Idempotency: redisstore.NewIdempotencyStore(client, time.Hour)})
	req := inventory.MovementRequest{IdempotencyKey: "rx-1", Lines: []inventory.MovementLineInput{in("P1", "L2", "3", "9")}}

	first, err := f.uc.Receive(context.Background(), req)
	require.NoError(t, err)
	second, err := f.uc.Receive(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assertDec(t, "3", f.store.Row(key("P1", "L2", "")).Quantity)
	assert.Len(t, f.store.MovementLog(), 1)

	// un fallo libera la llave para reintentar
	bad := inventory.MovementRequest{IdempotencyKey: "rx-2", Lines: []inventory.MovementLineInput{in("P1", "L3", "50", "9")}}
	_, err = f.uc.Receive(context.Background(), bad)
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)
	_, err = f.uc.Receive(context.Background(), bad)
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)
}

func TestGetMovementAndListStock(t *testing.T) {
	f := newFixture(t, inventory.LedgerConfig{})
	mov := f.receive(t,
		inventory.MovementLineInput{ProductID: "P1", LocationID: "L2", Quantity: dec("1"), UnitPrice: decPtr("1"), BatchLabel: "Z", ExpiryDate: day(2026, 9, 1)},
		inventory.MovementLineInput{ProductID: "P1", LocationID: "L2", Quantity: dec("1"), UnitPrice: decPtr("1"), BatchLabel: "Y"},
		inventory.MovementLineInput{ProductID: "P1", LocationID: "L2", Quantity: dec("1"), UnitPrice: decPtr("1"), BatchLabel: "X", ExpiryDate: day(2026, 1, 1)},
	)
	ctx := context.Background()

	got, err := f.uc.GetMovement(ctx, mov.ID)
	require.NoError(t, err)
	assert.Len(t, got.Lines, 3)

	_, err = f.uc.GetMovement(ctx, "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	rows, err := f.uc.ListStock(ctx, "P1", "L2")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "X", rows[0].BatchLabel)
	assert.Equal(t, "Z", rows[1].BatchLabel)
	assert.Equal(t, "Y", rows[2].BatchLabel)
}
