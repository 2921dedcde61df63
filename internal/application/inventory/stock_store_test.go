package inventory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
)

var storeNow = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func seedRow(t *testing.T, s *memory.Store, id string, key entity.StockKey, qty, cost string, expiry *time.Time, created time.Time) {
	t.Helper()
	row, err := entity.NewStockRow(id, key, dec(qty), dec(cost), expiry, created)
	require.NoError(t, err)
	require.NoError(t, s.Stock().Insert(context.Background(), row))
}

func TestStockStore_UpsertAddCreatesAndAverages(t *testing.T) {
	s := memory.NewStore()
	key := entity.StockKey{ProductID: "p1", LocationID: "l1"}

	err := s.Run(context.Background(), func(ctx context.Context, uow inventory.UnitOfWork) error {
		st := inventory.NewStockStore(uow.Stock(), storeNow)
		row, err := st.UpsertAdd(ctx, inventory.AddRequest{Key: key, Quantity: dec("10"), UnitCost: decPtr("100")})
		require.NoError(t, err)
		assertDec(t, "100", row.AverageCost)

		row, err = st.UpsertAdd(ctx, inventory.AddRequest{Key: key, Quantity: dec("10"), UnitCost: decPtr("120")})
		require.NoError(t, err)
		assertDec(t, "20", row.Quantity)
		assertDec(t, "110", row.AverageCost)
		return st.Flush(ctx)
	})
	require.NoError(t, err)

	stored := s.Row(key)
	require.NotNil(t, stored)
	assertDec(t, "20", stored.Quantity)
	assertDec(t, "110", stored.AverageCost)
}

func TestStockStore_UpsertAddBlendsIncomingCost(t *testing.T) {
	s := memory.NewStore()
	full := entity.StockKey{ProductID: "p1", LocationID: "l1"}
	empty := entity.StockKey{ProductID: "p1", LocationID: "l2"}
	seedRow(t, s, "r1", full, "5", "50", nil, storeNow)
	seedRow(t, s, "r2", empty, "0", "40", nil, storeNow)

	err := s.Run(context.Background(), func(ctx context.Context, uow inventory.UnitOfWork) error {
		st := inventory.NewStockStore(uow.Stock(), storeNow)
		row, err := st.UpsertAdd(ctx, inventory.AddRequest{Key: full, Quantity: dec("5"), UnitCost: decPtr("90")})
		require.NoError(t, err)
		// (5*50 + 5*90) / 10
		assertDec(t, "70", row.AverageCost)

		row, err = st.UpsertAdd(ctx, inventory.AddRequest{Key: empty, Quantity: dec("3"), UnitCost: decPtr("90")})
		require.NoError(t, err)
		assertDec(t, "90", row.AverageCost)

		// sin costo entrante la fila conserva el suyo
		row, err = st.UpsertAdd(ctx, inventory.AddRequest{Key: full, Quantity: dec("10")})
		require.NoError(t, err)
		assertDec(t, "70", row.AverageCost)
		assertDec(t, "20", row.Quantity)
		return st.Flush(ctx)
	})
	require.NoError(t, err)
}

func TestStockStore_SubtractKeepsCostAndRejectsNegative(t *testing.T) {
	s := memory.NewStore()
	key := entity.StockKey{ProductID: "p1", LocationID: "l1"}
	seedRow(t, s, "r1", key, "4", "25", nil, storeNow)

	err := s.Run(context.Background(), func(ctx context.Context, uow inventory.UnitOfWork) error {
		st := inventory.NewStockStore(uow.Stock(), storeNow)
		row, err := st.Subtract(ctx, key, dec("3"))
		require.NoError(t, err)
		assertDec(t, "1", row.Quantity)
		assertDec(t, "25", row.AverageCost)

		_, err = st.Subtract(ctx, key, dec("2"))
		assert.True(t, errors.Is(err, domain.ErrInsufficientStock))

		_, err = st.Subtract(ctx, entity.StockKey{ProductID: "p1", LocationID: "otra"}, dec("1"))
		assert.True(t, errors.Is(err, domain.ErrInsufficientStock))

		_, err = st.Subtract(ctx, key, dec("0"))
		assert.True(t, errors.Is(err, domain.ErrInvalidQuantity))
		return st.Flush(ctx)
	})
	require.NoError(t, err)
	assertDec(t, "1", s.Row(key).Quantity)
}

func TestStockStore_CandidatesFIFOIncludesNewRows(t *testing.T) {
	s := memory.NewStore()
	base := entity.StockKey{ProductID: "p1", LocationID: "l1"}
	late := base
	late.BatchLabel = "B"
	early := base
	early.BatchLabel = "A"
	seedRow(t, s, "r-none", base, "1", "10", nil, storeNow)
	seedRow(t, s, "r-late", late, "1", "10", day(2027, 6, 1), storeNow)

	err := s.Run(context.Background(), func(ctx context.Context, uow inventory.UnitOfWork) error {
		st := inventory.NewStockStore(uow.Stock(), storeNow)
		_, err := st.Candidates(ctx, "p1", "l1")
		require.NoError(t, err)
		_, err = st.UpsertAdd(ctx, inventory.AddRequest{Key: early, Quantity: dec("2"), UnitCost: decPtr("10"), ExpiryDate: day(2026, 12, 1)})
		require.NoError(t, err)

		rows, err := st.Candidates(ctx, "p1", "l1")
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "A", rows[0].BatchLabel)
		assert.Equal(t, "B", rows[1].BatchLabel)
		assert.Equal(t, "", rows[2].BatchLabel)

		total, err := st.Available(ctx, "p1", "l1")
		require.NoError(t, err)
		assertDec(t, "4", total)
		return nil
	})
	require.NoError(t, err)
	// sin Flush no se persiste la fila nueva
	assert.Nil(t, s.Row(early))
}
