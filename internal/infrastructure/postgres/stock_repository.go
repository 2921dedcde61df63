package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

// StockRepo implementación de StockRepository sobre PostgreSQL (usable con pool o tx).
type StockRepo struct {
	q Querier
}

// NewStockRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewStockRepository(q Querier) *StockRepo {
	return &StockRepo{q: q}
}

const stockColumns = `id, product_id, location_id, batch_label, quantity, average_cost, expiry_date, created_at, updated_at`

// fifoOrder orden de consumo: vence primero, sin vencimiento al final, luego antigüedad.
const fifoOrder = `ORDER BY expiry_date ASC NULLS LAST, created_at ASC, id ASC`

func scanStockRow(row pgx.Row) (*entity.StockRow, error) {
	var s entity.StockRow
	err := row.Scan(&s.ID, &s.ProductID, &s.LocationID, &s.BatchLabel, &s.Quantity, &s.AverageCost,
		&s.ExpiryDate, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectStockRows(rows pgx.Rows) ([]*entity.StockRow, error) {
	defer rows.Close()
	var out []*entity.StockRow
	for rows.Next() {
		s, err := scanStockRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetForUpdate obtiene la fila y la bloquea (SELECT FOR UPDATE). nil si no existe.
func (r *StockRepo) GetForUpdate(ctx context.Context, key entity.StockKey) (*entity.StockRow, error) {
	query := `SELECT ` + stockColumns + `
		FROM stock_rows
		WHERE product_id = $1 AND location_id = $2 AND batch_label = $3
		FOR UPDATE`
	s, err := scanStockRow(r.q.QueryRow(ctx, query, key.ProductID, key.LocationID, key.BatchLabel))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock row for update: %w", err)
	}
	return s, nil
}

// ListForUpdate bloquea todas las filas de producto+ubicación en orden FIFO.
func (r *StockRepo) ListForUpdate(ctx context.Context, productID, locationID string) ([]*entity.StockRow, error) {
	query := `SELECT ` + stockColumns + `
		FROM stock_rows
		WHERE product_id = $1 AND location_id = $2
		` + fifoOrder + `
		FOR UPDATE`
	rows, err := r.q.Query(ctx, query, productID, locationID)
	if err != nil {
		return nil, fmt.Errorf("list stock rows for update: %w", err)
	}
	out, err := collectStockRows(rows)
	if err != nil {
		return nil, fmt.Errorf("scan stock rows: %w", err)
	}
	return out, nil
}

// VolumeAt volumen ocupado de la ubicación; los productos sin volumen usan el valor por defecto.
func (r *StockRepo) VolumeAt(ctx context.Context, locationID string, defaultUnitVolume decimal.Decimal) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(s.quantity * COALESCE(p.unit_volume, $2::numeric)), 0)
		FROM stock_rows s
		JOIN products p ON p.id = s.product_id
		WHERE s.location_id = $1`
	var used decimal.Decimal
	if err := r.q.QueryRow(ctx, query, locationID, defaultUnitVolume).Scan(&used); err != nil {
		return decimal.Zero, fmt.Errorf("location volume: %w", err)
	}
	return used, nil
}

// Insert crea una fila nueva. Una carrera en la llave (producto, ubicación, lote) es un conflicto.
func (r *StockRepo) Insert(ctx context.Context, row *entity.StockRow) error {
	query := `
		INSERT INTO stock_rows (` + stockColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query, row.ID, row.ProductID, row.LocationID, row.BatchLabel,
		row.Quantity, row.AverageCost, row.ExpiryDate, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: fila de stock %s creada por otra operación", domain.ErrConflict, row.Key())
		}
		return fmt.Errorf("insert stock row: %w", err)
	}
	return nil
}

// Update persiste cantidad, costo y vencimiento de una fila existente.
func (r *StockRepo) Update(ctx context.Context, row *entity.StockRow) error {
	query := `
		UPDATE stock_rows
		SET quantity = $2, average_cost = $3, expiry_date = $4, updated_at = $5
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, row.ID, row.Quantity, row.AverageCost, row.ExpiryDate, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update stock row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByProductLocation lectura sin bloqueo.
func (r *StockRepo) ListByProductLocation(ctx context.Context, productID, locationID string) ([]*entity.StockRow, error) {
	query := `SELECT ` + stockColumns + `
		FROM stock_rows
		WHERE product_id = $1 AND location_id = $2
		` + fifoOrder
	rows, err := r.q.Query(ctx, query, productID, locationID)
	if err != nil {
		return nil, fmt.Errorf("list stock rows: %w", err)
	}
	out, err := collectStockRows(rows)
	if err != nil {
		return nil, fmt.Errorf("scan stock rows: %w", err)
	}
	return out, nil
}
