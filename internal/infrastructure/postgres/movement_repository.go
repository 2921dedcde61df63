package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

// MovementRepo registro de movimientos sobre PostgreSQL (usable con pool o tx).
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

// Create inserta la cabecera y todas las líneas. Debe ejecutarse dentro de la misma tx que mutó el stock.
func (r *MovementRepo) Create(ctx context.Context, m *entity.Movement) error {
	var idemKey *string
	if m.IdempotencyKey != "" {
		idemKey = &m.IdempotencyKey
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO movements (id, kind, reference, operator_id, note, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, string(m.Kind), m.Reference, m.OperatorID, m.Note, idemKey, m.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: movimiento repetido (llave %q)", domain.ErrConflict, m.IdempotencyKey)
		}
		return fmt.Errorf("insert movement: %w", err)
	}

	batch := &pgx.Batch{}
	for _, l := range m.Lines {
		batch.Queue(`
			INSERT INTO movement_lines (id, movement_id, line_no, product_id, location_id, quantity, unit_price, batch_label, expiry_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			l.ID, m.ID, l.LineNo, l.ProductID, l.LocationID, l.Quantity, l.UnitPrice, l.BatchLabel, l.ExpiryDate,
		)
	}
	if batch.Len() == 0 {
		return nil
	}
	br := r.q.SendBatch(ctx, batch)
	defer br.Close()
	for _, l := range m.Lines {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert movement line %d: %w", l.LineNo, err)
		}
	}
	return nil
}

// GetByID obtiene un movimiento con sus líneas ordenadas. nil si no existe.
func (r *MovementRepo) GetByID(ctx context.Context, id string) (*entity.Movement, error) {
	var m entity.Movement
	var kind string
	var idemKey *string
	err := r.q.QueryRow(ctx, `
		SELECT id, kind, reference, operator_id, note, idempotency_key, created_at
		FROM movements WHERE id = $1`, id,
	).Scan(&m.ID, &kind, &m.Reference, &m.OperatorID, &m.Note, &idemKey, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}
	m.Kind = entity.MovementKind(kind)
	if idemKey != nil {
		m.IdempotencyKey = *idemKey
	}

	rows, err := r.q.Query(ctx, `
		SELECT id, movement_id, line_no, product_id, location_id, quantity, unit_price, batch_label, expiry_date
		FROM movement_lines WHERE movement_id = $1 ORDER BY line_no`, id)
	if err != nil {
		return nil, fmt.Errorf("list movement lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l entity.MovementLine
		if err := rows.Scan(&l.ID, &l.MovementID, &l.LineNo, &l.ProductID, &l.LocationID,
			&l.Quantity, &l.UnitPrice, &l.BatchLabel, &l.ExpiryDate); err != nil {
			return nil, fmt.Errorf("scan movement line: %w", err)
		}
		m.Lines = append(m.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list movement lines: %w", err)
	}
	return &m, nil
}
