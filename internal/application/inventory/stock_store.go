package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	domaininv "github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// StockStore es el único camino de mutación de filas de stock dentro de una unidad de trabajo.
// Toda fila pasa primero por un SELECT ... FOR UPDATE; después se trabaja sobre la copia
// bloqueada en memoria y Flush persiste sólo las filas modificadas.
type StockStore struct {
	repo    repository.StockRepository
	rows    map[entity.StockKey]*entity.StockRow
	listed  map[pairKey]bool
	created map[entity.StockKey]bool
	dirty   []entity.StockKey
	isDirty map[entity.StockKey]bool
	now     time.Time
}

type pairKey struct {
	ProductID  string
	LocationID string
}

func (p pairKey) less(o pairKey) bool {
	if p.ProductID != o.ProductID {
		return p.ProductID < o.ProductID
	}
	return p.LocationID < o.LocationID
}

// AddRequest entrada de UpsertAdd.
type AddRequest struct {
	Key      entity.StockKey
	Quantity decimal.Decimal
	// UnitCost costo de las unidades entrantes (compra o costo que traen de otra fila);
	// si viene, se pondera con la existencia de la fila. Sin él la fila conserva su costo.
	UnitCost   *decimal.Decimal
	ExpiryDate *time.Time
}

// NewStockStore construye el almacén para una unidad de trabajo.
func NewStockStore(repo repository.StockRepository, now time.Time) *StockStore {
	return &StockStore{
		repo:    repo,
		rows:    make(map[entity.StockKey]*entity.StockRow),
		listed:  make(map[pairKey]bool),
		created: make(map[entity.StockKey]bool),
		isDirty: make(map[entity.StockKey]bool),
		now:     now,
	}
}

// GetForUpdate devuelve la fila bloqueada (nil si no existe). La fila devuelta no debe modificarse
// directamente: usar UpsertAdd/Subtract.
func (s *StockStore) GetForUpdate(ctx context.Context, key entity.StockKey) (*entity.StockRow, error) {
	if row, ok := s.rows[key]; ok {
		return row, nil
	}
	if s.listed[pairKey{key.ProductID, key.LocationID}] {
		return nil, nil
	}
	row, err := s.repo.GetForUpdate(ctx, key)
	if err != nil {
		return nil, err
	}
	if row != nil {
		s.rows[key] = row
	}
	return row, nil
}

// Candidates bloquea (una sola vez por operación) y devuelve todas las filas de producto+ubicación
// en orden FIFO, incluidas las creadas en esta misma operación.
func (s *StockStore) Candidates(ctx context.Context, productID, locationID string) ([]*entity.StockRow, error) {
	pk := pairKey{productID, locationID}
	if !s.listed[pk] {
		locked, err := s.repo.ListForUpdate(ctx, productID, locationID)
		if err != nil {
			return nil, err
		}
		for _, r := range locked {
			if _, ok := s.rows[r.Key()]; !ok {
				s.rows[r.Key()] = r
			}
		}
		s.listed[pk] = true
	}
	var out []*entity.StockRow
	for k, r := range s.rows {
		if k.ProductID == productID && k.LocationID == locationID {
			out = append(out, r)
		}
	}
	domaininv.SortFIFO(out)
	return out, nil
}

// Available suma de cantidades de producto+ubicación (todas las filas bloqueadas).
func (s *StockStore) Available(ctx context.Context, productID, locationID string) (decimal.Decimal, error) {
	rows, err := s.Candidates(ctx, productID, locationID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Quantity)
	}
	return total, nil
}

// UpsertAdd suma cantidad a la fila, creándola si no existe (sólo con cantidad > 0).
// Con UnitCost recalcula el costo promedio ponderado por cantidad.
func (s *StockStore) UpsertAdd(ctx context.Context, in AddRequest) (*entity.StockRow, error) {
	if !in.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: entrada %s en %s", domain.ErrInvalidQuantity, in.Quantity, in.Key)
	}
	row, err := s.GetForUpdate(ctx, in.Key)
	if err != nil {
		return nil, err
	}
	if row == nil {
		cost := decimal.Zero
		if in.UnitCost != nil {
			cost = *in.UnitCost
		}
		row, err = entity.NewStockRow(uuid.New().String(), in.Key, in.Quantity, cost, in.ExpiryDate, s.now)
		if err != nil {
			return nil, err
		}
		s.rows[in.Key] = row
		s.created[in.Key] = true
		s.markDirty(in.Key)
		return row, nil
	}

	if in.UnitCost != nil {
		row.AverageCost = domaininv.CostCalculator(row.Quantity, row.AverageCost, in.Quantity, *in.UnitCost)
	}
	row.Quantity = row.Quantity.Add(in.Quantity)
	if row.ExpiryDate == nil && in.ExpiryDate != nil {
		exp := *in.ExpiryDate
		row.ExpiryDate = &exp
	}
	row.UpdatedAt = s.now
	s.markDirty(in.Key)
	return row, nil
}

// Subtract descuenta cantidad sin tocar el costo promedio.
// Falla con ErrInsufficientStock si la fila no existe o quedaría negativa.
func (s *StockStore) Subtract(ctx context.Context, key entity.StockKey, qty decimal.Decimal) (*entity.StockRow, error) {
	if !qty.IsPositive() {
		return nil, fmt.Errorf("%w: salida %s en %s", domain.ErrInvalidQuantity, qty, key)
	}
	row, err := s.GetForUpdate(ctx, key)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%w: sin existencias en %s", domain.ErrInsufficientStock, key)
	}
	if row.Quantity.LessThan(qty) {
		return nil, fmt.Errorf("%w: %s disponible %s, solicitado %s", domain.ErrInsufficientStock, key, row.Quantity, qty)
	}
	row.Quantity = row.Quantity.Sub(qty)
	row.UpdatedAt = s.now
	s.markDirty(key)
	return row, nil
}

// Flush persiste las filas modificadas en orden de llave, el mismo en todas las transacciones:
// dos operaciones que crean las mismas filas esperan una por la otra en vez de interbloquearse.
func (s *StockStore) Flush(ctx context.Context) error {
	sort.Slice(s.dirty, func(i, j int) bool { return keyLess(s.dirty[i], s.dirty[j]) })
	for _, key := range s.dirty {
		row := s.rows[key]
		if err := row.Validate(); err != nil {
			return err
		}
		if s.created[key] {
			if err := s.repo.Insert(ctx, row); err != nil {
				return err
			}
			continue
		}
		if err := s.repo.Update(ctx, row); err != nil {
			return err
		}
	}
	s.dirty = nil
	s.isDirty = make(map[entity.StockKey]bool)
	s.created = make(map[entity.StockKey]bool)
	return nil
}

func keyLess(a, b entity.StockKey) bool {
	if a.ProductID != b.ProductID {
		return a.ProductID < b.ProductID
	}
	if a.LocationID != b.LocationID {
		return a.LocationID < b.LocationID
	}
	return a.BatchLabel < b.BatchLabel
}

func (s *StockStore) markDirty(key entity.StockKey) {
	if !s.isDirty[key] {
		s.isDirty[key] = true
		s.dirty = append(s.dirty, key)
	}
}

// sortedPairs deduplica y ordena pares producto+ubicación para bloquear en orden determinista.
func sortedPairs(pairs []pairKey) []pairKey {
	seen := make(map[pairKey]bool, len(pairs))
	out := make([]pairKey, 0, len(pairs))
	for _, p := range pairs {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}
