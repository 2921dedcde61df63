// Package memory implementa los puertos del libro de existencias en memoria.
// Run toma un mutex global durante toda la unidad de trabajo, lo que equivale a
// bloquear todas las filas: las operaciones concurrentes quedan serializadas igual
// que con SELECT ... FOR UPDATE. Un error en la unidad de trabajo restaura la foto previa.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ inventory.TxRunner = (*Store)(nil)

// Store base de datos en memoria.
type Store struct {
	mu        sync.Mutex
	products  map[string]*entity.Product
	locations map[string]*entity.Location
	stock     map[entity.StockKey]*entity.StockRow
	movements []*entity.Movement

	// OnMovementCreate se invoca antes de guardar un movimiento; si devuelve error la
	// unidad de trabajo falla (útil para probar el rollback).
	OnMovementCreate func(m *entity.Movement) error
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{
		products:  make(map[string]*entity.Product),
		locations: make(map[string]*entity.Location),
		stock:     make(map[entity.StockKey]*entity.StockRow),
	}
}

type snapshot struct {
	products  map[string]*entity.Product
	locations map[string]*entity.Location
	stock     map[entity.StockKey]*entity.StockRow
	movements int
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		products:  make(map[string]*entity.Product, len(s.products)),
		locations: make(map[string]*entity.Location, len(s.locations)),
		stock:     make(map[entity.StockKey]*entity.StockRow, len(s.stock)),
		movements: len(s.movements),
	}
	for k, p := range s.products {
		c := *p
		snap.products[k] = &c
	}
	for k, l := range s.locations {
		c := *l
		snap.locations[k] = &c
	}
	for k, r := range s.stock {
		snap.stock[k] = r.Clone()
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.products = snap.products
	s.locations = snap.locations
	s.stock = snap.stock
	s.movements = s.movements[:snap.movements]
}

// Run ejecuta fn con exclusión total; si fn falla, se descarta todo lo escrito.
func (s *Store) Run(ctx context.Context, fn func(ctx context.Context, uow inventory.UnitOfWork) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := s.snapshot()
	if err := fn(ctx, &unitOfWork{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// Products repositorio de productos fuera de transacción.
func (s *Store) Products() repository.ProductRepository { return &productRepo{s: s} }

// Locations repositorio de ubicaciones fuera de transacción.
func (s *Store) Locations() repository.LocationRepository { return &locationRepo{s: s} }

// Movements repositorio de movimientos fuera de transacción.
func (s *Store) Movements() repository.MovementRepository { return &movementRepo{s: s} }

// Stock repositorio de stock fuera de transacción (sólo lecturas tienen sentido).
func (s *Store) Stock() repository.StockRepository { return &stockRepo{s: s} }

// StockRows copia de todas las filas ordenada por llave.
func (s *Store) StockRows() []*entity.StockRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.StockRow, 0, len(s.stock))
	for _, r := range s.stock {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key(), out[j].Key()
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		if a.LocationID != b.LocationID {
			return a.LocationID < b.LocationID
		}
		return a.BatchLabel < b.BatchLabel
	})
	return out
}

// Row copia de una fila o nil.
func (s *Store) Row(key entity.StockKey) *entity.StockRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.stock[key]; ok {
		return r.Clone()
	}
	return nil
}

// MovementLog copia del registro de movimientos en orden de confirmación.
func (s *Store) MovementLog() []*entity.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.Movement, 0, len(s.movements))
	for _, m := range s.movements {
		out = append(out, cloneMovement(m))
	}
	return out
}

type unitOfWork struct {
	s *Store
}

func (u *unitOfWork) Stock() repository.StockRepository       { return &stockRepo{s: u.s, held: true} }
func (u *unitOfWork) Movements() repository.MovementRepository { return &movementRepo{s: u.s, held: true} }
func (u *unitOfWork) Products() repository.ProductRepository   { return &productRepo{s: u.s, held: true} }
func (u *unitOfWork) Locations() repository.LocationRepository { return &locationRepo{s: u.s, held: true} }

// lock toma el mutex salvo que la unidad de trabajo ya lo tenga.
func (s *Store) lock(held bool) func() {
	if held {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// stockRepo

type stockRepo struct {
	s    *Store
	held bool
}

func (r *stockRepo) GetForUpdate(_ context.Context, key entity.StockKey) (*entity.StockRow, error) {
	defer r.s.lock(r.held)()
	if row, ok := r.s.stock[key]; ok {
		return row.Clone(), nil
	}
	return nil, nil
}

func (r *stockRepo) ListForUpdate(ctx context.Context, productID, locationID string) ([]*entity.StockRow, error) {
	return r.ListByProductLocation(ctx, productID, locationID)
}

func (r *stockRepo) VolumeAt(_ context.Context, locationID string, defaultUnitVolume decimal.Decimal) (decimal.Decimal, error) {
	defer r.s.lock(r.held)()
	total := decimal.Zero
	for _, row := range r.s.stock {
		if row.LocationID != locationID {
			continue
		}
		vol := defaultUnitVolume
		if p, ok := r.s.products[row.ProductID]; ok {
			vol = p.VolumePerUnit(defaultUnitVolume)
		}
		total = total.Add(row.Quantity.Mul(vol))
	}
	return total, nil
}

func (r *stockRepo) Insert(_ context.Context, row *entity.StockRow) error {
	defer r.s.lock(r.held)()
	if _, ok := r.s.stock[row.Key()]; ok {
		return domain.ErrConflict
	}
	r.s.stock[row.Key()] = row.Clone()
	return nil
}

func (r *stockRepo) Update(_ context.Context, row *entity.StockRow) error {
	defer r.s.lock(r.held)()
	if _, ok := r.s.stock[row.Key()]; !ok {
		return domain.ErrNotFound
	}
	r.s.stock[row.Key()] = row.Clone()
	return nil
}

func (r *stockRepo) ListByProductLocation(_ context.Context, productID, locationID string) ([]*entity.StockRow, error) {
	defer r.s.lock(r.held)()
	var out []*entity.StockRow
	for k, row := range r.s.stock {
		if k.ProductID == productID && k.LocationID == locationID {
			out = append(out, row.Clone())
		}
	}
	return out, nil
}

// movementRepo

type movementRepo struct {
	s    *Store
	held bool
}

func (r *movementRepo) Create(_ context.Context, m *entity.Movement) error {
	defer r.s.lock(r.held)()
	if r.s.OnMovementCreate != nil {
		if err := r.s.OnMovementCreate(m); err != nil {
			return err
		}
	}
	for _, existing := range r.s.movements {
		if existing.ID == m.ID {
			return domain.ErrDuplicate
		}
		if m.IdempotencyKey != "" && existing.Kind == m.Kind && existing.IdempotencyKey == m.IdempotencyKey {
			return domain.ErrConflict
		}
	}
	r.s.movements = append(r.s.movements, cloneMovement(m))
	return nil
}

func (r *movementRepo) GetByID(_ context.Context, id string) (*entity.Movement, error) {
	defer r.s.lock(r.held)()
	for _, m := range r.s.movements {
		if m.ID == id {
			return cloneMovement(m), nil
		}
	}
	return nil, nil
}

func cloneMovement(m *entity.Movement) *entity.Movement {
	c := *m
	c.Lines = make([]entity.MovementLine, len(m.Lines))
	copy(c.Lines, m.Lines)
	return &c
}

// productRepo

type productRepo struct {
	s    *Store
	held bool
}

func (r *productRepo) Create(_ context.Context, p *entity.Product) error {
	defer r.s.lock(r.held)()
	for _, existing := range r.s.products {
		if existing.SKU == p.SKU {
			return domain.ErrDuplicate
		}
	}
	c := *p
	r.s.products[p.ID] = &c
	return nil
}

func (r *productRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	defer r.s.lock(r.held)()
	if p, ok := r.s.products[id]; ok {
		c := *p
		return &c, nil
	}
	return nil, nil
}

func (r *productRepo) GetBySKU(_ context.Context, sku string) (*entity.Product, error) {
	defer r.s.lock(r.held)()
	for _, p := range r.s.products {
		if p.SKU == sku {
			c := *p
			return &c, nil
		}
	}
	return nil, nil
}

func (r *productRepo) Update(_ context.Context, p *entity.Product) error {
	defer r.s.lock(r.held)()
	if _, ok := r.s.products[p.ID]; !ok {
		return domain.ErrNotFound
	}
	c := *p
	r.s.products[p.ID] = &c
	return nil
}

func (r *productRepo) UpdateSellingPrice(_ context.Context, productID string, price decimal.Decimal) error {
	defer r.s.lock(r.held)()
	p, ok := r.s.products[productID]
	if !ok {
		return domain.ErrNotFound
	}
	p.SellingPrice = price
	return nil
}

func (r *productRepo) List(_ context.Context, limit, offset int) ([]*entity.Product, error) {
	defer r.s.lock(r.held)()
	all := make([]*entity.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		c := *p
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SKU < all[j].SKU })
	return page(all, limit, offset), nil
}

// locationRepo

type locationRepo struct {
	s    *Store
	held bool
}

func (r *locationRepo) Create(_ context.Context, l *entity.Location) error {
	defer r.s.lock(r.held)()
	if _, ok := r.s.locations[l.ID]; ok {
		return domain.ErrDuplicate
	}
	c := *l
	r.s.locations[l.ID] = &c
	return nil
}

func (r *locationRepo) GetByID(_ context.Context, id string) (*entity.Location, error) {
	defer r.s.lock(r.held)()
	if l, ok := r.s.locations[id]; ok {
		c := *l
		return &c, nil
	}
	return nil, nil
}

func (r *locationRepo) GetForUpdate(ctx context.Context, id string) (*entity.Location, error) {
	return r.GetByID(ctx, id)
}

func (r *locationRepo) Update(_ context.Context, l *entity.Location) error {
	defer r.s.lock(r.held)()
	if _, ok := r.s.locations[l.ID]; !ok {
		return domain.ErrNotFound
	}
	c := *l
	r.s.locations[l.ID] = &c
	return nil
}

func (r *locationRepo) List(_ context.Context, limit, offset int) ([]*entity.Location, error) {
	defer r.s.lock(r.held)()
	all := make([]*entity.Location, 0, len(r.s.locations))
	for _, l := range r.s.locations {
		c := *l
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return page(all, limit, offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
