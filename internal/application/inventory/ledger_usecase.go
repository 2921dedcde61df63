package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	domaininv "github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// resolveConcurrency consultas simultáneas de datos de referencia.
const resolveConcurrency = 8

// LedgerConfig opciones del libro de existencias.
type LedgerConfig struct {
	DefaultUnitVolume decimal.Decimal  // volumen unitario para productos sin volumen
	Idempotency       IdempotencyStore // opcional
}

// LedgerUseCase coordina las operaciones del libro de existencias (RECEIPT, SHIPMENT,
// TRANSFER, ADJUSTMENT). Cada operación es una sola transacción: bloquea filas con
// SELECT ... FOR UPDATE, planifica todas las líneas contra la foto bloqueada, aplica las
// mutaciones, escribe el movimiento y hace Commit; cualquier error hace Rollback completo.
type LedgerUseCase struct {
	txRunner          TxRunner
	productRepo       repository.ProductRepository
	locationRepo      repository.LocationRepository
	movementRepo      repository.MovementRepository
	stockRepo         repository.StockRepository
	idem              IdempotencyStore
	log               *logger.Logger
	defaultUnitVolume decimal.Decimal
	now               func() time.Time
}

// NewLedgerUseCase construye el caso de uso. Los repositorios son de lectura (fuera de transacción);
// toda escritura pasa por txRunner.
func NewLedgerUseCase(
	txRunner TxRunner,
	productRepo repository.ProductRepository,
	locationRepo repository.LocationRepository,
	movementRepo repository.MovementRepository,
	stockRepo repository.StockRepository,
	log *logger.Logger,
	cfg LedgerConfig,
) *LedgerUseCase {
	if log == nil {
		log = logger.Nop()
	}
	def := cfg.DefaultUnitVolume
	if def.IsNegative() {
		def = decimal.Zero
	}
	return &LedgerUseCase{
		txRunner:          txRunner,
		productRepo:       productRepo,
		locationRepo:      locationRepo,
		movementRepo:      movementRepo,
		stockRepo:         stockRepo,
		idem:              cfg.Idempotency,
		log:               log,
		defaultUnitVolume: def,
		now:               time.Now,
	}
}

// Receive registra una entrada: capacidad acumulada por ubicación, costo promedio y alta de stock.
func (uc *LedgerUseCase) Receive(ctx context.Context, req MovementRequest) (*entity.Movement, error) {
	if err := validateMovementLines(req.Lines, true); err != nil {
		return nil, err
	}
	var productIDs, locationIDs []string
	var pairs []pairKey
	for _, l := range req.Lines {
		productIDs = append(productIDs, l.ProductID)
		locationIDs = append(locationIDs, l.LocationID)
		pairs = append(pairs, pairKey{l.ProductID, l.LocationID})
	}
	refs, err := uc.resolve(ctx, productIDs, locationIDs)
	if err != nil {
		return nil, err
	}
	hdr := header{req.Reference, req.OperatorID, req.Note, req.IdempotencyKey}

	return uc.execute(ctx, entity.MovementReceipt, hdr, refs, locationIDs, func(ctx context.Context, op *operation) error {
		if err := op.lockPairs(ctx, pairs); err != nil {
			return err
		}
		for i, line := range req.Lines {
			product := op.products[line.ProductID]
			if err := op.admit(ctx, line.LocationID, product, line.Quantity); err != nil {
				return fmt.Errorf("línea %d: %w", i+1, err)
			}
			key := entity.StockKey{ProductID: line.ProductID, LocationID: line.LocationID, BatchLabel: line.BatchLabel}
			row, err := op.store.UpsertAdd(ctx, AddRequest{
				Key:        key,
				Quantity:   line.Quantity,
				UnitCost:   line.UnitPrice,
				ExpiryDate: line.ExpiryDate,
			})
			if err != nil {
				return fmt.Errorf("línea %d: %w", i+1, err)
			}
			// la línea registra el vencimiento informado; la fila conserva el que ya tenía
			expiry := line.ExpiryDate
			if expiry == nil {
				expiry = row.ExpiryDate
			}
			op.addLine(entity.MovementLine{
				ProductID:  line.ProductID,
				LocationID: line.LocationID,
				Quantity:   line.Quantity,
				UnitPrice:  *line.UnitPrice,
				BatchLabel: line.BatchLabel,
				ExpiryDate: copyTime(expiry),
			})
			op.refreshPrice(product, line.SellingPrice)
		}
		return nil
	})
}

// Ship registra una salida: verificación previa de existencias y consumo FIFO por vencimiento.
// Una línea puede generar varias líneas de movimiento, una por lote consumido.
func (uc *LedgerUseCase) Ship(ctx context.Context, req MovementRequest) (*entity.Movement, error) {
	if err := validateMovementLines(req.Lines, false); err != nil {
		return nil, err
	}
	var productIDs, locationIDs []string
	var pairs []pairKey
	for _, l := range req.Lines {
		productIDs = append(productIDs, l.ProductID)
		locationIDs = append(locationIDs, l.LocationID)
		pairs = append(pairs, pairKey{l.ProductID, l.LocationID})
	}
	refs, err := uc.resolve(ctx, productIDs, locationIDs)
	if err != nil {
		return nil, err
	}
	hdr := header{req.Reference, req.OperatorID, req.Note, req.IdempotencyKey}

	return uc.execute(ctx, entity.MovementShipment, hdr, refs, nil, func(ctx context.Context, op *operation) error {
		if err := op.lockPairs(ctx, pairs); err != nil {
			return err
		}
		needs := make([]demand, 0, len(req.Lines))
		for _, l := range req.Lines {
			needs = append(needs, demand{pairKey{l.ProductID, l.LocationID}, l.BatchLabel, l.Quantity})
		}
		if err := op.preflight(ctx, needs); err != nil {
			return err
		}
		for i, line := range req.Lines {
			draws, err := op.plan(ctx, line.ProductID, line.LocationID, line.BatchLabel, line.Quantity)
			if err != nil {
				return fmt.Errorf("línea %d: %w", i+1, err)
			}
			for _, dr := range draws {
				if _, err := op.store.Subtract(ctx, dr.Row.Key(), dr.Quantity); err != nil {
					return fmt.Errorf("línea %d: %w", i+1, err)
				}
				op.addLine(entity.MovementLine{
					ProductID:  line.ProductID,
					LocationID: line.LocationID,
					Quantity:   dr.Quantity.Neg(),
					UnitPrice:  dr.UnitCost,
					BatchLabel: dr.Row.BatchLabel,
					ExpiryDate: copyTime(dr.Row.ExpiryDate),
				})
			}
			op.refreshPrice(op.products[line.ProductID], line.SellingPrice)
		}
		return nil
	})
}

// Transfer traslada existencias entre ubicaciones: consume FIFO en origen y suma en destino
// conservando lote y vencimiento. Las unidades viajan con su costo; si la fila destino ya tiene
// existencias se pondera por cantidad, de modo que el valor total del inventario no cambia.
func (uc *LedgerUseCase) Transfer(ctx context.Context, req TransferRequest) (*entity.Movement, error) {
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("%w: el traslado no tiene líneas", domain.ErrInvalidInput)
	}
	var productIDs, locationIDs, destinations []string
	var pairs []pairKey
	for i, l := range req.Lines {
		if l.ProductID == "" || l.FromLocationID == "" || l.ToLocationID == "" {
			return nil, fmt.Errorf("%w: línea %d sin producto, origen o destino", domain.ErrInvalidReference, i+1)
		}
		if l.FromLocationID == l.ToLocationID {
			return nil, fmt.Errorf("%w: línea %d (%s)", domain.ErrInvalidTransfer, i+1, l.FromLocationID)
		}
		if !l.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: línea %d cantidad %s", domain.ErrInvalidQuantity, i+1, l.Quantity)
		}
		productIDs = append(productIDs, l.ProductID)
		locationIDs = append(locationIDs, l.FromLocationID, l.ToLocationID)
		destinations = append(destinations, l.ToLocationID)
		pairs = append(pairs, pairKey{l.ProductID, l.FromLocationID}, pairKey{l.ProductID, l.ToLocationID})
	}
	refs, err := uc.resolve(ctx, productIDs, locationIDs)
	if err != nil {
		return nil, err
	}
	hdr := header{req.Reference, req.OperatorID, req.Note, req.IdempotencyKey}

	return uc.execute(ctx, entity.MovementTransfer, hdr, refs, destinations, func(ctx context.Context, op *operation) error {
		if err := op.lockPairs(ctx, pairs); err != nil {
			return err
		}
		needs := make([]demand, 0, len(req.Lines))
		for _, l := range req.Lines {
			needs = append(needs, demand{pair: pairKey{l.ProductID, l.FromLocationID}, qty: l.Quantity})
		}
		if err := op.preflight(ctx, needs); err != nil {
			return err
		}
		for i, line := range req.Lines {
			product := op.products[line.ProductID]
			if err := op.admit(ctx, line.ToLocationID, product, line.Quantity); err != nil {
				return fmt.Errorf("línea %d: %w", i+1, err)
			}
			draws, err := op.plan(ctx, line.ProductID, line.FromLocationID, "", line.Quantity)
			if err != nil {
				return fmt.Errorf("línea %d: %w", i+1, err)
			}
			for _, dr := range draws {
				batch := dr.Row.BatchLabel
				expiry := copyTime(dr.Row.ExpiryDate)
				if _, err := op.store.Subtract(ctx, dr.Row.Key(), dr.Quantity); err != nil {
					return fmt.Errorf("línea %d: %w", i+1, err)
				}
				cost := dr.UnitCost
				dest := entity.StockKey{ProductID: line.ProductID, LocationID: line.ToLocationID, BatchLabel: batch}
				if _, err := op.store.UpsertAdd(ctx, AddRequest{
					Key:        dest,
					Quantity:   dr.Quantity,
					UnitCost:   &cost,
					ExpiryDate: expiry,
				}); err != nil {
					return fmt.Errorf("línea %d: %w", i+1, err)
				}
				op.addLine(entity.MovementLine{
					ProductID: line.ProductID, LocationID: line.FromLocationID,
					Quantity: dr.Quantity.Neg(), UnitPrice: cost, BatchLabel: batch, ExpiryDate: expiry,
				})
				op.addLine(entity.MovementLine{
					ProductID: line.ProductID, LocationID: line.ToLocationID,
					Quantity: dr.Quantity, UnitPrice: cost, BatchLabel: batch, ExpiryDate: copyTime(expiry),
				})
			}
		}
		return nil
	})
}

// Adjust aplica el resultado de un conteo físico (stock opname), sin verificación de capacidad.
// Con lote, la diferencia se aplica a esa fila. Sin lote, el conteo es del producto en la ubicación:
// los faltantes se descuentan en orden FIFO entre todos los lotes y los sobrantes entran a la fila sin lote.
func (uc *LedgerUseCase) Adjust(ctx context.Context, req AdjustmentRequest) (*entity.Movement, error) {
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("%w: el ajuste no tiene líneas", domain.ErrInvalidInput)
	}
	var productIDs, locationIDs []string
	var pairs []pairKey
	for i, l := range req.Lines {
		if l.ProductID == "" || l.LocationID == "" {
			return nil, fmt.Errorf("%w: línea %d sin producto o ubicación", domain.ErrInvalidReference, i+1)
		}
		if l.PhysicalCount.IsNegative() || l.SystemCount.IsNegative() {
			return nil, fmt.Errorf("%w: línea %d conteo negativo", domain.ErrInvalidQuantity, i+1)
		}
		if l.Delta().IsZero() {
			return nil, fmt.Errorf("%w: línea %d sin diferencia entre conteo físico y sistema", domain.ErrInvalidQuantity, i+1)
		}
		if l.UnitCost != nil && l.UnitCost.IsNegative() {
			return nil, fmt.Errorf("%w: línea %d costo negativo", domain.ErrInvalidInput, i+1)
		}
		productIDs = append(productIDs, l.ProductID)
		locationIDs = append(locationIDs, l.LocationID)
		pairs = append(pairs, pairKey{l.ProductID, l.LocationID})
	}
	refs, err := uc.resolve(ctx, productIDs, locationIDs)
	if err != nil {
		return nil, err
	}
	hdr := header{req.Reference, req.OperatorID, req.Note, req.IdempotencyKey}

	return uc.execute(ctx, entity.MovementAdjustment, hdr, refs, nil, func(ctx context.Context, op *operation) error {
		if err := op.lockPairs(ctx, pairs); err != nil {
			return err
		}
		for i, line := range req.Lines {
			if err := op.adjustLine(ctx, line); err != nil {
				return fmt.Errorf("línea %d: %w", i+1, err)
			}
		}
		return nil
	})
}

func (op *operation) adjustLine(ctx context.Context, line CountLineInput) error {
	key := entity.StockKey{ProductID: line.ProductID, LocationID: line.LocationID, BatchLabel: line.BatchLabel}
	row, err := op.store.GetForUpdate(ctx, key)
	if err != nil {
		return err
	}

	current := decimal.Zero
	scope := key.String()
	if line.BatchLabel == "" {
		if current, err = op.store.Available(ctx, line.ProductID, line.LocationID); err != nil {
			return err
		}
	} else if row != nil {
		current = row.Quantity
	}
	if !current.Equal(line.SystemCount) {
		op.log.Warn().
			Str("stock_key", scope).
			Str("system_count", line.SystemCount.String()).
			Str("locked_quantity", current.String()).
			Msg("conteo de sistema distinto a la existencia bloqueada; se aplica la diferencia informada")
	}

	delta := line.Delta()
	if delta.IsNegative() {
		draws, err := op.plan(ctx, line.ProductID, line.LocationID, line.BatchLabel, delta.Neg())
		if err != nil {
			return err
		}
		for _, dr := range draws {
			if _, err := op.store.Subtract(ctx, dr.Row.Key(), dr.Quantity); err != nil {
				return err
			}
			op.addLine(entity.MovementLine{
				ProductID:  line.ProductID,
				LocationID: line.LocationID,
				Quantity:   dr.Quantity.Neg(),
				UnitPrice:  dr.UnitCost,
				BatchLabel: dr.Row.BatchLabel,
				ExpiryDate: copyTime(dr.Row.ExpiryDate),
			})
		}
		return nil
	}

	// un sobrante entra al costo de la fila; UnitCost sólo da costo a una fila nueva o vacía
	var cost *decimal.Decimal
	if row == nil || row.Quantity.IsZero() {
		cost = line.UnitCost
		if cost == nil && row == nil {
			last, err := op.lastKnownCost(ctx, line.ProductID, line.LocationID)
			if err != nil {
				return err
			}
			cost = &last
		}
	}
	row, err = op.store.UpsertAdd(ctx, AddRequest{Key: key, Quantity: delta, UnitCost: cost, ExpiryDate: line.ExpiryDate})
	if err != nil {
		return err
	}
	op.addLine(entity.MovementLine{
		ProductID:  line.ProductID,
		LocationID: line.LocationID,
		Quantity:   delta,
		UnitPrice:  row.AverageCost,
		BatchLabel: line.BatchLabel,
		ExpiryDate: copyTime(row.ExpiryDate),
	})
	return nil
}

// GetMovement devuelve un movimiento confirmado con sus líneas.
func (uc *LedgerUseCase) GetMovement(ctx context.Context, id string) (*entity.Movement, error) {
	m, err := uc.movementRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

// ListStock filas de stock de producto+ubicación en orden FIFO (lectura sin bloqueo).
func (uc *LedgerUseCase) ListStock(ctx context.Context, productID, locationID string) ([]*entity.StockRow, error) {
	if productID == "" || locationID == "" {
		return nil, fmt.Errorf("%w: producto y ubicación requeridos", domain.ErrInvalidReference)
	}
	rows, err := uc.stockRepo.ListByProductLocation(ctx, productID, locationID)
	if err != nil {
		return nil, err
	}
	domaininv.SortFIFO(rows)
	return rows, nil
}

type header struct {
	reference      string
	operatorID     string
	note           string
	idempotencyKey string
}

type references struct {
	products  map[string]*entity.Product
	locations map[string]*entity.Location
}

// resolve carga productos y ubicaciones en paralelo, antes de abrir la transacción,
// para no alargar el tiempo de bloqueo. Cualquier referencia inexistente aborta.
func (uc *LedgerUseCase) resolve(ctx context.Context, productIDs, locationIDs []string) (*references, error) {
	refs := &references{
		products:  make(map[string]*entity.Product),
		locations: make(map[string]*entity.Location),
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for _, id := range uniqueSorted(productIDs) {
		g.Go(func() error {
			p, err := uc.productRepo.GetByID(gctx, id)
			if err != nil {
				return err
			}
			if p == nil {
				return fmt.Errorf("%w: producto %s", domain.ErrInvalidReference, id)
			}
			mu.Lock()
			refs.products[id] = p
			mu.Unlock()
			return nil
		})
	}
	for _, id := range uniqueSorted(locationIDs) {
		g.Go(func() error {
			l, err := uc.locationRepo.GetByID(gctx, id)
			if err != nil {
				return err
			}
			if l == nil {
				return fmt.Errorf("%w: ubicación %s", domain.ErrInvalidReference, id)
			}
			mu.Lock()
			refs.locations[id] = l
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return refs, nil
}

// execute corre una operación completa: idempotencia, transacción, escritura del movimiento y log.
func (uc *LedgerUseCase) execute(
	ctx context.Context,
	kind entity.MovementKind,
	hdr header,
	refs *references,
	lockLocations []string,
	body func(ctx context.Context, op *operation) error,
) (*entity.Movement, error) {
	idemKey := ""
	if hdr.idempotencyKey != "" && uc.idem != nil {
		idemKey = fmt.Sprintf("%s:%s", kind, hdr.idempotencyKey)
		prevID, err := uc.idem.Reserve(ctx, idemKey)
		if err != nil {
			return nil, err
		}
		if prevID != "" {
			uc.log.Info().Str("kind", string(kind)).Str("movement_id", prevID).Msg("movimiento repetido, se devuelve el original")
			return uc.GetMovement(ctx, prevID)
		}
	}

	mov := &entity.Movement{
		ID:             uuid.New().String(),
		Kind:           kind,
		Reference:      hdr.reference,
		OperatorID:     hdr.operatorID,
		Note:           hdr.note,
		IdempotencyKey: hdr.idempotencyKey,
		CreatedAt:      uc.now().UTC(),
	}
	err := uc.txRunner.Run(ctx, func(ctx context.Context, uow UnitOfWork) error {
		mov.Lines = nil
		op := &operation{
			uow:               uow,
			store:             NewStockStore(uow.Stock(), mov.CreatedAt),
			capacity:          domaininv.NewCapacityChecker(),
			products:          refs.products,
			locations:         make(map[string]*entity.Location),
			volumes:           make(map[string]decimal.Decimal),
			prices:            make(map[string]decimal.Decimal),
			movement:          mov,
			defaultUnitVolume: uc.defaultUnitVolume,
			log:               uc.log,
		}
		if err := op.lockLocations(ctx, lockLocations); err != nil {
			return err
		}
		if err := body(ctx, op); err != nil {
			return err
		}
		if err := op.store.Flush(ctx); err != nil {
			return err
		}
		if err := op.applyPrices(ctx); err != nil {
			return err
		}
		return uow.Movements().Create(ctx, mov)
	})
	if err != nil {
		if idemKey != "" {
			if rerr := uc.idem.Release(ctx, idemKey); rerr != nil {
				uc.log.Error().Err(rerr).Str("key", idemKey).Msg("liberar llave de idempotencia")
			}
		}
		uc.log.Warn().Err(err).
			Str("kind", string(kind)).
			Str("reference", hdr.reference).
			Str("operator_id", hdr.operatorID).
			Msg("movimiento abortado, sin cambios en el libro")
		return nil, err
	}
	if idemKey != "" {
		if cerr := uc.idem.Complete(ctx, idemKey, mov.ID); cerr != nil {
			uc.log.Error().Err(cerr).Str("key", idemKey).Msg("completar llave de idempotencia")
		}
	}
	uc.log.Info().
		Str("movement_id", mov.ID).
		Str("kind", string(kind)).
		Str("reference", hdr.reference).
		Int("lines", len(mov.Lines)).
		Msg("movimiento registrado")
	return mov, nil
}

// operation estado de una operación dentro de su transacción.
type operation struct {
	uow               UnitOfWork
	store             *StockStore
	capacity          *domaininv.CapacityChecker
	products          map[string]*entity.Product
	locations         map[string]*entity.Location // bloqueadas
	volumes           map[string]decimal.Decimal  // volumen ocupado antes de la operación
	prices            map[string]decimal.Decimal
	movement          *entity.Movement
	defaultUnitVolume decimal.Decimal
	log               *logger.Logger
}

type demand struct {
	pair  pairKey
	batch string
	qty   decimal.Decimal
}

// lockLocations bloquea las ubicaciones que reciben stock, en orden de ID.
func (op *operation) lockLocations(ctx context.Context, ids []string) error {
	for _, id := range uniqueSorted(ids) {
		loc, err := op.uow.Locations().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if loc == nil {
			return fmt.Errorf("%w: ubicación %s", domain.ErrInvalidReference, id)
		}
		op.locations[id] = loc
	}
	return nil
}

// lockPairs bloquea todas las filas de cada producto+ubicación en orden determinista,
// lo que evita interbloqueos entre operaciones concurrentes.
func (op *operation) lockPairs(ctx context.Context, pairs []pairKey) error {
	for _, p := range sortedPairs(pairs) {
		if _, err := op.store.Candidates(ctx, p.ProductID, p.LocationID); err != nil {
			return err
		}
	}
	return nil
}

// preflight verifica, antes de cualquier mutación, que la demanda acumulada de la operación
// no supere lo disponible por producto+ubicación (y por lote cuando se pide uno concreto).
func (op *operation) preflight(ctx context.Context, needs []demand) error {
	byPair := make(map[pairKey]decimal.Decimal)
	byBatch := make(map[entity.StockKey]decimal.Decimal)
	for _, n := range needs {
		byPair[n.pair] = byPair[n.pair].Add(n.qty)
		if n.batch != "" {
			k := entity.StockKey{ProductID: n.pair.ProductID, LocationID: n.pair.LocationID, BatchLabel: n.batch}
			byBatch[k] = byBatch[k].Add(n.qty)
		}
	}
	for _, p := range sortedPairs(keysOf(byPair)) {
		avail, err := op.store.Available(ctx, p.ProductID, p.LocationID)
		if err != nil {
			return err
		}
		if avail.LessThan(byPair[p]) {
			return fmt.Errorf("%w: producto %s en ubicación %s disponible %s, solicitado %s",
				domain.ErrInsufficientStock, p.ProductID, p.LocationID, avail, byPair[p])
		}
	}
	for k, qty := range byBatch {
		row, err := op.store.GetForUpdate(ctx, k)
		if err != nil {
			return err
		}
		if row == nil || row.Quantity.LessThan(qty) {
			return fmt.Errorf("%w: lote %s solicitado %s", domain.ErrInsufficientStock, k, qty)
		}
	}
	return nil
}

// plan simula el consumo FIFO sobre las filas bloqueadas.
func (op *operation) plan(ctx context.Context, productID, locationID, batch string, qty decimal.Decimal) ([]domaininv.Draw, error) {
	rows, err := op.store.Candidates(ctx, productID, locationID)
	if err != nil {
		return nil, err
	}
	if batch != "" {
		filtered := rows[:0:0]
		for _, r := range rows {
			if r.BatchLabel == batch {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}
	draws, err := domaininv.PlanDepletion(rows, qty)
	if err != nil {
		return nil, fmt.Errorf("producto %s en ubicación %s: %w", productID, locationID, err)
	}
	return draws, nil
}

// admit verifica la capacidad acumulada de la ubicación para qty unidades del producto.
func (op *operation) admit(ctx context.Context, locationID string, product *entity.Product, qty decimal.Decimal) error {
	loc, ok := op.locations[locationID]
	if !ok {
		return fmt.Errorf("ubicación %s no bloqueada para entrada", locationID)
	}
	used, ok := op.volumes[locationID]
	if !ok {
		var err error
		used, err = op.uow.Stock().VolumeAt(ctx, locationID, op.defaultUnitVolume)
		if err != nil {
			return err
		}
		op.volumes[locationID] = used
	}
	incoming := qty.Mul(product.VolumePerUnit(op.defaultUnitVolume))
	return op.capacity.CheckAndReserve(loc, used, incoming)
}

// lastKnownCost costo promedio de la fila más recientemente tocada de producto+ubicación.
func (op *operation) lastKnownCost(ctx context.Context, productID, locationID string) (decimal.Decimal, error) {
	rows, err := op.store.Candidates(ctx, productID, locationID)
	if err != nil {
		return decimal.Zero, err
	}
	var latest *entity.StockRow
	for _, r := range rows {
		if latest == nil || r.UpdatedAt.After(latest.UpdatedAt) {
			latest = r
		}
	}
	if latest == nil {
		return decimal.Zero, nil
	}
	return latest.AverageCost, nil
}

func (op *operation) refreshPrice(product *entity.Product, price *decimal.Decimal) {
	if product == nil || price == nil {
		return
	}
	if price.Equal(product.SellingPrice) {
		delete(op.prices, product.ID)
		return
	}
	op.prices[product.ID] = *price
}

func (op *operation) applyPrices(ctx context.Context) error {
	ids := make([]string, 0, len(op.prices))
	for id := range op.prices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := op.uow.Products().UpdateSellingPrice(ctx, id, op.prices[id]); err != nil {
			return err
		}
	}
	return nil
}

func (op *operation) addLine(line entity.MovementLine) {
	line.ID = uuid.New().String()
	line.MovementID = op.movement.ID
	line.LineNo = len(op.movement.Lines) + 1
	op.movement.Lines = append(op.movement.Lines, line)
}

func validateMovementLines(lines []MovementLineInput, inbound bool) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: el movimiento no tiene líneas", domain.ErrInvalidInput)
	}
	for i, l := range lines {
		if l.ProductID == "" || l.LocationID == "" {
			return fmt.Errorf("%w: línea %d sin producto o ubicación", domain.ErrInvalidReference, i+1)
		}
		if !l.Quantity.IsPositive() {
			return fmt.Errorf("%w: línea %d cantidad %s", domain.ErrInvalidQuantity, i+1, l.Quantity)
		}
		if inbound && (l.UnitPrice == nil || l.UnitPrice.IsNegative()) {
			return fmt.Errorf("%w: línea %d requiere precio unitario >= 0", domain.ErrInvalidInput, i+1)
		}
		if l.SellingPrice != nil && l.SellingPrice.IsNegative() {
			return fmt.Errorf("%w: línea %d precio de venta negativo", domain.ErrInvalidInput, i+1)
		}
	}
	return nil
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func keysOf(m map[pairKey]decimal.Decimal) []pairKey {
	out := make([]pairKey, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
