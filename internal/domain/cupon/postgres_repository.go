package cupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/clubnautico/gestion/internal/domain/common"
)

// PgxPool abstracts the subset of pgxpool.Pool used by the repository to allow mocking in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ PgxPool = (*pgxpool.Pool)(nil)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pgpool PgxPool
}

// NewPostgresRepository creates a new PostgreSQL-backed coupon repository
func NewPostgresRepository(pgpool PgxPool) *PostgresRepository {
	return &PostgresRepository{pgpool: pgpool}
}

const cuponColumns = `id, numero_cupon, socio_id, periodo_mes, periodo_anio, fecha_emision,
	fecha_vencimiento, fecha_pago, monto_total, estado, created_at, updated_at`

const createCuponQuery = `
	INSERT INTO cupones (id, socio_id, periodo_mes, periodo_anio, fecha_emision, fecha_vencimiento, monto_total, estado)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING numero_cupon
`

const insertItemQuery = `
	INSERT INTO items_cupon (id, cupon_id, concepto, subtotal)
	VALUES ($1, $2, $3, $4)
`

// recomputeTotalQuery keeps the coupon total equal to the sum of its items
const recomputeTotalQuery = `
	UPDATE cupones SET
		monto_total = COALESCE((SELECT SUM(subtotal) FROM items_cupon WHERE cupon_id = $1), 0),
		updated_at = NOW()
	WHERE id = $1
`

// CreateCupon inserts a coupon with its line items in one transaction.
// The stored total is the sum of the given items.
func (r *PostgresRepository) CreateCupon(ctx context.Context, c *Cupon, items []ItemCupon) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Estado == "" {
		c.Estado = EstadoPendiente
	}

	var total int64
	for _, item := range items {
		total += item.Subtotal
	}
	c.MontoTotal = total

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, createCuponQuery,
		c.ID, c.SocioID, c.PeriodoMes, c.PeriodoAnio,
		c.FechaEmision, c.FechaVencimiento, c.MontoTotal, c.Estado,
	).Scan(&c.NumeroCupon)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return common.ErrConflict
		}
		return fmt.Errorf("failed to create cupon: %w", err)
	}

	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
		items[i].CuponID = c.ID
		if _, err := tx.Exec(ctx, insertItemQuery, items[i].ID, c.ID, items[i].Concepto, items[i].Subtotal); err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit cupon: %w", err)
	}
	return nil
}

// GetCuponByID retrieves a coupon by id
func (r *PostgresRepository) GetCuponByID(ctx context.Context, id uuid.UUID) (*Cupon, error) {
	query := `SELECT ` + cuponColumns + ` FROM cupones WHERE id = $1`
	var c Cupon
	err := r.pgpool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.NumeroCupon, &c.SocioID, &c.PeriodoMes, &c.PeriodoAnio,
		&c.FechaEmision, &c.FechaVencimiento, &c.FechaPago, &c.MontoTotal,
		&c.Estado, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cupon: %w", err)
	}
	return &c, nil
}

// ListCuponesBySocio returns a member's coupons, oldest due first
func (r *PostgresRepository) ListCuponesBySocio(ctx context.Context, socioID uuid.UUID) ([]*Cupon, error) {
	query := `SELECT ` + cuponColumns + ` FROM cupones WHERE socio_id = $1 ORDER BY fecha_vencimiento`

	rows, err := r.pgpool.Query(ctx, query, socioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cupones: %w", err)
	}
	defer rows.Close()

	var cupones []*Cupon
	for rows.Next() {
		var c Cupon
		if err := rows.Scan(
			&c.ID, &c.NumeroCupon, &c.SocioID, &c.PeriodoMes, &c.PeriodoAnio,
			&c.FechaEmision, &c.FechaVencimiento, &c.FechaPago, &c.MontoTotal,
			&c.Estado, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cupon: %w", err)
		}
		cupones = append(cupones, &c)
	}
	return cupones, rows.Err()
}

const cuponesImpagosQuery = `
	SELECT c.id, c.numero_cupon, c.socio_id, c.periodo_mes, c.periodo_anio, c.fecha_emision,
	       c.fecha_vencimiento, c.fecha_pago, c.monto_total, c.estado, c.created_at, c.updated_at,
	       c.monto_total - COALESCE((SELECT SUM(pc.monto_aplicado) FROM pagos_cupones pc WHERE pc.cupon_id = c.id), 0) AS saldo
	FROM cupones c
	WHERE c.socio_id = $1 AND c.estado IN ('pendiente', 'vencido')
	ORDER BY c.fecha_vencimiento
`

// ListCuponesImpagosConSaldo returns a member's unpaid coupons with their
// outstanding balance, oldest due first.
func (r *PostgresRepository) ListCuponesImpagosConSaldo(ctx context.Context, socioID uuid.UUID) ([]*CuponSaldo, error) {
	rows, err := r.pgpool.Query(ctx, cuponesImpagosQuery, socioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cupones impagos: %w", err)
	}
	defer rows.Close()

	var cupones []*CuponSaldo
	for rows.Next() {
		var c CuponSaldo
		if err := rows.Scan(
			&c.ID, &c.NumeroCupon, &c.SocioID, &c.PeriodoMes, &c.PeriodoAnio,
			&c.FechaEmision, &c.FechaVencimiento, &c.FechaPago, &c.MontoTotal,
			&c.Estado, &c.CreatedAt, &c.UpdatedAt, &c.Saldo,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cupon impago: %w", err)
		}
		cupones = append(cupones, &c)
	}
	return cupones, rows.Err()
}

// ListItems returns a coupon's line items
func (r *PostgresRepository) ListItems(ctx context.Context, cuponID uuid.UUID) ([]*ItemCupon, error) {
	query := `SELECT id, cupon_id, concepto, subtotal FROM items_cupon WHERE cupon_id = $1 ORDER BY created_at`

	rows, err := r.pgpool.Query(ctx, query, cuponID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*ItemCupon
	for rows.Next() {
		var item ItemCupon
		if err := rows.Scan(&item.ID, &item.CuponID, &item.Concepto, &item.Subtotal); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// ExisteCuponPeriodo reports whether a member already has the period's coupon
func (r *PostgresRepository) ExisteCuponPeriodo(ctx context.Context, socioID uuid.UUID, anio, mes int) (bool, error) {
	var exists bool
	err := r.pgpool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM cupones WHERE socio_id = $1 AND periodo_anio = $2 AND periodo_mes = $3)`,
		socioID, anio, mes,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check cupon periodo: %w", err)
	}
	return exists, nil
}

// AddItem inserts a line item and recomputes the coupon total atomically
func (r *PostgresRepository) AddItem(ctx context.Context, item *ItemCupon) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return r.mutateItem(ctx, item.CuponID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertItemQuery, item.ID, item.CuponID, item.Concepto, item.Subtotal)
		return err
	})
}

// UpdateItem updates a line item and recomputes the coupon total atomically
func (r *PostgresRepository) UpdateItem(ctx context.Context, item *ItemCupon) error {
	return r.mutateItem(ctx, item.CuponID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE items_cupon SET concepto = $2, subtotal = $3 WHERE id = $1`,
			item.ID, item.Concepto, item.Subtotal,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return common.ErrNotFound
		}
		return nil
	})
}

// DeleteItem removes a line item and recomputes the coupon total atomically
func (r *PostgresRepository) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var cuponID uuid.UUID
	err = tx.QueryRow(ctx, `DELETE FROM items_cupon WHERE id = $1 RETURNING cupon_id`, itemID).Scan(&cuponID)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	if _, err := tx.Exec(ctx, recomputeTotalQuery, cuponID); err != nil {
		return fmt.Errorf("failed to recompute total: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit item delete: %w", err)
	}
	return nil
}

func (r *PostgresRepository) mutateItem(ctx context.Context, cuponID uuid.UUID, mutate func(tx pgx.Tx) error) error {
	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := mutate(tx); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to mutate item: %w", err)
	}

	if _, err := tx.Exec(ctx, recomputeTotalQuery, cuponID); err != nil {
		return fmt.Errorf("failed to recompute total: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit item mutation: %w", err)
	}
	return nil
}

// MarcarVencidos transitions past-due pendiente coupons to vencido
func (r *PostgresRepository) MarcarVencidos(ctx context.Context, hoy time.Time) (int64, error) {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE cupones SET estado = $1, updated_at = NOW() WHERE estado = $2 AND fecha_vencimiento < $3`,
		EstadoVencido, EstadoPendiente, hoy,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark vencidos: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountEmbarcaciones returns how many boats a member has registered
func (r *PostgresRepository) CountEmbarcaciones(ctx context.Context, socioID uuid.UUID) (int, error) {
	var count int
	err := r.pgpool.QueryRow(ctx, `SELECT COUNT(*) FROM embarcaciones WHERE socio_id = $1`, socioID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count embarcaciones: %w", err)
	}
	return count, nil
}

// ListCuotasPlanBySocio returns a member's payment-plan installments
func (r *PostgresRepository) ListCuotasPlanBySocio(ctx context.Context, socioID uuid.UUID) ([]*CuotaPlan, error) {
	query := `
		SELECT cp.id, cp.plan_id, cp.numero, cp.fecha_vencimiento, cp.monto, cp.saldo, cp.estado
		FROM cuotas_plan cp
		JOIN planes_pago pp ON pp.id = cp.plan_id
		WHERE pp.socio_id = $1
		ORDER BY cp.fecha_vencimiento
	`

	rows, err := r.pgpool.Query(ctx, query, socioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cuotas plan: %w", err)
	}
	defer rows.Close()

	var cuotas []*CuotaPlan
	for rows.Next() {
		var c CuotaPlan
		if err := rows.Scan(&c.ID, &c.PlanID, &c.Numero, &c.FechaVencimiento, &c.Monto, &c.Saldo, &c.Estado); err != nil {
			return nil, fmt.Errorf("failed to scan cuota plan: %w", err)
		}
		cuotas = append(cuotas, &c)
	}
	return cuotas, rows.Err()
}

// GetConfiguracion loads the club-wide billing configuration (row id=1).
// Missing or invalid rate/grace values surface as ErrInvalidConfig so that
// interest is never silently computed as zero.
func (r *PostgresRepository) GetConfiguracion(ctx context.Context) (*Configuracion, error) {
	var (
		tasa       *decimal.Decimal
		diasGracia *int
		cfg        Configuracion
	)
	err := r.pgpool.QueryRow(ctx,
		`SELECT tasa_interes_mora, dias_gracia, monto_cuota_social, monto_amarra FROM configuracion WHERE id = 1`,
	).Scan(&tasa, &diasGracia, &cfg.MontoCuotaSocial, &cfg.MontoAmarra)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidConfig
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get configuracion: %w", err)
	}

	if tasa == nil || diasGracia == nil {
		return nil, ErrInvalidConfig
	}
	cfg.TasaInteresMora = *tasa
	cfg.DiasGracia = *diasGracia
	return &cfg, nil
}
