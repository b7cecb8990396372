package pago

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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

// NewPostgresRepository creates a new PostgreSQL-backed payment repository
func NewPostgresRepository(pgpool PgxPool) *PostgresRepository {
	return &PostgresRepository{pgpool: pgpool}
}

// RegistrarPago inserts a payment and allocates it against the member's
// outstanding coupons in a single transaction.
func (r *PostgresRepository) RegistrarPago(ctx context.Context, p *Pago) (*Aplicacion, error) {
	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := InsertarPagoTx(ctx, tx, p); err != nil {
		return nil, err
	}

	aplicacion, err := AplicarPagoACuponesTx(ctx, tx, p.ID, p.SocioID, p.Monto, p.FechaPago)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit pago: %w", err)
	}
	return aplicacion, nil
}

const pagoColumns = `id, socio_id, fecha_pago, monto, medio, comprobante, estado_conciliacion, movimiento_id, created_at`

// GetPagoByID retrieves a payment by id
func (r *PostgresRepository) GetPagoByID(ctx context.Context, id uuid.UUID) (*Pago, error) {
	query := `SELECT ` + pagoColumns + ` FROM pagos WHERE id = $1`
	var p Pago
	err := r.pgpool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.SocioID, &p.FechaPago, &p.Monto, &p.Medio,
		&p.Comprobante, &p.EstadoConciliacion, &p.MovimientoID, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pago: %w", err)
	}
	return &p, nil
}

// ListPagosBySocio returns a member's payments, newest first
func (r *PostgresRepository) ListPagosBySocio(ctx context.Context, socioID uuid.UUID) ([]*Pago, error) {
	query := `SELECT ` + pagoColumns + ` FROM pagos WHERE socio_id = $1 ORDER BY fecha_pago DESC, created_at DESC`

	rows, err := r.pgpool.Query(ctx, query, socioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pagos: %w", err)
	}
	defer rows.Close()

	var pagos []*Pago
	for rows.Next() {
		var p Pago
		if err := rows.Scan(
			&p.ID, &p.SocioID, &p.FechaPago, &p.Monto, &p.Medio,
			&p.Comprobante, &p.EstadoConciliacion, &p.MovimientoID, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pago: %w", err)
		}
		pagos = append(pagos, &p)
	}
	return pagos, rows.Err()
}

// ListAplicaciones returns a payment's allocation rows
func (r *PostgresRepository) ListAplicaciones(ctx context.Context, pagoID uuid.UUID) ([]*PagoCupon, error) {
	query := `SELECT id, pago_id, cupon_id, monto_aplicado, created_at FROM pagos_cupones WHERE pago_id = $1 ORDER BY created_at`

	rows, err := r.pgpool.Query(ctx, query, pagoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list aplicaciones: %w", err)
	}
	defer rows.Close()

	var aplicaciones []*PagoCupon
	for rows.Next() {
		var pc PagoCupon
		if err := rows.Scan(&pc.ID, &pc.PagoID, &pc.CuponID, &pc.MontoAplicado, &pc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan aplicacion: %w", err)
		}
		aplicaciones = append(aplicaciones, &pc)
	}
	return aplicaciones, rows.Err()
}

// EliminarPago removes a payment, its allocations, and recomputes the state
// of every coupon it touched, all in one transaction.
func (r *PostgresRepository) EliminarPago(ctx context.Context, pagoID uuid.UUID) error {
	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `DELETE FROM pagos_cupones WHERE pago_id = $1 RETURNING cupon_id`, pagoID)
	if err != nil {
		return fmt.Errorf("failed to delete aplicaciones: %w", err)
	}
	cuponIDs, err := collectUUIDs(rows)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM pagos WHERE id = $1`, pagoID)
	if err != nil {
		return fmt.Errorf("failed to delete pago: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}

	for _, cuponID := range cuponIDs {
		if err := RecomputeCuponEstadoTx(ctx, tx, cuponID); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit pago delete: %w", err)
	}
	return nil
}

// EliminarAplicacion removes a single allocation row and recomputes the
// affected coupon's state.
func (r *PostgresRepository) EliminarAplicacion(ctx context.Context, pagoCuponID uuid.UUID) error {
	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var cuponID uuid.UUID
	err = tx.QueryRow(ctx, `DELETE FROM pagos_cupones WHERE id = $1 RETURNING cupon_id`, pagoCuponID).Scan(&cuponID)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete aplicacion: %w", err)
	}

	if err := RecomputeCuponEstadoTx(ctx, tx, cuponID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit aplicacion delete: %w", err)
	}
	return nil
}

func collectUUIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
