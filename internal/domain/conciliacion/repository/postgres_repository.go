package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubnautico/gestion/internal/domain/common"
	"github.com/clubnautico/gestion/internal/domain/pago"
)

// ErrNoConfirmable means the movement is not in a state that admits
// confirmation: already processed, discarded, or a duplicate.
var ErrNoConfirmable = errors.New("movement cannot be confirmed in its current state")

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

// NewPostgresRepository creates a new PostgreSQL-backed movement repository
func NewPostgresRepository(pgpool PgxPool) *PostgresRepository {
	return &PostgresRepository{pgpool: pgpool}
}

const movimientoColumns = `id, fecha, concepto, monto, referencia_bancaria, apellido_transferente,
	nombre_transferente, cuit_cuil, dni, hash, socio_id, nivel_match, porcentaje_confianza,
	razon_match, estado, es_duplicado, movimiento_original_id, pago_id, created_at, updated_at`

const insertMovimientoQuery = `
	INSERT INTO movimientos_bancarios (
		id, fecha, concepto, monto, referencia_bancaria, apellido_transferente,
		nombre_transferente, cuit_cuil, dni, hash, estado, es_duplicado, movimiento_original_id
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

const getPorHashQuery = `
	SELECT id FROM movimientos_bancarios WHERE hash = $1 AND NOT es_duplicado
`

// InsertarMovimiento persists a movement. The hash is checked against prior
// imports first; on a collision (or a 23505 race against a concurrent
// import of the same extract) the movement is stored as a duplicate of the
// original with estado ya_registrado, never confirmed into a payment.
func (r *PostgresRepository) InsertarMovimiento(ctx context.Context, m *Movimiento) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Estado == "" {
		m.Estado = EstadoNuevo
	}

	var originalID uuid.UUID
	err := r.pgpool.QueryRow(ctx, getPorHashQuery, m.Hash).Scan(&originalID)
	switch {
	case err == nil:
		return r.insertarDuplicado(ctx, m, originalID)
	case errors.Is(err, pgx.ErrNoRows):
		// First sighting of this hash
	default:
		return fmt.Errorf("failed to lookup hash: %w", err)
	}

	_, err = r.pgpool.Exec(ctx, insertMovimientoQuery,
		m.ID, m.Fecha, m.Concepto, m.Monto, m.ReferenciaBancaria,
		m.ApellidoTransferente, m.NombreTransferente, m.CUIT, m.DNI,
		m.Hash, m.Estado, false, nil,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Concurrent import won the unique-hash race; ours is the duplicate.
			if lookupErr := r.pgpool.QueryRow(ctx, getPorHashQuery, m.Hash).Scan(&originalID); lookupErr != nil {
				return fmt.Errorf("failed to resolve duplicate original: %w", lookupErr)
			}
			return r.insertarDuplicado(ctx, m, originalID)
		}
		return fmt.Errorf("failed to insert movimiento: %w", err)
	}
	return nil
}

func (r *PostgresRepository) insertarDuplicado(ctx context.Context, m *Movimiento, originalID uuid.UUID) error {
	m.EsDuplicado = true
	m.Estado = EstadoYaRegistrado
	m.MovimientoOriginalID = &originalID

	_, err := r.pgpool.Exec(ctx, insertMovimientoQuery,
		m.ID, m.Fecha, m.Concepto, m.Monto, m.ReferenciaBancaria,
		m.ApellidoTransferente, m.NombreTransferente, m.CUIT, m.DNI,
		m.Hash, m.Estado, true, originalID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert duplicate movimiento: %w", err)
	}
	return nil
}

// GetMovimientoByID retrieves a movement by id
func (r *PostgresRepository) GetMovimientoByID(ctx context.Context, id uuid.UUID) (*Movimiento, error) {
	query := `SELECT ` + movimientoColumns + ` FROM movimientos_bancarios WHERE id = $1`
	var m Movimiento
	err := r.pgpool.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.Fecha, &m.Concepto, &m.Monto, &m.ReferenciaBancaria,
		&m.ApellidoTransferente, &m.NombreTransferente, &m.CUIT, &m.DNI,
		&m.Hash, &m.SocioID, &m.NivelMatch, &m.PorcentajeConfianza,
		&m.RazonMatch, &m.Estado, &m.EsDuplicado, &m.MovimientoOriginalID,
		&m.PagoID, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get movimiento: %w", err)
	}
	return &m, nil
}

// ListMovimientos returns movements, optionally filtered by estado and tier
func (r *PostgresRepository) ListMovimientos(ctx context.Context, filtro Filtro) ([]*Movimiento, error) {
	query := `SELECT ` + movimientoColumns + ` FROM movimientos_bancarios`
	var (
		conds []string
		args  []any
	)
	if filtro.Estado != "" {
		args = append(args, filtro.Estado)
		conds = append(conds, fmt.Sprintf("estado = $%d", len(args)))
	}
	if filtro.Nivel != "" {
		args = append(args, filtro.Nivel)
		conds = append(conds, fmt.Sprintf("nivel_match = $%d", len(args)))
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY fecha DESC, created_at DESC"

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list movimientos: %w", err)
	}
	defer rows.Close()

	var movimientos []*Movimiento
	for rows.Next() {
		var m Movimiento
		if err := rows.Scan(
			&m.ID, &m.Fecha, &m.Concepto, &m.Monto, &m.ReferenciaBancaria,
			&m.ApellidoTransferente, &m.NombreTransferente, &m.CUIT, &m.DNI,
			&m.Hash, &m.SocioID, &m.NivelMatch, &m.PorcentajeConfianza,
			&m.RazonMatch, &m.Estado, &m.EsDuplicado, &m.MovimientoOriginalID,
			&m.PagoID, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan movimiento: %w", err)
		}
		movimientos = append(movimientos, &m)
	}
	return movimientos, rows.Err()
}

const actualizarMatchQuery = `
	UPDATE movimientos_bancarios SET
		socio_id = $2, nivel_match = $3, porcentaje_confianza = $4, razon_match = $5, updated_at = NOW()
	WHERE id = $1 AND estado = 'nuevo'
`

// ActualizarMatch records the matcher's verdict on a fresh movement
func (r *PostgresRepository) ActualizarMatch(ctx context.Context, id uuid.UUID, socioID *uuid.UUID, nivel string, confianza int, razon string) error {
	tag, err := r.pgpool.Exec(ctx, actualizarMatchQuery, id, socioID, nivel, confianza, razon)
	if err != nil {
		return fmt.Errorf("failed to update match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

// Locks the movement row so two operators cannot confirm it at once
const getMovimientoForUpdateQuery = `
	SELECT fecha, monto, estado, es_duplicado
	FROM movimientos_bancarios
	WHERE id = $1
	FOR UPDATE
`

const marcarProcesadoQuery = `
	UPDATE movimientos_bancarios SET
		socio_id = $2, pago_id = $3, estado = $4, updated_at = NOW()
	WHERE id = $1
`

// ConfirmarMovimiento atomically creates the payment for a movement,
// allocates it against the member's outstanding coupons, and marks the
// movement procesado with the payment linked. Any failure rolls the whole
// confirmation back, leaving the movement retry-safe.
func (r *PostgresRepository) ConfirmarMovimiento(ctx context.Context, movimientoID, socioID uuid.UUID, medio string) (*pago.Aplicacion, error) {
	if medio == "" {
		medio = pago.MedioTransferencia
	}

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var m Movimiento
	err = tx.QueryRow(ctx, getMovimientoForUpdateQuery, movimientoID).Scan(
		&m.Fecha, &m.Monto, &m.Estado, &m.EsDuplicado,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock movimiento: %w", err)
	}
	if m.Estado != EstadoNuevo || m.EsDuplicado {
		return nil, ErrNoConfirmable
	}

	movID := movimientoID
	p := &pago.Pago{
		SocioID:            socioID,
		FechaPago:          m.Fecha,
		Monto:              m.Monto,
		Medio:              medio,
		EstadoConciliacion: pago.ConciliacionConciliado,
		MovimientoID:       &movID,
	}
	if err := pago.InsertarPagoTx(ctx, tx, p); err != nil {
		return nil, err
	}

	aplicacion, err := pago.AplicarPagoACuponesTx(ctx, tx, p.ID, socioID, p.Monto, p.FechaPago)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, marcarProcesadoQuery, movimientoID, socioID, p.ID, EstadoProcesado); err != nil {
		return nil, fmt.Errorf("failed to mark movimiento procesado: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit confirmation: %w", err)
	}
	return aplicacion, nil
}

const descartarQuery = `
	UPDATE movimientos_bancarios SET estado = $2, updated_at = NOW()
	WHERE id = $1 AND estado = 'nuevo'
`

// DescartarMovimiento rejects a movement (not a club-related transfer).
// Terminal: only fresh movements can be discarded.
func (r *PostgresRepository) DescartarMovimiento(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pgpool.Exec(ctx, descartarQuery, id, EstadoDescartado)
	if err != nil {
		return fmt.Errorf("failed to discard movimiento: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoConfirmable
	}
	return nil
}
