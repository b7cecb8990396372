package socio

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
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ PgxPool = (*pgxpool.Pool)(nil)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pgpool PgxPool
}

// NewPostgresRepository creates a new PostgreSQL-backed member repository
func NewPostgresRepository(pgpool PgxPool) *PostgresRepository {
	return &PostgresRepository{pgpool: pgpool}
}

const socioColumns = `id, numero_socio, dni, cuit_cuil, apellido, nombre, email, telefono, estado, created_at, updated_at`

const createSocioQuery = `
	INSERT INTO socios (id, numero_socio, dni, cuit_cuil, apellido, nombre, email, telefono, estado)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

// CreateSocio inserts a new member
func (r *PostgresRepository) CreateSocio(ctx context.Context, s *Socio) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Estado == "" {
		s.Estado = EstadoActivo
	}

	_, err := r.pgpool.Exec(ctx, createSocioQuery,
		s.ID, s.NumeroSocio, s.DNI, s.CUIT, s.Apellido, s.Nombre, s.Email, s.Telefono, s.Estado,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return common.ErrConflict
		}
		return fmt.Errorf("failed to create socio: %w", err)
	}
	return nil
}

// GetSocioByID retrieves a member by id
func (r *PostgresRepository) GetSocioByID(ctx context.Context, id uuid.UUID) (*Socio, error) {
	query := `SELECT ` + socioColumns + ` FROM socios WHERE id = $1`
	return r.scanSocio(r.pgpool.QueryRow(ctx, query, id))
}

// GetSocioByNumero retrieves a member by membership number
func (r *PostgresRepository) GetSocioByNumero(ctx context.Context, numero int) (*Socio, error) {
	query := `SELECT ` + socioColumns + ` FROM socios WHERE numero_socio = $1`
	return r.scanSocio(r.pgpool.QueryRow(ctx, query, numero))
}

func (r *PostgresRepository) scanSocio(row pgx.Row) (*Socio, error) {
	var s Socio
	err := row.Scan(
		&s.ID, &s.NumeroSocio, &s.DNI, &s.CUIT, &s.Apellido, &s.Nombre,
		&s.Email, &s.Telefono, &s.Estado, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get socio: %w", err)
	}
	return &s, nil
}

// ListSocios returns members, optionally filtered by lifecycle state
func (r *PostgresRepository) ListSocios(ctx context.Context, estado string) ([]*Socio, error) {
	query := `SELECT ` + socioColumns + ` FROM socios`
	args := []any{}
	if estado != "" {
		query += ` WHERE estado = $1`
		args = append(args, estado)
	}
	query += ` ORDER BY numero_socio`

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list socios: %w", err)
	}
	defer rows.Close()

	var socios []*Socio
	for rows.Next() {
		var s Socio
		if err := rows.Scan(
			&s.ID, &s.NumeroSocio, &s.DNI, &s.CUIT, &s.Apellido, &s.Nombre,
			&s.Email, &s.Telefono, &s.Estado, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan socio: %w", err)
		}
		socios = append(socios, &s)
	}
	return socios, rows.Err()
}

// ListSociosActivos returns the active-member registry used by the matcher
func (r *PostgresRepository) ListSociosActivos(ctx context.Context) ([]*Socio, error) {
	return r.ListSocios(ctx, EstadoActivo)
}

const updateSocioQuery = `
	UPDATE socios SET
		dni = $2, cuit_cuil = $3, apellido = $4, nombre = $5,
		email = $6, telefono = $7, estado = $8, updated_at = NOW()
	WHERE id = $1
`

// UpdateSocio updates a member's mutable fields
func (r *PostgresRepository) UpdateSocio(ctx context.Context, s *Socio) error {
	tag, err := r.pgpool.Exec(ctx, updateSocioQuery,
		s.ID, s.DNI, s.CUIT, s.Apellido, s.Nombre, s.Email, s.Telefono, s.Estado,
	)
	if err != nil {
		return fmt.Errorf("failed to update socio: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

const createKeywordQuery = `
	INSERT INTO socio_keywords (id, socio_id, tipo, valor)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (tipo, valor) DO NOTHING
`

// CreateKeyword inserts a learned keyword; repeated values are ignored
func (r *PostgresRepository) CreateKeyword(ctx context.Context, k *Keyword) error {
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	if k.Tipo == "" {
		k.Tipo = KeywordTipoCUIT
	}

	_, err := r.pgpool.Exec(ctx, createKeywordQuery, k.ID, k.SocioID, k.Tipo, k.Valor)
	if err != nil {
		return fmt.Errorf("failed to create keyword: %w", err)
	}
	return nil
}

const keywordColumns = `id, socio_id, tipo, valor, created_at`

// ListKeywords returns every learned keyword (matcher input)
func (r *PostgresRepository) ListKeywords(ctx context.Context) ([]*Keyword, error) {
	return r.listKeywords(ctx, `SELECT `+keywordColumns+` FROM socio_keywords ORDER BY created_at`)
}

// ListKeywordsBySocio returns a member's learned keywords
func (r *PostgresRepository) ListKeywordsBySocio(ctx context.Context, socioID uuid.UUID) ([]*Keyword, error) {
	return r.listKeywords(ctx, `SELECT `+keywordColumns+` FROM socio_keywords WHERE socio_id = $1 ORDER BY created_at`, socioID)
}

func (r *PostgresRepository) listKeywords(ctx context.Context, query string, args ...any) ([]*Keyword, error) {
	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list keywords: %w", err)
	}
	defer rows.Close()

	var keywords []*Keyword
	for rows.Next() {
		var k Keyword
		if err := rows.Scan(&k.ID, &k.SocioID, &k.Tipo, &k.Valor, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan keyword: %w", err)
		}
		keywords = append(keywords, &k)
	}
	return keywords, rows.Err()
}

// DeleteKeyword removes a single keyword
func (r *PostgresRepository) DeleteKeyword(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pgpool.Exec(ctx, `DELETE FROM socio_keywords WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete keyword: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

// DeleteKeywordsBySocio removes all of a member's keywords
func (r *PostgresRepository) DeleteKeywordsBySocio(ctx context.Context, socioID uuid.UUID) (int64, error) {
	tag, err := r.pgpool.Exec(ctx, `DELETE FROM socio_keywords WHERE socio_id = $1`, socioID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete keywords: %w", err)
	}
	return tag.RowsAffected(), nil
}
