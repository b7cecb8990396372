// Package socio provides the member registry and learned identity keywords.
package socio

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Member lifecycle states
const (
	EstadoActivo    = "activo"
	EstadoInactivo  = "inactivo"
	EstadoPendiente = "pendiente"
)

// KeywordTipoCUIT is the only keyword kind currently learned
const KeywordTipoCUIT = "cuit"

// Socio is a club member
type Socio struct {
	ID          uuid.UUID `db:"id"`
	NumeroSocio int       `db:"numero_socio"`
	DNI         *string   `db:"dni"`
	CUIT        *string   `db:"cuit_cuil"`
	Apellido    string    `db:"apellido"`
	Nombre      string    `db:"nombre"`
	Email       *string   `db:"email"`
	Telefono    *string   `db:"telefono"`
	Estado      string    `db:"estado"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Keyword is a learned identity hint (currently only CUIT values),
// created when an operator manually resolves a movement to a member.
type Keyword struct {
	ID        uuid.UUID `db:"id"`
	SocioID   uuid.UUID `db:"socio_id"`
	Tipo      string    `db:"tipo"`
	Valor     string    `db:"valor"`
	CreatedAt time.Time `db:"created_at"`
}

// Repository defines data access for members and keywords
type Repository interface {
	CreateSocio(ctx context.Context, s *Socio) error
	GetSocioByID(ctx context.Context, id uuid.UUID) (*Socio, error)
	GetSocioByNumero(ctx context.Context, numero int) (*Socio, error)
	ListSocios(ctx context.Context, estado string) ([]*Socio, error)
	ListSociosActivos(ctx context.Context) ([]*Socio, error)
	UpdateSocio(ctx context.Context, s *Socio) error

	CreateKeyword(ctx context.Context, k *Keyword) error
	ListKeywords(ctx context.Context) ([]*Keyword, error)
	ListKeywordsBySocio(ctx context.Context, socioID uuid.UUID) ([]*Keyword, error)
	DeleteKeyword(ctx context.Context, id uuid.UUID) error
	DeleteKeywordsBySocio(ctx context.Context, socioID uuid.UUID) (int64, error)
}
