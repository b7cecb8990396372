// Package repository provides data access for imported bank movements.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clubnautico/gestion/internal/domain/pago"
)

// Movement lifecycle states
const (
	EstadoNuevo        = "nuevo"
	EstadoProcesado    = "procesado"
	EstadoDescartado   = "descartado"
	EstadoYaRegistrado = "ya_registrado"
)

// Movimiento is one imported bank transaction. Created during an import
// batch, scored by the matcher, and either confirmed into a payment,
// discarded, or flagged as a duplicate of an earlier import.
type Movimiento struct {
	ID                   uuid.UUID  `db:"id"`
	Fecha                time.Time  `db:"fecha"`
	Concepto             string     `db:"concepto"`
	Monto                int64      `db:"monto"`
	ReferenciaBancaria   *string    `db:"referencia_bancaria"`
	ApellidoTransferente *string    `db:"apellido_transferente"`
	NombreTransferente   *string    `db:"nombre_transferente"`
	CUIT                 *string    `db:"cuit_cuil"`
	DNI                  *string    `db:"dni"`
	Hash                 string     `db:"hash"`
	SocioID              *uuid.UUID `db:"socio_id"`
	NivelMatch           *string    `db:"nivel_match"`
	PorcentajeConfianza  int        `db:"porcentaje_confianza"`
	RazonMatch           *string    `db:"razon_match"`
	Estado               string     `db:"estado"`
	EsDuplicado          bool       `db:"es_duplicado"`
	MovimientoOriginalID *uuid.UUID `db:"movimiento_original_id"`
	PagoID               *uuid.UUID `db:"pago_id"`
	CreatedAt            time.Time  `db:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at"`
}

// Filtro narrows movement listings for the resolution screens
type Filtro struct {
	Estado string
	Nivel  string
}

// Repository defines data access for bank movements
type Repository interface {
	// InsertarMovimiento persists a movement, detecting duplicates by hash.
	// A duplicate comes back flagged es_duplicado with estado ya_registrado
	// and a pointer to the original; that is not an error.
	InsertarMovimiento(ctx context.Context, m *Movimiento) error
	GetMovimientoByID(ctx context.Context, id uuid.UUID) (*Movimiento, error)
	ListMovimientos(ctx context.Context, filtro Filtro) ([]*Movimiento, error)
	ActualizarMatch(ctx context.Context, id uuid.UUID, socioID *uuid.UUID, nivel string, confianza int, razon string) error

	// ConfirmarMovimiento atomically creates the payment, allocates it
	// against the member's coupons and marks the movement procesado.
	ConfirmarMovimiento(ctx context.Context, movimientoID, socioID uuid.UUID, medio string) (*pago.Aplicacion, error)
	DescartarMovimiento(ctx context.Context, id uuid.UUID) error
}
