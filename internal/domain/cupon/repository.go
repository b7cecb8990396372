// Package cupon manages monthly dues coupons, their line items and
// overdue-interest (mora) calculation.
package cupon

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Coupon lifecycle states
const (
	EstadoPendiente = "pendiente"
	EstadoPagado    = "pagado"
	EstadoVencido   = "vencido"
	EstadoCancelado = "cancelado"
)

// Line item concepts
const (
	ConceptoCuotaSocial = "cuota_social"
	ConceptoAmarra      = "amarra"
	ConceptoVisitas     = "visitas"
	ConceptoOtrosCargos = "otros_cargos"
	ConceptoIntereses   = "intereses"
)

// Cupon is one member's dues invoice for a period
type Cupon struct {
	ID               uuid.UUID  `db:"id"`
	NumeroCupon      int64      `db:"numero_cupon"`
	SocioID          uuid.UUID  `db:"socio_id"`
	PeriodoMes       int        `db:"periodo_mes"`
	PeriodoAnio      int        `db:"periodo_anio"`
	FechaEmision     time.Time  `db:"fecha_emision"`
	FechaVencimiento time.Time  `db:"fecha_vencimiento"`
	FechaPago        *time.Time `db:"fecha_pago"`
	MontoTotal       int64      `db:"monto_total"`
	Estado           string     `db:"estado"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// ItemCupon is one line of a coupon's amount breakdown.
// The coupon's monto_total always equals the sum of its items' subtotals.
type ItemCupon struct {
	ID       uuid.UUID `db:"id"`
	CuponID  uuid.UUID `db:"cupon_id"`
	Concepto string    `db:"concepto"`
	Subtotal int64     `db:"subtotal"`
}

// CuotaPlan is one installment of a payment plan. Unlike regular coupons,
// plan installments accrue interest with no grace period.
type CuotaPlan struct {
	ID               uuid.UUID `db:"id"`
	PlanID           uuid.UUID `db:"plan_id"`
	Numero           int       `db:"numero"`
	FechaVencimiento time.Time `db:"fecha_vencimiento"`
	Monto            int64     `db:"monto"`
	Saldo            int64     `db:"saldo"`
	Estado           string    `db:"estado"`
}

// Configuracion holds the club-wide billing parameters (configuracion row id=1)
type Configuracion struct {
	TasaInteresMora  decimal.Decimal
	DiasGracia       int
	MontoCuotaSocial int64
	MontoAmarra      int64
}

// CuponSaldo pairs a coupon with its outstanding balance
// (monto_total minus the sum of applied payments).
type CuponSaldo struct {
	Cupon
	Saldo int64 `db:"saldo"`
}

// Repository defines data access for coupons, items and configuration
type Repository interface {
	CreateCupon(ctx context.Context, c *Cupon, items []ItemCupon) error
	GetCuponByID(ctx context.Context, id uuid.UUID) (*Cupon, error)
	ListCuponesBySocio(ctx context.Context, socioID uuid.UUID) ([]*Cupon, error)
	ListCuponesImpagosConSaldo(ctx context.Context, socioID uuid.UUID) ([]*CuponSaldo, error)
	ListItems(ctx context.Context, cuponID uuid.UUID) ([]*ItemCupon, error)
	ExisteCuponPeriodo(ctx context.Context, socioID uuid.UUID, anio, mes int) (bool, error)

	AddItem(ctx context.Context, item *ItemCupon) error
	UpdateItem(ctx context.Context, item *ItemCupon) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error

	MarcarVencidos(ctx context.Context, hoy time.Time) (int64, error)

	CountEmbarcaciones(ctx context.Context, socioID uuid.UUID) (int, error)
	ListCuotasPlanBySocio(ctx context.Context, socioID uuid.UUID) ([]*CuotaPlan, error)
	GetConfiguracion(ctx context.Context) (*Configuracion, error)
}
