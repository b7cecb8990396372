// Package pago manages payments and their allocation against dues coupons.
package pago

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Payment methods
const (
	MedioEfectivo      = "efectivo"
	MedioTransferencia = "transferencia"
	MedioCheque        = "cheque"
	MedioTarjeta       = "tarjeta"
	MedioOtro          = "otro"
)

// Reconciliation states of a payment
const (
	ConciliacionPendiente    = "pendiente"
	ConciliacionConciliado   = "conciliado"
	ConciliacionDiscrepancia = "discrepancia"
)

// Pago is one money receipt from a member
type Pago struct {
	ID                 uuid.UUID  `db:"id"`
	SocioID            uuid.UUID  `db:"socio_id"`
	FechaPago          time.Time  `db:"fecha_pago"`
	Monto              int64      `db:"monto"`
	Medio              string     `db:"medio"`
	Comprobante        *string    `db:"comprobante"`
	EstadoConciliacion string     `db:"estado_conciliacion"`
	MovimientoID       *uuid.UUID `db:"movimiento_id"`
	CreatedAt          time.Time  `db:"created_at"`
}

// PagoCupon is one slice of a payment applied to one coupon.
// For a payment, the sum of monto_aplicado never exceeds pago.monto.
type PagoCupon struct {
	ID            uuid.UUID `db:"id"`
	PagoID        uuid.UUID `db:"pago_id"`
	CuponID       uuid.UUID `db:"cupon_id"`
	MontoAplicado int64     `db:"monto_aplicado"`
	CreatedAt     time.Time `db:"created_at"`
}

// Aplicacion summarizes one allocation run
type Aplicacion struct {
	PagoID         uuid.UUID   `json:"pago_id"`
	Aplicaciones   []PagoCupon `json:"aplicaciones"`
	MontoAplicado  int64       `json:"monto_aplicado"`
	CuponesPagados int         `json:"cupones_pagados"`
	// Credito is the unallocated remainder: the member's credit when the
	// payment exceeds their outstanding debt. Not an error state.
	Credito int64 `json:"credito"`
}

// Repository defines data access for payments and allocations
type Repository interface {
	RegistrarPago(ctx context.Context, p *Pago) (*Aplicacion, error)
	GetPagoByID(ctx context.Context, id uuid.UUID) (*Pago, error)
	ListPagosBySocio(ctx context.Context, socioID uuid.UUID) ([]*Pago, error)
	ListAplicaciones(ctx context.Context, pagoID uuid.UUID) ([]*PagoCupon, error)
	EliminarPago(ctx context.Context, pagoID uuid.UUID) error
	EliminarAplicacion(ctx context.Context, pagoCuponID uuid.UUID) error
}
