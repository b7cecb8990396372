package cupon

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clubnautico/gestion/internal/domain/common"
)

// ErrInvalidConfig means tasa_interes_mora or dias_gracia is missing or
// invalid. Interest must never silently default to zero.
var ErrInvalidConfig = errors.New("invalid mora configuration")

var treinta = decimal.New(30, 0)

// DiasMoraCupon returns overdue days for a regular coupon: days past the
// due date minus the grace period, never negative.
func DiasMoraCupon(fechaVencimiento, hoy time.Time, diasGracia int) int {
	dias := diasTranscurridos(fechaVencimiento, hoy) - diasGracia
	if dias < 0 {
		return 0
	}
	return dias
}

// DiasMoraCuota returns overdue days for a payment-plan installment.
// Plan installments have no grace period: interest accrues from day one.
func DiasMoraCuota(fechaVencimiento, hoy time.Time) int {
	dias := diasTranscurridos(fechaVencimiento, hoy)
	if dias < 0 {
		return 0
	}
	return dias
}

func diasTranscurridos(desde, hasta time.Time) int {
	d := truncateDay(desde)
	h := truncateDay(hasta)
	return int(h.Sub(d).Hours() / 24)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CalcularInteres computes mora interest in centavos:
// saldo * (tasa mensual / 30) * diasMora. The monthly rate is converted to a
// daily rate dividing by 30, not by the actual days in the month.
// Zero balance or zero overdue days yields exactly zero.
func CalcularInteres(saldo int64, tasaMensual decimal.Decimal, diasMora int) int64 {
	if saldo <= 0 || diasMora <= 0 {
		return 0
	}
	interes := common.CentavosToDecimal(saldo).
		Mul(tasaMensual).
		Div(treinta).
		Mul(decimal.New(int64(diasMora), 0))
	return common.DecimalToCentavos(interes)
}

// InteresCupon computes overdue interest for a regular coupon under the
// grace-period policy.
func InteresCupon(saldo int64, fechaVencimiento, hoy time.Time, cfg *Configuracion) (int64, error) {
	if err := validarConfig(cfg); err != nil {
		return 0, err
	}
	dias := DiasMoraCupon(fechaVencimiento, hoy, cfg.DiasGracia)
	return CalcularInteres(saldo, cfg.TasaInteresMora, dias), nil
}

// InteresCuota computes overdue interest for a payment-plan installment
// under the no-grace policy.
func InteresCuota(saldo int64, fechaVencimiento, hoy time.Time, cfg *Configuracion) (int64, error) {
	if err := validarConfig(cfg); err != nil {
		return 0, err
	}
	dias := DiasMoraCuota(fechaVencimiento, hoy)
	return CalcularInteres(saldo, cfg.TasaInteresMora, dias), nil
}

func validarConfig(cfg *Configuracion) error {
	if cfg == nil {
		return ErrInvalidConfig
	}
	if cfg.TasaInteresMora.IsNegative() || cfg.TasaInteresMora.IsZero() {
		return ErrInvalidConfig
	}
	if cfg.DiasGracia < 0 {
		return ErrInvalidConfig
	}
	return nil
}
