package cupon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func fecha(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func configPrueba() *Configuracion {
	return &Configuracion{
		TasaInteresMora: decimal.RequireFromString("0.045"),
		DiasGracia:      5,
	}
}

func TestDiasMoraCupon(t *testing.T) {
	tests := []struct {
		name        string
		vencimiento time.Time
		hoy         time.Time
		diasGracia  int
		expected    int
	}{
		{"dentro de gracia", fecha(2025, 1, 10), fecha(2025, 1, 13), 5, 0},
		{"exactamente en gracia", fecha(2025, 1, 10), fecha(2025, 1, 15), 5, 0},
		{"un dia pasado gracia", fecha(2025, 1, 10), fecha(2025, 1, 16), 5, 1},
		{"quince dias transcurridos", fecha(2025, 1, 10), fecha(2025, 1, 25), 5, 10},
		{"sin vencer", fecha(2025, 2, 10), fecha(2025, 1, 25), 5, 0},
	}

	for _, tc := range tests {
		got := DiasMoraCupon(tc.vencimiento, tc.hoy, tc.diasGracia)
		if got != tc.expected {
			t.Errorf("%s: DiasMoraCupon = %d, want %d", tc.name, got, tc.expected)
		}
	}
}

func TestDiasMoraCuota_SinGracia(t *testing.T) {
	// Plan installments accrue from day one after due date
	if got := DiasMoraCuota(fecha(2025, 1, 10), fecha(2025, 1, 11)); got != 1 {
		t.Errorf("DiasMoraCuota = %d, want 1", got)
	}
	if got := DiasMoraCuota(fecha(2025, 1, 10), fecha(2025, 1, 10)); got != 0 {
		t.Errorf("DiasMoraCuota same day = %d, want 0", got)
	}
	if got := DiasMoraCuota(fecha(2025, 2, 10), fecha(2025, 1, 10)); got != 0 {
		t.Errorf("DiasMoraCuota future due = %d, want 0", got)
	}
}

func TestInteresCupon_EjemploReferencia(t *testing.T) {
	// saldo $50000, tasa 0.045, 15 dias transcurridos, 5 de gracia => $750
	saldo := int64(5000000)
	interes, err := InteresCupon(saldo, fecha(2025, 3, 1), fecha(2025, 3, 16), configPrueba())
	if err != nil {
		t.Fatalf("InteresCupon: %v", err)
	}
	if interes != 75000 {
		t.Errorf("InteresCupon = %d centavos, want 75000", interes)
	}
}

func TestInteresCupon_DentroDeGracia(t *testing.T) {
	interes, err := InteresCupon(5000000, fecha(2025, 3, 1), fecha(2025, 3, 5), configPrueba())
	if err != nil {
		t.Fatalf("InteresCupon: %v", err)
	}
	if interes != 0 {
		t.Errorf("InteresCupon dentro de gracia = %d, want 0", interes)
	}
}

func TestInteresCuota_EjemploReferencia(t *testing.T) {
	// monto $37333.33, tasa 0.045, 15 dias de mora => $840 (redondeado)
	saldo := int64(3733333)
	interes, err := InteresCuota(saldo, fecha(2025, 3, 1), fecha(2025, 3, 16), configPrueba())
	if err != nil {
		t.Fatalf("InteresCuota: %v", err)
	}
	if interes != 84000 {
		t.Errorf("InteresCuota = %d centavos, want 84000", interes)
	}
}

func TestCalcularInteres_SaldoCero(t *testing.T) {
	if got := CalcularInteres(0, decimal.RequireFromString("0.045"), 30); got != 0 {
		t.Errorf("CalcularInteres saldo cero = %d, want 0", got)
	}
	if got := CalcularInteres(100000, decimal.RequireFromString("0.045"), 0); got != 0 {
		t.Errorf("CalcularInteres sin mora = %d, want 0", got)
	}
}

func TestInteresCupon_ConfigInvalida(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Configuracion
	}{
		{"nil", nil},
		{"tasa cero", &Configuracion{TasaInteresMora: decimal.Zero, DiasGracia: 5}},
		{"tasa negativa", &Configuracion{TasaInteresMora: decimal.RequireFromString("-0.01"), DiasGracia: 5}},
		{"gracia negativa", &Configuracion{TasaInteresMora: decimal.RequireFromString("0.045"), DiasGracia: -1}},
	}

	for _, tc := range tests {
		_, err := InteresCupon(100000, fecha(2025, 1, 1), fecha(2025, 2, 1), tc.cfg)
		if err != ErrInvalidConfig {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", tc.name, err)
		}
	}
}
