package normalizer

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestExtraerIdentidad_CUITConGuiones(t *testing.T) {
	id := ExtraerIdentidad("TRANSF DE JUAN PEREZ CUIT 20-12345678-9")

	if id.CUIT == nil || *id.CUIT != "20-12345678-9" {
		t.Fatalf("CUIT = %v, want 20-12345678-9", deref(id.CUIT))
	}
	if id.Apellido == nil || *id.Apellido != "PEREZ" {
		t.Errorf("Apellido = %v, want PEREZ", deref(id.Apellido))
	}
	if id.Nombre == nil || *id.Nombre != "JUAN" {
		t.Errorf("Nombre = %v, want JUAN", deref(id.Nombre))
	}
	if id.DNI != nil {
		t.Errorf("DNI = %v, want nil (CUIT digits must not leak into DNI)", *id.DNI)
	}
}

func TestExtraerIdentidad_CUITPegado(t *testing.T) {
	id := ExtraerIdentidad("TRANSFERENCIA RECIBIDA 20123456789 GOMEZ MARIA")

	if id.CUIT == nil || *id.CUIT != "20-12345678-9" {
		t.Fatalf("CUIT = %v, want normalized 20-12345678-9", deref(id.CUIT))
	}
	if id.Apellido == nil || *id.Apellido != "MARIA" {
		t.Errorf("Apellido = %v, want MARIA (last alphabetic token)", deref(id.Apellido))
	}
}

func TestExtraerIdentidad_DNI(t *testing.T) {
	id := ExtraerIdentidad("DEPOSITO DNI 30123456 LOPEZ CARLOS")

	if id.CUIT != nil {
		t.Errorf("CUIT = %v, want nil", *id.CUIT)
	}
	if id.DNI == nil || *id.DNI != "30123456" {
		t.Fatalf("DNI = %v, want 30123456", deref(id.DNI))
	}
}

func TestExtraerIdentidad_ReferenciaNoEsDNI(t *testing.T) {
	// The reference digits must be claimed before the DNI scan runs.
	id := ExtraerIdentidad("TRANSF GARCIA ANA REF 99887766")

	if id.Referencia == nil || *id.Referencia != "99887766" {
		t.Fatalf("Referencia = %v, want 99887766", deref(id.Referencia))
	}
	if id.DNI != nil {
		t.Errorf("DNI = %v, want nil", *id.DNI)
	}
}

func TestExtraerIdentidad_SoloBoilerplate(t *testing.T) {
	id := ExtraerIdentidad("TRANSFERENCIA RECIBIDA VARIOS")

	if id.Apellido != nil || id.Nombre != nil || id.CUIT != nil || id.DNI != nil {
		t.Fatalf("expected empty identity, got %+v", id)
	}
}

func TestExtraerIdentidad_UnSoloToken(t *testing.T) {
	id := ExtraerIdentidad("TRANSF DE FERNANDEZ")

	if id.Apellido == nil || *id.Apellido != "FERNANDEZ" {
		t.Fatalf("Apellido = %v, want FERNANDEZ", deref(id.Apellido))
	}
	if id.Nombre != nil {
		t.Errorf("Nombre = %v, want nil for single token", *id.Nombre)
	}
}

func TestExtraerIdentidad_Deterministico(t *testing.T) {
	concepto := "TRANSF DE JUAN PEREZ CUIT 20-12345678-9"
	a := ExtraerIdentidad(concepto)
	b := ExtraerIdentidad(concepto)

	if deref(a.CUIT) != deref(b.CUIT) || deref(a.Apellido) != deref(b.Apellido) ||
		deref(a.Nombre) != deref(b.Nombre) || deref(a.DNI) != deref(b.DNI) {
		t.Fatalf("extraction not deterministic: %+v vs %+v", a, b)
	}
}

func TestNormalizar(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"PÉREZ   José", "perez jose"},
		{"  Ñandú  ", "nandu"},
		{"GOMEZ", "gomez"},
		{"María  Inés", "maria ines"},
	}
	for _, tc := range tests {
		if got := Normalizar(tc.input); got != tc.expected {
			t.Errorf("Normalizar(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestGenerarHash_Estable(t *testing.T) {
	fecha := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	h1 := GenerarHash(fecha, 150000, "TRANSF DE JUAN PEREZ")
	h2 := GenerarHash(fecha, 150000, "transf  de  juan pérez")
	if h1 != h2 {
		t.Fatalf("hash must survive case, accent and spacing noise: %s != %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("expected sha256 hex length 64, got %d", len(h1))
	}
}

func TestGenerarHash_Distingue(t *testing.T) {
	fecha := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	base := GenerarHash(fecha, 150000, "TRANSF DE JUAN PEREZ")

	if GenerarHash(fecha.AddDate(0, 0, 1), 150000, "TRANSF DE JUAN PEREZ") == base {
		t.Error("different fecha must change the hash")
	}
	if GenerarHash(fecha, 150001, "TRANSF DE JUAN PEREZ") == base {
		t.Error("different monto must change the hash")
	}
	if GenerarHash(fecha, 150000, "TRANSF DE MARIA GOMEZ") == base {
		t.Error("different concepto must change the hash")
	}
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}
