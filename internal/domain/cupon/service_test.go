package cupon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clubnautico/gestion/internal/domain/socio"
)

type fakeCuponRepo struct {
	cfg           *Configuracion
	existentes    map[uuid.UUID]bool
	embarcaciones map[uuid.UUID]int
	fallaExiste   map[uuid.UUID]bool
	creados       []*Cupon
	itemsCreados  map[uuid.UUID][]ItemCupon
}

var _ Repository = (*fakeCuponRepo)(nil)

func nuevoFakeCuponRepo() *fakeCuponRepo {
	return &fakeCuponRepo{
		cfg: &Configuracion{
			TasaInteresMora:  decimal.RequireFromString("0.045"),
			DiasGracia:       5,
			MontoCuotaSocial: 2500000,
			MontoAmarra:      1200000,
		},
		existentes:    map[uuid.UUID]bool{},
		embarcaciones: map[uuid.UUID]int{},
		fallaExiste:   map[uuid.UUID]bool{},
		itemsCreados:  map[uuid.UUID][]ItemCupon{},
	}
}

func (f *fakeCuponRepo) CreateCupon(_ context.Context, c *Cupon, items []ItemCupon) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	var total int64
	for _, item := range items {
		total += item.Subtotal
	}
	c.MontoTotal = total
	f.creados = append(f.creados, c)
	f.itemsCreados[c.SocioID] = items
	return nil
}

func (f *fakeCuponRepo) GetCuponByID(_ context.Context, _ uuid.UUID) (*Cupon, error) {
	return nil, nil
}

func (f *fakeCuponRepo) ListCuponesBySocio(_ context.Context, _ uuid.UUID) ([]*Cupon, error) {
	return nil, nil
}

func (f *fakeCuponRepo) ListCuponesImpagosConSaldo(_ context.Context, _ uuid.UUID) ([]*CuponSaldo, error) {
	return nil, nil
}

func (f *fakeCuponRepo) ListItems(_ context.Context, _ uuid.UUID) ([]*ItemCupon, error) {
	return nil, nil
}

func (f *fakeCuponRepo) ExisteCuponPeriodo(_ context.Context, socioID uuid.UUID, _, _ int) (bool, error) {
	if f.fallaExiste[socioID] {
		return false, errors.New("conexión perdida")
	}
	return f.existentes[socioID], nil
}

func (f *fakeCuponRepo) AddItem(_ context.Context, _ *ItemCupon) error    { return nil }
func (f *fakeCuponRepo) UpdateItem(_ context.Context, _ *ItemCupon) error { return nil }
func (f *fakeCuponRepo) DeleteItem(_ context.Context, _ uuid.UUID) error  { return nil }

func (f *fakeCuponRepo) MarcarVencidos(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeCuponRepo) CountEmbarcaciones(_ context.Context, socioID uuid.UUID) (int, error) {
	return f.embarcaciones[socioID], nil
}

func (f *fakeCuponRepo) ListCuotasPlanBySocio(_ context.Context, _ uuid.UUID) ([]*CuotaPlan, error) {
	return nil, nil
}

func (f *fakeCuponRepo) GetConfiguracion(_ context.Context) (*Configuracion, error) {
	return f.cfg, nil
}

type fakeSocioRepo struct {
	activos []*socio.Socio
}

var _ socio.Repository = (*fakeSocioRepo)(nil)

func (f *fakeSocioRepo) CreateSocio(_ context.Context, _ *socio.Socio) error { return nil }
func (f *fakeSocioRepo) GetSocioByID(_ context.Context, _ uuid.UUID) (*socio.Socio, error) {
	return nil, nil
}
func (f *fakeSocioRepo) GetSocioByNumero(_ context.Context, _ int) (*socio.Socio, error) {
	return nil, nil
}
func (f *fakeSocioRepo) ListSocios(_ context.Context, _ string) ([]*socio.Socio, error) {
	return nil, nil
}
func (f *fakeSocioRepo) ListSociosActivos(_ context.Context) ([]*socio.Socio, error) {
	return f.activos, nil
}
func (f *fakeSocioRepo) UpdateSocio(_ context.Context, _ *socio.Socio) error     { return nil }
func (f *fakeSocioRepo) CreateKeyword(_ context.Context, _ *socio.Keyword) error { return nil }
func (f *fakeSocioRepo) ListKeywords(_ context.Context) ([]*socio.Keyword, error) {
	return nil, nil
}
func (f *fakeSocioRepo) ListKeywordsBySocio(_ context.Context, _ uuid.UUID) ([]*socio.Keyword, error) {
	return nil, nil
}
func (f *fakeSocioRepo) DeleteKeyword(_ context.Context, _ uuid.UUID) error { return nil }
func (f *fakeSocioRepo) DeleteKeywordsBySocio(_ context.Context, _ uuid.UUID) (int64, error) {
	return 0, nil
}

func socioActivo(numero int) *socio.Socio {
	return &socio.Socio{ID: uuid.New(), NumeroSocio: numero, Apellido: "Perez", Nombre: "Juan", Estado: socio.EstadoActivo}
}

func nuevoServicio(repo *fakeCuponRepo, socios ...*socio.Socio) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, &fakeSocioRepo{activos: socios}, logger)
}

func TestGenerarCuponesMensuales_OmiteSociosConCuponDelPeriodo(t *testing.T) {
	repo := nuevoFakeCuponRepo()
	conCupon := socioActivo(1)
	sinCupon := socioActivo(2)
	repo.existentes[conCupon.ID] = true

	svc := nuevoServicio(repo, conCupon, sinCupon)
	result, err := svc.GenerarCuponesMensuales(context.Background(), 2025, 3, fecha(2025, 3, 1), fecha(2025, 3, 10))
	if err != nil {
		t.Fatalf("GenerarCuponesMensuales: %v", err)
	}

	if result.Generados != 1 || result.Omitidos != 1 || len(result.Errores) != 0 {
		t.Fatalf("result = %+v, want 1 generado y 1 omitido", result)
	}
	if len(repo.creados) != 1 || repo.creados[0].SocioID != sinCupon.ID {
		t.Fatalf("cupon creado para el socio equivocado: %+v", repo.creados)
	}
	if repo.creados[0].PeriodoAnio != 2025 || repo.creados[0].PeriodoMes != 3 {
		t.Errorf("periodo = %d/%d, want 2025/3", repo.creados[0].PeriodoAnio, repo.creados[0].PeriodoMes)
	}
}

func TestGenerarCuponesMensuales_ItemAmarraPorEmbarcacion(t *testing.T) {
	repo := nuevoFakeCuponRepo()
	conBarcos := socioActivo(1)
	sinBarcos := socioActivo(2)
	repo.embarcaciones[conBarcos.ID] = 2

	svc := nuevoServicio(repo, conBarcos, sinBarcos)
	result, err := svc.GenerarCuponesMensuales(context.Background(), 2025, 3, fecha(2025, 3, 1), fecha(2025, 3, 10))
	if err != nil {
		t.Fatalf("GenerarCuponesMensuales: %v", err)
	}
	if result.Generados != 2 {
		t.Fatalf("Generados = %d, want 2", result.Generados)
	}

	items := repo.itemsCreados[conBarcos.ID]
	if len(items) != 2 {
		t.Fatalf("items con barcos = %+v, want cuota social + amarra", items)
	}
	if items[0].Concepto != ConceptoCuotaSocial || items[0].Subtotal != 2500000 {
		t.Errorf("item cuota social = %+v", items[0])
	}
	if items[1].Concepto != ConceptoAmarra || items[1].Subtotal != 2400000 {
		t.Errorf("item amarra = %+v, want monto_amarra x 2 barcos", items[1])
	}

	var totalConBarcos int64
	for _, c := range repo.creados {
		if c.SocioID == conBarcos.ID {
			totalConBarcos = c.MontoTotal
		}
	}
	if totalConBarcos != 4900000 {
		t.Errorf("MontoTotal con barcos = %d, want 4900000", totalConBarcos)
	}

	if items := repo.itemsCreados[sinBarcos.ID]; len(items) != 1 || items[0].Concepto != ConceptoCuotaSocial {
		t.Errorf("items sin barcos = %+v, want solo cuota social", items)
	}
}

func TestGenerarCuponesMensuales_ErrorDeUnSocioNoAborta(t *testing.T) {
	repo := nuevoFakeCuponRepo()
	falla := socioActivo(1)
	sano := socioActivo(2)
	repo.fallaExiste[falla.ID] = true

	svc := nuevoServicio(repo, falla, sano)
	result, err := svc.GenerarCuponesMensuales(context.Background(), 2025, 3, fecha(2025, 3, 1), fecha(2025, 3, 10))
	if err != nil {
		t.Fatalf("GenerarCuponesMensuales: %v", err)
	}

	if result.Generados != 1 || len(result.Errores) != 1 {
		t.Fatalf("result = %+v, want 1 generado y 1 error", result)
	}
	if len(repo.creados) != 1 || repo.creados[0].SocioID != sano.ID {
		t.Fatalf("cupon creado para el socio equivocado: %+v", repo.creados)
	}
}

func TestGenerarCuponesMensuales_MesInvalido(t *testing.T) {
	svc := nuevoServicio(nuevoFakeCuponRepo())
	if _, err := svc.GenerarCuponesMensuales(context.Background(), 2025, 13, fecha(2025, 3, 1), fecha(2025, 3, 10)); err == nil {
		t.Fatal("expected error for mes 13")
	}
}
