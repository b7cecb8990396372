package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/clubnautico/gestion/internal/domain/common"
	"github.com/clubnautico/gestion/internal/domain/conciliacion/matcher"
	"github.com/clubnautico/gestion/internal/domain/conciliacion/repository"
	"github.com/clubnautico/gestion/internal/domain/pago"
	"github.com/clubnautico/gestion/internal/domain/socio"
)

const extractoGalicia = "Fecha;Concepto;Importe;Referencia;Tipo\n" +
	"10/03/2025;TRANSF DE JUAN PEREZ CUIT 20-12345678-9;1.500,00;OP123;CR\n" +
	"11/03/2025;PAGO SERVICIO LUZ;-800,00;;DB\n" +
	"12/03/2025;TRANSF DE DESCONOCIDO TOTAL;2.000,00;;CR\n"

type fakeMovimientoRepo struct {
	porHash      map[string]*repository.Movimiento
	porID        map[uuid.UUID]*repository.Movimiento
	confirmados  int
	descartados  int
	aplicaciones map[uuid.UUID]*pago.Aplicacion
}

func newFakeMovimientoRepo() *fakeMovimientoRepo {
	return &fakeMovimientoRepo{
		porHash:      make(map[string]*repository.Movimiento),
		porID:        make(map[uuid.UUID]*repository.Movimiento),
		aplicaciones: make(map[uuid.UUID]*pago.Aplicacion),
	}
}

func (f *fakeMovimientoRepo) InsertarMovimiento(_ context.Context, m *repository.Movimiento) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Estado == "" {
		m.Estado = repository.EstadoNuevo
	}
	if original, ok := f.porHash[m.Hash]; ok {
		m.EsDuplicado = true
		m.Estado = repository.EstadoYaRegistrado
		id := original.ID
		m.MovimientoOriginalID = &id
	} else {
		f.porHash[m.Hash] = m
	}
	f.porID[m.ID] = m
	return nil
}

func (f *fakeMovimientoRepo) GetMovimientoByID(_ context.Context, id uuid.UUID) (*repository.Movimiento, error) {
	m, ok := f.porID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return m, nil
}

func (f *fakeMovimientoRepo) ListMovimientos(_ context.Context, filtro repository.Filtro) ([]*repository.Movimiento, error) {
	var out []*repository.Movimiento
	for _, m := range f.porID {
		if filtro.Estado != "" && m.Estado != filtro.Estado {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeMovimientoRepo) ActualizarMatch(_ context.Context, id uuid.UUID, socioID *uuid.UUID, nivel string, confianza int, razon string) error {
	m, ok := f.porID[id]
	if !ok {
		return common.ErrNotFound
	}
	m.SocioID = socioID
	m.NivelMatch = &nivel
	m.PorcentajeConfianza = confianza
	m.RazonMatch = &razon
	return nil
}

func (f *fakeMovimientoRepo) ConfirmarMovimiento(_ context.Context, movimientoID, socioID uuid.UUID, _ string) (*pago.Aplicacion, error) {
	m, ok := f.porID[movimientoID]
	if !ok {
		return nil, common.ErrNotFound
	}
	if m.Estado != repository.EstadoNuevo || m.EsDuplicado {
		return nil, repository.ErrNoConfirmable
	}
	m.Estado = repository.EstadoProcesado
	m.SocioID = &socioID
	f.confirmados++
	a := &pago.Aplicacion{PagoID: uuid.New(), MontoAplicado: m.Monto}
	f.aplicaciones[movimientoID] = a
	return a, nil
}

func (f *fakeMovimientoRepo) DescartarMovimiento(_ context.Context, id uuid.UUID) error {
	m, ok := f.porID[id]
	if !ok || m.Estado != repository.EstadoNuevo {
		return repository.ErrNoConfirmable
	}
	m.Estado = repository.EstadoDescartado
	f.descartados++
	return nil
}

type fakeSocioRepo struct {
	socios   []*socio.Socio
	keywords []*socio.Keyword
}

func (f *fakeSocioRepo) CreateSocio(context.Context, *socio.Socio) error { return nil }
func (f *fakeSocioRepo) GetSocioByID(context.Context, uuid.UUID) (*socio.Socio, error) {
	return nil, common.ErrNotFound
}
func (f *fakeSocioRepo) GetSocioByNumero(context.Context, int) (*socio.Socio, error) {
	return nil, common.ErrNotFound
}
func (f *fakeSocioRepo) ListSocios(context.Context, string) ([]*socio.Socio, error) {
	return f.socios, nil
}
func (f *fakeSocioRepo) ListSociosActivos(context.Context) ([]*socio.Socio, error) {
	return f.socios, nil
}
func (f *fakeSocioRepo) UpdateSocio(context.Context, *socio.Socio) error { return nil }
func (f *fakeSocioRepo) CreateKeyword(_ context.Context, k *socio.Keyword) error {
	f.keywords = append(f.keywords, k)
	return nil
}
func (f *fakeSocioRepo) ListKeywords(context.Context) ([]*socio.Keyword, error) {
	return f.keywords, nil
}
func (f *fakeSocioRepo) ListKeywordsBySocio(context.Context, uuid.UUID) ([]*socio.Keyword, error) {
	return f.keywords, nil
}
func (f *fakeSocioRepo) DeleteKeyword(context.Context, uuid.UUID) error { return nil }
func (f *fakeSocioRepo) DeleteKeywordsBySocio(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}

func strPtr(s string) *string { return &s }

func newTestService(repo *fakeMovimientoRepo, socios *fakeSocioRepo, autoConfirmar bool) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracer := noop.NewTracerProvider().Tracer("test")
	return NewService(repo, socios, logger, tracer, autoConfirmar)
}

func socioConCUIT() *socio.Socio {
	return &socio.Socio{
		ID:          uuid.New(),
		NumeroSocio: 42,
		Apellido:    "Perez",
		Nombre:      "Juan",
		CUIT:        strPtr("20-12345678-9"),
		Estado:      socio.EstadoActivo,
	}
}

func TestImportarExtracto_MatchPorCUIT(t *testing.T) {
	repo := newFakeMovimientoRepo()
	s := socioConCUIT()
	svc := newTestService(repo, &fakeSocioRepo{socios: []*socio.Socio{s}}, false)

	result, err := svc.ImportarExtracto(context.Background(), []byte(extractoGalicia), "galicia")
	if err != nil {
		t.Fatalf("ImportarExtracto: %v", err)
	}

	if result.Creditos != 2 || result.Nuevos != 2 || result.Descartes != 1 {
		t.Fatalf("got creditos=%d nuevos=%d descartes=%d, want 2, 2, 1",
			result.Creditos, result.Nuevos, result.Descartes)
	}
	if result.Confirmados != 0 {
		t.Fatalf("Confirmados = %d, want 0 without auto-confirm", result.Confirmados)
	}

	var nivelA, nivelF int
	for _, m := range repo.porID {
		if m.NivelMatch == nil {
			t.Fatalf("movement %s was not scored", m.ID)
		}
		switch *m.NivelMatch {
		case matcher.NivelA:
			nivelA++
			if m.SocioID == nil || *m.SocioID != s.ID {
				t.Errorf("tier A movement not assigned to the CUIT owner")
			}
		case matcher.NivelF:
			nivelF++
		}
	}
	if nivelA != 1 || nivelF != 1 {
		t.Fatalf("got %d tier A and %d tier F, want 1 and 1", nivelA, nivelF)
	}
}

func TestImportarExtracto_ReimportDetectaDuplicados(t *testing.T) {
	repo := newFakeMovimientoRepo()
	svc := newTestService(repo, &fakeSocioRepo{socios: []*socio.Socio{socioConCUIT()}}, false)

	if _, err := svc.ImportarExtracto(context.Background(), []byte(extractoGalicia), "galicia"); err != nil {
		t.Fatalf("first import: %v", err)
	}
	result, err := svc.ImportarExtracto(context.Background(), []byte(extractoGalicia), "galicia")
	if err != nil {
		t.Fatalf("second import: %v", err)
	}

	if result.Nuevos != 0 || result.Duplicados != 2 {
		t.Fatalf("got nuevos=%d duplicados=%d, want 0 and 2", result.Nuevos, result.Duplicados)
	}

	duplicados := 0
	for _, m := range repo.porID {
		if m.EsDuplicado {
			duplicados++
			if m.Estado != repository.EstadoYaRegistrado {
				t.Errorf("duplicate estado = %s, want ya_registrado", m.Estado)
			}
			if m.MovimientoOriginalID == nil {
				t.Error("duplicate must point at its original")
			}
		}
	}
	if duplicados != 2 {
		t.Fatalf("stored duplicates = %d, want 2", duplicados)
	}
}

func TestImportarExtracto_AutoConfirmaNivelA(t *testing.T) {
	repo := newFakeMovimientoRepo()
	svc := newTestService(repo, &fakeSocioRepo{socios: []*socio.Socio{socioConCUIT()}}, true)

	result, err := svc.ImportarExtracto(context.Background(), []byte(extractoGalicia), "galicia")
	if err != nil {
		t.Fatalf("ImportarExtracto: %v", err)
	}

	// Only the tier A movement confirms; the unmatched one stays nuevo.
	if result.Confirmados != 1 {
		t.Fatalf("Confirmados = %d, want 1", result.Confirmados)
	}
	if repo.confirmados != 1 {
		t.Fatalf("repo confirmations = %d, want 1", repo.confirmados)
	}
}

func TestImportarExtracto_BancoDesconocido(t *testing.T) {
	svc := newTestService(newFakeMovimientoRepo(), &fakeSocioRepo{}, false)

	if _, err := svc.ImportarExtracto(context.Background(), []byte("x"), "hsbc"); err == nil {
		t.Fatal("expected error for unknown bank")
	}
}

func TestConfirmar_SinMatchNiOverride(t *testing.T) {
	repo := newFakeMovimientoRepo()
	svc := newTestService(repo, &fakeSocioRepo{}, false)

	m := &repository.Movimiento{Hash: "h1", Monto: 1000}
	if err := repo.InsertarMovimiento(context.Background(), m); err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, err := svc.Confirmar(context.Background(), m.ID, nil, "")
	if !errors.Is(err, repository.ErrNoConfirmable) {
		t.Fatalf("expected ErrNoConfirmable, got %v", err)
	}
}

func TestConfirmar_OverrideManualAprendeKeyword(t *testing.T) {
	repo := newFakeMovimientoRepo()
	socios := &fakeSocioRepo{}
	svc := newTestService(repo, socios, false)

	m := &repository.Movimiento{Hash: "h2", Monto: 1000, CUIT: strPtr("27-98765432-1")}
	if err := repo.InsertarMovimiento(context.Background(), m); err != nil {
		t.Fatalf("insert: %v", err)
	}

	elegido := uuid.New()
	aplicacion, err := svc.Confirmar(context.Background(), m.ID, &elegido, pago.MedioTransferencia)
	if err != nil {
		t.Fatalf("Confirmar: %v", err)
	}
	if aplicacion.MontoAplicado != 1000 {
		t.Errorf("MontoAplicado = %d, want 1000", aplicacion.MontoAplicado)
	}

	if len(socios.keywords) != 1 {
		t.Fatalf("keywords learned = %d, want 1", len(socios.keywords))
	}
	k := socios.keywords[0]
	if k.SocioID != elegido || k.Tipo != socio.KeywordTipoCUIT || k.Valor != "27-98765432-1" {
		t.Fatalf("unexpected keyword learned: %+v", k)
	}
}

func TestResolver_AsignaYAprende(t *testing.T) {
	repo := newFakeMovimientoRepo()
	socios := &fakeSocioRepo{}
	svc := newTestService(repo, socios, false)

	m := &repository.Movimiento{Hash: "h3", Monto: 500, CUIT: strPtr("20-11111111-1")}
	if err := repo.InsertarMovimiento(context.Background(), m); err != nil {
		t.Fatalf("insert: %v", err)
	}

	elegido := uuid.New()
	if err := svc.Resolver(context.Background(), m.ID, elegido); err != nil {
		t.Fatalf("Resolver: %v", err)
	}

	if m.SocioID == nil || *m.SocioID != elegido {
		t.Fatal("resolution must assign the socio")
	}
	if m.Estado != repository.EstadoNuevo {
		t.Fatalf("estado = %s, resolution must not confirm", m.Estado)
	}
	if len(socios.keywords) != 1 {
		t.Fatalf("keywords learned = %d, want 1", len(socios.keywords))
	}
}

func TestDescartar_Terminal(t *testing.T) {
	repo := newFakeMovimientoRepo()
	svc := newTestService(repo, &fakeSocioRepo{}, false)

	m := &repository.Movimiento{Hash: "h4", Monto: 500}
	if err := repo.InsertarMovimiento(context.Background(), m); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := svc.Descartar(context.Background(), m.ID); err != nil {
		t.Fatalf("Descartar: %v", err)
	}
	if err := svc.Descartar(context.Background(), m.ID); !errors.Is(err, repository.ErrNoConfirmable) {
		t.Fatalf("second discard should fail, got %v", err)
	}
}
