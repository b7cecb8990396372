package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/clubnautico/gestion/internal/domain/common"
)

func nuevoPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func movimientoDePrueba() *Movimiento {
	return &Movimiento{
		Fecha:    time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Concepto: "TRANSF DE JUAN PEREZ",
		Monto:    150000,
		Hash:     "abc123",
	}
}

func TestInsertarMovimiento_Nuevo(t *testing.T) {
	mock := nuevoPool(t)

	mock.ExpectQuery(regexp.QuoteMeta(getPorHashQuery)).
		WithArgs("abc123").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta(insertMovimientoQuery)).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "TRANSF DE JUAN PEREZ", int64(150000),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			"abc123", EstadoNuevo, false, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewPostgresRepository(mock)
	m := movimientoDePrueba()
	if err := repo.InsertarMovimiento(context.Background(), m); err != nil {
		t.Fatalf("InsertarMovimiento: %v", err)
	}

	if m.EsDuplicado {
		t.Fatal("first sighting must not be a duplicate")
	}
	if m.Estado != EstadoNuevo {
		t.Fatalf("estado = %s, want nuevo", m.Estado)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertarMovimiento_HashExistente(t *testing.T) {
	mock := nuevoPool(t)
	originalID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(getPorHashQuery)).
		WithArgs("abc123").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(originalID))
	mock.ExpectExec(regexp.QuoteMeta(insertMovimientoQuery)).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "TRANSF DE JUAN PEREZ", int64(150000),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			"abc123", EstadoYaRegistrado, true, originalID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewPostgresRepository(mock)
	m := movimientoDePrueba()
	if err := repo.InsertarMovimiento(context.Background(), m); err != nil {
		t.Fatalf("InsertarMovimiento: %v", err)
	}

	if !m.EsDuplicado {
		t.Fatal("expected duplicate flag")
	}
	if m.Estado != EstadoYaRegistrado {
		t.Fatalf("estado = %s, want ya_registrado", m.Estado)
	}
	if m.MovimientoOriginalID == nil || *m.MovimientoOriginalID != originalID {
		t.Fatalf("MovimientoOriginalID = %v, want %s", m.MovimientoOriginalID, originalID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestActualizarMatch_SoloMovimientosNuevos(t *testing.T) {
	mock := nuevoPool(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(actualizarMatchQuery)).
		WithArgs(id, pgxmock.AnyArg(), "F", 0, "sin señales de identidad").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewPostgresRepository(mock)
	err := repo.ActualizarMatch(context.Background(), id, nil, "F", 0, "sin señales de identidad")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for processed movement, got %v", err)
	}
}

func TestConfirmarMovimiento_RechazaNoNuevo(t *testing.T) {
	mock := nuevoPool(t)
	movID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(getMovimientoForUpdateQuery)).
		WithArgs(movID).
		WillReturnRows(pgxmock.NewRows([]string{"fecha", "monto", "estado", "es_duplicado"}).
			AddRow(time.Now(), int64(1000), EstadoProcesado, false))
	mock.ExpectRollback()

	repo := NewPostgresRepository(mock)
	_, err := repo.ConfirmarMovimiento(context.Background(), movID, uuid.New(), "")
	if !errors.Is(err, ErrNoConfirmable) {
		t.Fatalf("expected ErrNoConfirmable, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestConfirmarMovimiento_FlujoCompleto(t *testing.T) {
	mock := nuevoPool(t)

	movID := uuid.New()
	socioID := uuid.New()
	cuponID := uuid.New()
	fecha := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(getMovimientoForUpdateQuery)).
		WithArgs(movID).
		WillReturnRows(pgxmock.NewRows([]string{"fecha", "monto", "estado", "es_duplicado"}).
			AddRow(fecha, int64(100000), EstadoNuevo, false))
	mock.ExpectExec(`INSERT INTO pagos \(`).
		WithArgs(pgxmock.AnyArg(), socioID, fecha, int64(100000), "transferencia",
			pgxmock.AnyArg(), "conciliado", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`FROM cupones`).
		WithArgs(socioID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "monto_total", "fecha_vencimiento"}).
			AddRow(cuponID, int64(100000), time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)))
	mock.ExpectQuery(`FROM pagos_cupones`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"cupon_id", "sum"}))
	mock.ExpectExec(`INSERT INTO pagos_cupones`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), cuponID, int64(100000)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE cupones SET estado = 'pagado'`).
		WithArgs(cuponID, fecha).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta(marcarProcesadoQuery)).
		WithArgs(movID, socioID, pgxmock.AnyArg(), EstadoProcesado).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	repo := NewPostgresRepository(mock)
	aplicacion, err := repo.ConfirmarMovimiento(context.Background(), movID, socioID, "")
	if err != nil {
		t.Fatalf("ConfirmarMovimiento: %v", err)
	}

	if aplicacion.MontoAplicado != 100000 {
		t.Errorf("MontoAplicado = %d, want 100000", aplicacion.MontoAplicado)
	}
	if aplicacion.CuponesPagados != 1 {
		t.Errorf("CuponesPagados = %d, want 1", aplicacion.CuponesPagados)
	}
	if aplicacion.Credito != 0 {
		t.Errorf("Credito = %d, want 0", aplicacion.Credito)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDescartarMovimiento_Terminal(t *testing.T) {
	mock := nuevoPool(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(descartarQuery)).
		WithArgs(id, EstadoDescartado).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewPostgresRepository(mock)
	err := repo.DescartarMovimiento(context.Background(), id)
	if !errors.Is(err, ErrNoConfirmable) {
		t.Fatalf("expected ErrNoConfirmable for non-nuevo movement, got %v", err)
	}
}
