package api

import (
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	conciliacionhandler "github.com/clubnautico/gestion/internal/domain/conciliacion/handler"
	conciliacionrepo "github.com/clubnautico/gestion/internal/domain/conciliacion/repository"
	conciliacionservice "github.com/clubnautico/gestion/internal/domain/conciliacion/service"
	"github.com/clubnautico/gestion/internal/domain/cupon"
	cuponhandler "github.com/clubnautico/gestion/internal/domain/cupon/handler"
	"github.com/clubnautico/gestion/internal/domain/pago"
	pagohandler "github.com/clubnautico/gestion/internal/domain/pago/handler"
	"github.com/clubnautico/gestion/internal/domain/socio"
	sociohandler "github.com/clubnautico/gestion/internal/domain/socio/handler"
	"github.com/clubnautico/gestion/pkg/config"
	"github.com/clubnautico/gestion/pkg/db"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	SocioRepo        socio.Repository
	CuponRepo        cupon.Repository
	PagoRepo         pago.Repository
	ConciliacionRepo conciliacionrepo.Repository

	// Services
	CuponService        *cupon.Service
	ConciliacionService *conciliacionservice.Service

	// Handlers
	SocioHandler        *sociohandler.SocioHandler
	CuponHandler        *cuponhandler.CuponHandler
	PagoHandler         *pagohandler.PagoHandler
	ConciliacionHandler *conciliacionhandler.ConciliacionHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	deps.initRepositories()
	deps.initServices()
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

func (d *Dependencies) initRepositories() {
	d.SocioRepo = socio.NewPostgresRepository(d.DB.Pool)
	d.CuponRepo = cupon.NewPostgresRepository(d.DB.Pool)
	d.PagoRepo = pago.NewPostgresRepository(d.DB.Pool)
	d.ConciliacionRepo = conciliacionrepo.NewPostgresRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initServices() {
	tracer := otel.GetTracerProvider().Tracer("clubnautico/gestion")

	d.CuponService = cupon.NewService(d.CuponRepo, d.SocioRepo, d.Logger)
	d.ConciliacionService = conciliacionservice.NewService(
		d.ConciliacionRepo,
		d.SocioRepo,
		d.Logger,
		tracer,
		d.Config.Conciliacion.AutoConfirmarNivelesAltos,
	)

	d.Logger.Info("services initialized")
}

func (d *Dependencies) initHandlers() {
	d.SocioHandler = sociohandler.NewSocioHandler(d.SocioRepo, d.Logger)
	d.CuponHandler = cuponhandler.NewCuponHandler(d.CuponRepo, d.CuponService, d.Logger)
	d.PagoHandler = pagohandler.NewPagoHandler(d.PagoRepo, d.Logger)
	d.ConciliacionHandler = conciliacionhandler.NewConciliacionHandler(d.ConciliacionService, d.Logger)

	d.Logger.Info("handlers initialized")
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
