// Package service drives the end-to-end reconciliation flow:
// parse, normalize, hash, dedupe, match, and (on confirmation) allocate.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clubnautico/gestion/internal/domain/conciliacion/matcher"
	"github.com/clubnautico/gestion/internal/domain/conciliacion/normalizer"
	"github.com/clubnautico/gestion/internal/domain/conciliacion/parser"
	"github.com/clubnautico/gestion/internal/domain/conciliacion/repository"
	"github.com/clubnautico/gestion/internal/domain/pago"
	"github.com/clubnautico/gestion/internal/domain/socio"
	"github.com/clubnautico/gestion/pkg/observability"
)

// ImportResult summarizes one extract import
type ImportResult struct {
	Banco       string   `json:"banco"`
	Creditos    int      `json:"creditos"`
	Nuevos      int      `json:"nuevos"`
	Duplicados  int      `json:"duplicados"`
	Descartes   int      `json:"descartes"`
	Omitidas    int      `json:"omitidas"`
	Confirmados int      `json:"confirmados"`
	Errores     []string `json:"errores,omitempty"`
}

// Service orchestrates bank-statement reconciliation
type Service struct {
	repo          repository.Repository
	socioRepo     socio.Repository
	logger        *slog.Logger
	tracer        trace.Tracer
	autoConfirmar bool // confirm tier A/B matches without operator review
}

// NewService creates a new reconciliation service
func NewService(repo repository.Repository, socioRepo socio.Repository, logger *slog.Logger, tracer trace.Tracer, autoConfirmar bool) *Service {
	return &Service{
		repo:          repo,
		socioRepo:     socioRepo,
		logger:        logger,
		tracer:        tracer,
		autoConfirmar: autoConfirmar,
	}
}

// ImportarExtracto runs the full import pipeline over a raw bank extract.
// Malformed lines are reported without aborting the batch; duplicate
// movements are flagged and skip matching entirely.
func (s *Service) ImportarExtracto(ctx context.Context, data []byte, banco string) (*ImportResult, error) {
	ctx, span := s.tracer.Start(ctx, "conciliacion.ImportarExtracto")
	defer span.End()
	span.SetAttributes(attribute.String("banco", banco))

	start := time.Now()
	defer func() {
		observability.ImportDuration.Observe(time.Since(start).Seconds())
	}()

	formato, err := parser.FormatoPorBanco(banco)
	if err != nil {
		return nil, err
	}

	parseado, err := parser.ParseExtracto(data, formato)
	if err != nil {
		return nil, fmt.Errorf("failed to parse extracto: %w", err)
	}

	// Registry and learned keywords are loaded once per batch
	m, err := s.cargarMatcher(ctx)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{
		Banco:     banco,
		Creditos:  len(parseado.Lineas),
		Descartes: parseado.Descartes,
		Omitidas:  parseado.Omitidas,
	}
	for _, perr := range parseado.Errores {
		result.Errores = append(result.Errores, perr.Error())
	}

	for _, linea := range parseado.Lineas {
		if err := s.procesarLinea(ctx, linea, m, result); err != nil {
			observability.MovimientosImportados.WithLabelValues("error").Inc()
			result.Errores = append(result.Errores, err.Error())
		}
	}

	s.logger.Info("extracto importado",
		"banco", banco,
		"creditos", result.Creditos,
		"nuevos", result.Nuevos,
		"duplicados", result.Duplicados,
		"confirmados", result.Confirmados,
		"omitidas", result.Omitidas,
	)
	return result, nil
}

func (s *Service) procesarLinea(ctx context.Context, linea parser.Linea, m *matcher.Matcher, result *ImportResult) error {
	identidad := normalizer.ExtraerIdentidad(linea.Concepto)

	referencia := linea.Referencia
	if referencia == nil {
		referencia = identidad.Referencia
	}

	mov := &repository.Movimiento{
		Fecha:                linea.Fecha,
		Concepto:             linea.Concepto,
		Monto:                linea.Monto,
		ReferenciaBancaria:   referencia,
		ApellidoTransferente: identidad.Apellido,
		NombreTransferente:   identidad.Nombre,
		CUIT:                 identidad.CUIT,
		DNI:                  identidad.DNI,
		Hash:                 normalizer.GenerarHash(linea.Fecha, linea.Monto, linea.Concepto),
	}

	if err := s.repo.InsertarMovimiento(ctx, mov); err != nil {
		return fmt.Errorf("movimiento %s: %w", mov.Hash[:12], err)
	}
	if mov.EsDuplicado {
		// Duplicates skip matching: the original already went through it.
		result.Duplicados++
		observability.MovimientosImportados.WithLabelValues("duplicado").Inc()
		return nil
	}
	result.Nuevos++
	observability.MovimientosImportados.WithLabelValues("nuevo").Inc()

	verdict := m.Match(identidad)
	observability.MatchesPorNivel.WithLabelValues(verdict.Nivel).Inc()

	if err := s.repo.ActualizarMatch(ctx, mov.ID, verdict.SocioID, verdict.Nivel, verdict.Confianza, verdict.Razon); err != nil {
		return fmt.Errorf("movimiento %s: %w", mov.ID, err)
	}

	if s.autoConfirmar && verdict.SocioID != nil &&
		(verdict.Nivel == matcher.NivelA || verdict.Nivel == matcher.NivelB) {
		if _, err := s.Confirmar(ctx, mov.ID, verdict.SocioID, pago.MedioTransferencia); err != nil {
			return fmt.Errorf("auto-confirmación de %s: %w", mov.ID, err)
		}
		result.Confirmados++
	}

	return nil
}

func (s *Service) cargarMatcher(ctx context.Context) (*matcher.Matcher, error) {
	socios, err := s.socioRepo.ListSociosActivos(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	keywords, err := s.socioRepo.ListKeywords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load keywords: %w", err)
	}
	return matcher.New(socios, keywords), nil
}

// Confirmar confirms a movement into a payment. When socioID is nil the
// matcher's proposed member is used; passing an explicit socioID is a
// manual override and also teaches a CUIT keyword for future imports.
func (s *Service) Confirmar(ctx context.Context, movimientoID uuid.UUID, socioID *uuid.UUID, medio string) (*pago.Aplicacion, error) {
	mov, err := s.repo.GetMovimientoByID(ctx, movimientoID)
	if err != nil {
		return nil, err
	}

	esManual := socioID != nil && (mov.SocioID == nil || *socioID != *mov.SocioID)
	elegido := mov.SocioID
	if socioID != nil {
		elegido = socioID
	}
	if elegido == nil {
		return nil, fmt.Errorf("movimiento %s has no matched socio: %w", movimientoID, repository.ErrNoConfirmable)
	}

	aplicacion, err := s.repo.ConfirmarMovimiento(ctx, movimientoID, *elegido, medio)
	if err != nil {
		return nil, err
	}
	observability.PagosAplicados.Inc()

	if esManual {
		s.aprenderKeyword(ctx, mov, *elegido)
	}

	s.logger.Info("movimiento confirmado",
		"movimiento_id", movimientoID,
		"socio_id", *elegido,
		"monto_aplicado", aplicacion.MontoAplicado,
		"credito", aplicacion.Credito,
	)
	return aplicacion, nil
}

// Resolver manually assigns a member to an ambiguous or unmatched movement
// and, when the movement carries a CUIT, learns it as a keyword so future
// imports match automatically. Confirmation remains a separate step.
func (s *Service) Resolver(ctx context.Context, movimientoID, socioID uuid.UUID) error {
	mov, err := s.repo.GetMovimientoByID(ctx, movimientoID)
	if err != nil {
		return err
	}
	if mov.Estado != repository.EstadoNuevo || mov.EsDuplicado {
		return repository.ErrNoConfirmable
	}

	if err := s.repo.ActualizarMatch(ctx, movimientoID, &socioID, matcher.NivelA, 100, "resolución manual del operador"); err != nil {
		return err
	}

	s.aprenderKeyword(ctx, mov, socioID)
	return nil
}

// aprenderKeyword records the movement's CUIT as a learned identity hint.
// Best-effort: a failure here must not undo a confirmed payment.
func (s *Service) aprenderKeyword(ctx context.Context, mov *repository.Movimiento, socioID uuid.UUID) {
	if mov.CUIT == nil {
		return
	}
	k := &socio.Keyword{SocioID: socioID, Tipo: socio.KeywordTipoCUIT, Valor: *mov.CUIT}
	if err := s.socioRepo.CreateKeyword(ctx, k); err != nil {
		s.logger.Warn("failed to learn keyword", "socio_id", socioID, "error", err)
	}
}

// Descartar rejects a movement as not club-related
func (s *Service) Descartar(ctx context.Context, movimientoID uuid.UUID) error {
	return s.repo.DescartarMovimiento(ctx, movimientoID)
}

// GetMovimiento returns one movement by id
func (s *Service) GetMovimiento(ctx context.Context, id uuid.UUID) (*repository.Movimiento, error) {
	return s.repo.GetMovimientoByID(ctx, id)
}

// ListMovimientos lists movements for the resolution screens
func (s *Service) ListMovimientos(ctx context.Context, filtro repository.Filtro) ([]*repository.Movimiento, error) {
	return s.repo.ListMovimientos(ctx, filtro)
}
