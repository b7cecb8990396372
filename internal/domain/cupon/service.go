package cupon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clubnautico/gestion/internal/domain/socio"
)

// Service coordinates coupon generation and mora calculation
type Service struct {
	repo      Repository
	socioRepo socio.Repository
	logger    *slog.Logger
}

// NewService creates a new coupon service
func NewService(repo Repository, socioRepo socio.Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, socioRepo: socioRepo, logger: logger}
}

// GenerarResult summarizes a monthly coupon generation run
type GenerarResult struct {
	Generados int
	Omitidos  int
	Errores   []string
}

// GenerarCuponesMensuales creates the period's coupon for every active member.
// Members that already have the period's coupon are skipped. A failure for
// one member does not abort the run.
func (s *Service) GenerarCuponesMensuales(ctx context.Context, anio, mes int, fechaEmision, fechaVencimiento time.Time) (*GenerarResult, error) {
	if mes < 1 || mes > 12 {
		return nil, fmt.Errorf("invalid periodo %d/%d", mes, anio)
	}

	cfg, err := s.repo.GetConfiguracion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuracion: %w", err)
	}

	socios, err := s.socioRepo.ListSociosActivos(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list socios: %w", err)
	}

	result := &GenerarResult{}
	for _, sc := range socios {
		exists, err := s.repo.ExisteCuponPeriodo(ctx, sc.ID, anio, mes)
		if err != nil {
			result.Errores = append(result.Errores, fmt.Sprintf("socio %d: %v", sc.NumeroSocio, err))
			continue
		}
		if exists {
			result.Omitidos++
			continue
		}

		items := []ItemCupon{
			{Concepto: ConceptoCuotaSocial, Subtotal: cfg.MontoCuotaSocial},
		}
		if cfg.MontoAmarra > 0 {
			embarcaciones, err := s.repo.CountEmbarcaciones(ctx, sc.ID)
			if err != nil {
				result.Errores = append(result.Errores, fmt.Sprintf("socio %d: %v", sc.NumeroSocio, err))
				continue
			}
			if embarcaciones > 0 {
				items = append(items, ItemCupon{
					Concepto: ConceptoAmarra,
					Subtotal: cfg.MontoAmarra * int64(embarcaciones),
				})
			}
		}

		cupon := &Cupon{
			SocioID:          sc.ID,
			PeriodoMes:       mes,
			PeriodoAnio:      anio,
			FechaEmision:     fechaEmision,
			FechaVencimiento: fechaVencimiento,
		}
		if err := s.repo.CreateCupon(ctx, cupon, items); err != nil {
			result.Errores = append(result.Errores, fmt.Sprintf("socio %d: %v", sc.NumeroSocio, err))
			continue
		}
		result.Generados++
	}

	s.logger.Info("cupones generados",
		"periodo", fmt.Sprintf("%04d-%02d", anio, mes),
		"generados", result.Generados,
		"omitidos", result.Omitidos,
		"errores", len(result.Errores),
	)
	return result, nil
}

// MoraDetalle is the computed overdue interest for one debt instrument
type MoraDetalle struct {
	CuponID  *uuid.UUID `json:"cupon_id,omitempty"`
	CuotaID  *uuid.UUID `json:"cuota_id,omitempty"`
	Saldo    int64      `json:"saldo"`
	DiasMora int        `json:"dias_mora"`
	Interes  int64      `json:"interes"`
}

// MoraResult is the full mora picture for one member
type MoraResult struct {
	Detalles     []MoraDetalle `json:"detalles"`
	InteresTotal int64         `json:"interes_total"`
}

// CalcularMoraSocio computes overdue interest for a member's unpaid coupons
// (grace-period policy) and payment-plan installments (no grace). The
// configuration is loaded once for the whole batch.
func (s *Service) CalcularMoraSocio(ctx context.Context, socioID uuid.UUID, hoy time.Time) (*MoraResult, error) {
	cfg, err := s.repo.GetConfiguracion(ctx)
	if err != nil {
		return nil, err
	}

	cupones, err := s.repo.ListCuponesImpagosConSaldo(ctx, socioID)
	if err != nil {
		return nil, err
	}

	result := &MoraResult{}
	for _, c := range cupones {
		interes, err := InteresCupon(c.Saldo, c.FechaVencimiento, hoy, cfg)
		if err != nil {
			return nil, err
		}
		id := c.Cupon.ID
		result.Detalles = append(result.Detalles, MoraDetalle{
			CuponID:  &id,
			Saldo:    c.Saldo,
			DiasMora: DiasMoraCupon(c.FechaVencimiento, hoy, cfg.DiasGracia),
			Interes:  interes,
		})
		result.InteresTotal += interes
	}

	cuotas, err := s.repo.ListCuotasPlanBySocio(ctx, socioID)
	if err != nil {
		return nil, err
	}
	for _, q := range cuotas {
		if q.Estado == EstadoPagado || q.Saldo <= 0 {
			continue
		}
		interes, err := InteresCuota(q.Saldo, q.FechaVencimiento, hoy, cfg)
		if err != nil {
			return nil, err
		}
		id := q.ID
		result.Detalles = append(result.Detalles, MoraDetalle{
			CuotaID:  &id,
			Saldo:    q.Saldo,
			DiasMora: DiasMoraCuota(q.FechaVencimiento, hoy),
			Interes:  interes,
		})
		result.InteresTotal += interes
	}

	return result, nil
}

// MarcarVencidos transitions past-due pendiente coupons to vencido
func (s *Service) MarcarVencidos(ctx context.Context, hoy time.Time) (int64, error) {
	n, err := s.repo.MarcarVencidos(ctx, hoy)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("cupones vencidos", "cantidad", n)
	}
	return n, nil
}
