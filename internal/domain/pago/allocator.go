package pago

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrOverAllocation means an allocation would exceed either a coupon's
// outstanding balance or the payment's remaining amount. It is an invariant
// violation: the enclosing transaction must roll back with no partial writes.
var ErrOverAllocation = errors.New("allocation exceeds outstanding balance or payment amount")

const insertPagoQuery = `
	INSERT INTO pagos (id, socio_id, fecha_pago, monto, medio, comprobante, estado_conciliacion, movimiento_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// InsertarPagoTx inserts a payment inside an existing transaction
func InsertarPagoTx(ctx context.Context, tx pgx.Tx, p *Pago) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.EstadoConciliacion == "" {
		p.EstadoConciliacion = ConciliacionPendiente
	}

	_, err := tx.Exec(ctx, insertPagoQuery,
		p.ID, p.SocioID, p.FechaPago, p.Monto, p.Medio, p.Comprobante,
		p.EstadoConciliacion, p.MovimientoID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert pago: %w", err)
	}
	return nil
}

// Locks the member's open coupons for the duration of the transaction.
// Two concurrent allocations against the same member serialize here,
// otherwise both could spend the same outstanding balance.
const lockCuponesQuery = `
	SELECT id, monto_total, fecha_vencimiento
	FROM cupones
	WHERE socio_id = $1 AND estado IN ('pendiente', 'vencido')
	ORDER BY fecha_vencimiento
	FOR UPDATE
`

const aplicadoPorCuponQuery = `
	SELECT cupon_id, COALESCE(SUM(monto_aplicado), 0)
	FROM pagos_cupones
	WHERE cupon_id = ANY($1)
	GROUP BY cupon_id
`

const insertPagoCuponQuery = `
	INSERT INTO pagos_cupones (id, pago_id, cupon_id, monto_aplicado)
	VALUES ($1, $2, $3, $4)
`

const marcarCuponPagadoQuery = `
	UPDATE cupones SET estado = 'pagado', fecha_pago = $2, updated_at = NOW() WHERE id = $1
`

type cuponAbierto struct {
	id               uuid.UUID
	montoTotal       int64
	fechaVencimiento time.Time
}

// AplicarPagoACuponesTx allocates a payment amount across the member's
// outstanding coupons oldest-first (FIFO against debt), inside an existing
// transaction. Each coupon receives min(remaining, outstanding balance); a
// fully covered coupon transitions to pagado with fecha_pago set. Any
// leftover is returned as member credit, not an error.
func AplicarPagoACuponesTx(ctx context.Context, tx pgx.Tx, pagoID, socioID uuid.UUID, monto int64, fechaPago time.Time) (*Aplicacion, error) {
	if monto <= 0 {
		return nil, fmt.Errorf("monto must be positive: %d", monto)
	}

	abiertos, err := lockCupones(ctx, tx, socioID)
	if err != nil {
		return nil, err
	}

	aplicado, err := aplicadoPorCupon(ctx, tx, abiertos)
	if err != nil {
		return nil, err
	}

	result := &Aplicacion{PagoID: pagoID}
	restante := monto

	for _, c := range abiertos {
		if restante == 0 {
			break
		}

		saldo := c.montoTotal - aplicado[c.id]
		if saldo < 0 {
			return nil, fmt.Errorf("cupon %s over-applied: %w", c.id, ErrOverAllocation)
		}
		if saldo == 0 {
			// Fully covered but still open; nothing left to allocate here.
			continue
		}

		aplicar := min(restante, saldo)
		if aplicar > restante || aplicar > saldo {
			return nil, ErrOverAllocation
		}

		pc := PagoCupon{
			ID:            uuid.New(),
			PagoID:        pagoID,
			CuponID:       c.id,
			MontoAplicado: aplicar,
		}
		if _, err := tx.Exec(ctx, insertPagoCuponQuery, pc.ID, pc.PagoID, pc.CuponID, pc.MontoAplicado); err != nil {
			return nil, fmt.Errorf("failed to insert pago_cupon: %w", err)
		}

		restante -= aplicar
		result.MontoAplicado += aplicar
		result.Aplicaciones = append(result.Aplicaciones, pc)

		if aplicado[c.id]+aplicar >= c.montoTotal {
			if _, err := tx.Exec(ctx, marcarCuponPagadoQuery, c.id, fechaPago); err != nil {
				return nil, fmt.Errorf("failed to mark cupon pagado: %w", err)
			}
			result.CuponesPagados++
		}
	}

	result.Credito = restante
	if result.MontoAplicado > monto {
		return nil, ErrOverAllocation
	}
	return result, nil
}

func lockCupones(ctx context.Context, tx pgx.Tx, socioID uuid.UUID) ([]cuponAbierto, error) {
	rows, err := tx.Query(ctx, lockCuponesQuery, socioID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock cupones: %w", err)
	}
	defer rows.Close()

	var abiertos []cuponAbierto
	for rows.Next() {
		var c cuponAbierto
		if err := rows.Scan(&c.id, &c.montoTotal, &c.fechaVencimiento); err != nil {
			return nil, fmt.Errorf("failed to scan cupon: %w", err)
		}
		abiertos = append(abiertos, c)
	}
	return abiertos, rows.Err()
}

func aplicadoPorCupon(ctx context.Context, tx pgx.Tx, abiertos []cuponAbierto) (map[uuid.UUID]int64, error) {
	aplicado := make(map[uuid.UUID]int64, len(abiertos))
	if len(abiertos) == 0 {
		return aplicado, nil
	}

	ids := make([]uuid.UUID, len(abiertos))
	for i, c := range abiertos {
		ids[i] = c.id
	}

	rows, err := tx.Query(ctx, aplicadoPorCuponQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied amounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var sum int64
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan applied amount: %w", err)
		}
		aplicado[id] = sum
	}
	return aplicado, rows.Err()
}

// recomputeCuponEstadoQuery reverts a coupon to pendiente (clearing
// fecha_pago) when its applied total drops below monto_total, and settles
// it as pagado otherwise.
const recomputeCuponEstadoQuery = `
	UPDATE cupones c SET
		estado = CASE
			WHEN COALESCE((SELECT SUM(pc.monto_aplicado) FROM pagos_cupones pc WHERE pc.cupon_id = c.id), 0) >= c.monto_total
			THEN 'pagado' ELSE 'pendiente' END,
		fecha_pago = CASE
			WHEN COALESCE((SELECT SUM(pc.monto_aplicado) FROM pagos_cupones pc WHERE pc.cupon_id = c.id), 0) >= c.monto_total
			THEN c.fecha_pago ELSE NULL END,
		updated_at = NOW()
	WHERE c.id = $1 AND c.estado IN ('pendiente', 'vencido', 'pagado')
`

// RecomputeCuponEstadoTx re-derives a coupon's paid state after an
// allocation was removed.
func RecomputeCuponEstadoTx(ctx context.Context, tx pgx.Tx, cuponID uuid.UUID) error {
	if _, err := tx.Exec(ctx, recomputeCuponEstadoQuery, cuponID); err != nil {
		return fmt.Errorf("failed to recompute cupon estado: %w", err)
	}
	return nil
}
