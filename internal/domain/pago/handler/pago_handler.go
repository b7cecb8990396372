// Package handler exposes manual payment registration and allocation
// queries over JSON HTTP.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clubnautico/gestion/internal/domain/common"
	"github.com/clubnautico/gestion/internal/domain/pago"
)

// PagoHandler serves the payment endpoints
type PagoHandler struct {
	repo   pago.Repository
	logger *slog.Logger
}

// NewPagoHandler constructs a new handler
func NewPagoHandler(repo pago.Repository, logger *slog.Logger) *PagoHandler {
	return &PagoHandler{repo: repo, logger: logger}
}

// RegisterRoutes registers the payment routes on the mux
func (h *PagoHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/pagos", h.Registrar)
	mux.HandleFunc("GET /api/pagos/{id}", h.GetPago)
	mux.HandleFunc("GET /api/pagos/{id}/aplicaciones", h.ListAplicaciones)
	mux.HandleFunc("DELETE /api/pagos/{id}", h.Eliminar)
	mux.HandleFunc("DELETE /api/pagos/aplicaciones/{id}", h.EliminarAplicacion)
	mux.HandleFunc("GET /api/socios/{id}/pagos", h.ListBySocio)
}

type registrarRequest struct {
	SocioID     uuid.UUID `json:"socio_id"`
	FechaPago   string    `json:"fecha_pago"`
	Monto       int64     `json:"monto"`
	Medio       string    `json:"medio"`
	Comprobante *string   `json:"comprobante,omitempty"`
}

// Registrar records a manual payment (cash, cheque, counter transfer) and
// allocates it against the member's outstanding coupons oldest-first.
func (h *PagoHandler) Registrar(w http.ResponseWriter, r *http.Request) {
	var req registrarRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if req.SocioID == uuid.Nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("socio_id is required"))
		return
	}
	if req.Monto <= 0 {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("monto must be positive"))
		return
	}

	fechaPago := time.Now().UTC()
	if req.FechaPago != "" {
		parsed, err := time.ParseInLocation("2006-01-02", req.FechaPago, time.UTC)
		if err != nil {
			common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid fecha_pago"))
			return
		}
		fechaPago = parsed
	}

	medio := req.Medio
	if medio == "" {
		medio = pago.MedioEfectivo
	}

	p := &pago.Pago{
		SocioID:            req.SocioID,
		FechaPago:          fechaPago,
		Monto:              req.Monto,
		Medio:              medio,
		Comprobante:        req.Comprobante,
		EstadoConciliacion: pago.ConciliacionPendiente,
	}
	aplicacion, err := h.repo.RegistrarPago(r.Context(), p)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusCreated, aplicacion)
}

// GetPago returns one payment by id
func (h *PagoHandler) GetPago(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid pago id"))
		return
	}
	p, err := h.repo.GetPagoByID(r.Context(), id)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusOK, p)
}

// ListAplicaciones returns the coupon allocations of one payment
func (h *PagoHandler) ListAplicaciones(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid pago id"))
		return
	}
	aplicaciones, err := h.repo.ListAplicaciones(r.Context(), id)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusOK, aplicaciones)
}

// Eliminar removes a payment and reverts the paid state of its coupons
func (h *PagoHandler) Eliminar(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid pago id"))
		return
	}
	if err := h.repo.EliminarPago(r.Context(), id); err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusNoContent, nil)
}

// EliminarAplicacion removes one allocation slice, reverting its coupon
func (h *PagoHandler) EliminarAplicacion(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid aplicacion id"))
		return
	}
	if err := h.repo.EliminarAplicacion(r.Context(), id); err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusNoContent, nil)
}

// ListBySocio lists a member's payments, newest first
func (h *PagoHandler) ListBySocio(w http.ResponseWriter, r *http.Request) {
	socioID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid socio id"))
		return
	}
	pagos, err := h.repo.ListPagosBySocio(r.Context(), socioID)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusOK, pagos)
}
