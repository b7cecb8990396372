// Package handler exposes coupon generation, item maintenance and mora
// queries over JSON HTTP.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clubnautico/gestion/internal/domain/common"
	"github.com/clubnautico/gestion/internal/domain/cupon"
)

// CuponHandler serves the coupon endpoints
type CuponHandler struct {
	repo   cupon.Repository
	svc    *cupon.Service
	logger *slog.Logger
}

// NewCuponHandler constructs a new handler
func NewCuponHandler(repo cupon.Repository, svc *cupon.Service, logger *slog.Logger) *CuponHandler {
	return &CuponHandler{repo: repo, svc: svc, logger: logger}
}

// RegisterRoutes registers the coupon routes on the mux
func (h *CuponHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/cupones/generar", h.Generar)
	mux.HandleFunc("POST /api/cupones/vencer", h.MarcarVencidos)
	mux.HandleFunc("GET /api/cupones/{id}", h.GetCupon)
	mux.HandleFunc("POST /api/cupones/{id}/items", h.AddItem)
	mux.HandleFunc("PUT /api/cupones/items/{id}", h.UpdateItem)
	mux.HandleFunc("DELETE /api/cupones/items/{id}", h.DeleteItem)
	mux.HandleFunc("GET /api/socios/{id}/cupones", h.ListBySocio)
	mux.HandleFunc("GET /api/socios/{id}/mora", h.Mora)
}

type generarRequest struct {
	Anio             int    `json:"anio"`
	Mes              int    `json:"mes"`
	FechaEmision     string `json:"fecha_emision"`
	FechaVencimiento string `json:"fecha_vencimiento"`
}

// Generar runs the monthly coupon generation for every active member
func (h *CuponHandler) Generar(w http.ResponseWriter, r *http.Request) {
	var req generarRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, err)
		return
	}

	emision, err := parseFecha(req.FechaEmision)
	if err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid fecha_emision"))
		return
	}
	vencimiento, err := parseFecha(req.FechaVencimiento)
	if err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid fecha_vencimiento"))
		return
	}

	result, err := h.svc.GenerarCuponesMensuales(r.Context(), req.Anio, req.Mes, emision, vencimiento)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusOK, result)
}

type vencerRequest struct {
	Fecha string `json:"fecha,omitempty"` // defaults to today
}

// MarcarVencidos transitions past-due coupons to vencido
func (h *CuponHandler) MarcarVencidos(w http.ResponseWriter, r *http.Request) {
	var req vencerRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, err)
		return
	}

	hoy := time.Now().UTC()
	if req.Fecha != "" {
		parsed, err := parseFecha(req.Fecha)
		if err != nil {
			common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid fecha"))
			return
		}
		hoy = parsed
	}

	n, err := h.svc.MarcarVencidos(r.Context(), hoy)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusOK, map[string]int64{"vencidos": n})
}

type cuponResponse struct {
	*cupon.Cupon
	Items []*cupon.ItemCupon `json:"items"`
}

// GetCupon returns one coupon with its line items
func (h *CuponHandler) GetCupon(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid cupon id"))
		return
	}

	c, err := h.repo.GetCuponByID(r.Context(), id)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	items, err := h.repo.ListItems(r.Context(), id)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusOK, cuponResponse{Cupon: c, Items: items})
}

type itemRequest struct {
	Concepto string `json:"concepto"`
	Subtotal int64  `json:"subtotal"`
}

// AddItem appends a line item to a coupon, recomputing its total
func (h *CuponHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	cuponID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid cupon id"))
		return
	}

	var req itemRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if req.Concepto == "" || req.Subtotal <= 0 {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("concepto and positive subtotal are required"))
		return
	}

	item := &cupon.ItemCupon{CuponID: cuponID, Concepto: req.Concepto, Subtotal: req.Subtotal}
	if err := h.repo.AddItem(r.Context(), item); err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusCreated, item)
}

// UpdateItem changes a line item's concept or subtotal
func (h *CuponHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid item id"))
		return
	}

	var req itemRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if req.Concepto == "" || req.Subtotal <= 0 {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("concepto and positive subtotal are required"))
		return
	}

	item := &cupon.ItemCupon{ID: itemID, Concepto: req.Concepto, Subtotal: req.Subtotal}
	if err := h.repo.UpdateItem(r.Context(), item); err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusOK, item)
}

// DeleteItem removes a line item, recomputing the coupon total
func (h *CuponHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid item id"))
		return
	}
	if err := h.repo.DeleteItem(r.Context(), itemID); err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusNoContent, nil)
}

// ListBySocio lists a member's coupons, newest period first
func (h *CuponHandler) ListBySocio(w http.ResponseWriter, r *http.Request) {
	socioID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid socio id"))
		return
	}
	cupones, err := h.repo.ListCuponesBySocio(r.Context(), socioID)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusOK, cupones)
}

// Mora computes the member's overdue interest as of ?fecha= (default today)
func (h *CuponHandler) Mora(w http.ResponseWriter, r *http.Request) {
	socioID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid socio id"))
		return
	}

	hoy := time.Now().UTC()
	if raw := r.URL.Query().Get("fecha"); raw != "" {
		parsed, err := parseFecha(raw)
		if err != nil {
			common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid fecha"))
			return
		}
		hoy = parsed
	}

	result, err := h.svc.CalcularMoraSocio(r.Context(), socioID, hoy)
	if err != nil {
		if errors.Is(err, cupon.ErrInvalidConfig) {
			common.WriteErrorStatus(w, h.logger, http.StatusUnprocessableEntity, err)
			return
		}
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusOK, result)
}

func parseFecha(raw string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", raw, time.UTC)
}
