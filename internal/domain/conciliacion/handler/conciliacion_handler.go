// Package handler exposes the reconciliation workflow over JSON HTTP.
package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/clubnautico/gestion/internal/domain/common"
	"github.com/clubnautico/gestion/internal/domain/conciliacion/parser"
	"github.com/clubnautico/gestion/internal/domain/conciliacion/repository"
	"github.com/clubnautico/gestion/internal/domain/conciliacion/service"
)

const maxExtractoBytes = 10 << 20 // 10 MiB

// ConciliacionHandler serves the import and movement-resolution endpoints
type ConciliacionHandler struct {
	svc    *service.Service
	logger *slog.Logger
}

// NewConciliacionHandler constructs a new handler
func NewConciliacionHandler(svc *service.Service, logger *slog.Logger) *ConciliacionHandler {
	return &ConciliacionHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers the reconciliation routes on the mux
func (h *ConciliacionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/conciliacion/importar", h.Importar)
	mux.HandleFunc("GET /api/movimientos", h.ListMovimientos)
	mux.HandleFunc("GET /api/movimientos/{id}", h.GetMovimiento)
	mux.HandleFunc("POST /api/movimientos/{id}/confirmar", h.Confirmar)
	mux.HandleFunc("POST /api/movimientos/{id}/resolver", h.Resolver)
	mux.HandleFunc("POST /api/movimientos/{id}/descartar", h.Descartar)
}

// Importar ingests a bank extract upload. Multipart uploads send the file
// as "archivo" with a "banco" form value; raw bodies pass ?banco= instead.
func (h *ConciliacionHandler) Importar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxExtractoBytes)

	data, banco, err := h.leerExtracto(r)
	if err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.svc.ImportarExtracto(r.Context(), data, banco)
	if err != nil {
		switch {
		case errors.Is(err, parser.ErrFormatoDesconocido), errors.Is(err, parser.ErrExtractoVacio):
			common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, err)
		default:
			common.WriteError(w, h.logger, err)
		}
		return
	}
	common.WriteJSON(w, h.logger, http.StatusOK, result)
}

func (h *ConciliacionHandler) leerExtracto(r *http.Request) ([]byte, string, error) {
	if file, _, err := r.FormFile("archivo"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, "", err
		}
		banco := r.FormValue("banco")
		if banco == "" {
			return nil, "", errors.New("banco is required")
		}
		return data, banco, nil
	}

	banco := r.URL.Query().Get("banco")
	if banco == "" {
		return nil, "", errors.New("banco is required")
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", err
	}
	return data, banco, nil
}

// ListMovimientos lists movements, filterable by ?estado= and ?nivel=
func (h *ConciliacionHandler) ListMovimientos(w http.ResponseWriter, r *http.Request) {
	filtro := repository.Filtro{
		Estado: r.URL.Query().Get("estado"),
		Nivel:  r.URL.Query().Get("nivel"),
	}
	movimientos, err := h.svc.ListMovimientos(r.Context(), filtro)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusOK, movimientos)
}

// GetMovimiento returns one movement by id
func (h *ConciliacionHandler) GetMovimiento(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid movimiento id"))
		return
	}
	mov, err := h.svc.GetMovimiento(r.Context(), id)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusOK, mov)
}

type confirmarRequest struct {
	SocioID *uuid.UUID `json:"socio_id,omitempty"`
	Medio   string     `json:"medio,omitempty"`
}

// Confirmar turns a matched movement into an allocated payment. The body is
// optional: an empty body confirms the matcher's proposal.
func (h *ConciliacionHandler) Confirmar(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid movimiento id"))
		return
	}

	var req confirmarRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, err)
		return
	}

	aplicacion, err := h.svc.Confirmar(r.Context(), id, req.SocioID, req.Medio)
	if err != nil {
		if errors.Is(err, repository.ErrNoConfirmable) {
			common.WriteErrorStatus(w, h.logger, http.StatusConflict, err)
			return
		}
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusOK, aplicacion)
}

type resolverRequest struct {
	SocioID uuid.UUID `json:"socio_id"`
}

// Resolver manually assigns a member to a movement without confirming it
func (h *ConciliacionHandler) Resolver(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid movimiento id"))
		return
	}

	var req resolverRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if req.SocioID == uuid.Nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("socio_id is required"))
		return
	}

	if err := h.svc.Resolver(r.Context(), id, req.SocioID); err != nil {
		if errors.Is(err, repository.ErrNoConfirmable) {
			common.WriteErrorStatus(w, h.logger, http.StatusConflict, err)
			return
		}
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusNoContent, nil)
}

// Descartar rejects a movement as not club-related
func (h *ConciliacionHandler) Descartar(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid movimiento id"))
		return
	}
	if err := h.svc.Descartar(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNoConfirmable) {
			common.WriteErrorStatus(w, h.logger, http.StatusConflict, err)
			return
		}
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusNoContent, nil)
}
