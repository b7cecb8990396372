// Package handler exposes the member registry over JSON HTTP.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/clubnautico/gestion/internal/domain/common"
	"github.com/clubnautico/gestion/internal/domain/socio"
)

// SocioHandler serves the member registry endpoints
type SocioHandler struct {
	repo   socio.Repository
	logger *slog.Logger
}

// NewSocioHandler constructs a new handler
func NewSocioHandler(repo socio.Repository, logger *slog.Logger) *SocioHandler {
	return &SocioHandler{repo: repo, logger: logger}
}

// RegisterRoutes registers the member registry routes on the mux
func (h *SocioHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/socios", h.Create)
	mux.HandleFunc("GET /api/socios", h.List)
	mux.HandleFunc("GET /api/socios/{id}", h.Get)
	mux.HandleFunc("GET /api/socios/numero/{numero}", h.GetByNumero)
	mux.HandleFunc("PUT /api/socios/{id}", h.Update)
	mux.HandleFunc("GET /api/socios/{id}/keywords", h.ListKeywords)
	mux.HandleFunc("POST /api/socios/{id}/keywords", h.CreateKeyword)
	mux.HandleFunc("DELETE /api/keywords/{id}", h.DeleteKeyword)
}

type socioRequest struct {
	NumeroSocio int     `json:"numero_socio"`
	DNI         *string `json:"dni,omitempty"`
	CUIT        *string `json:"cuit_cuil,omitempty"`
	Apellido    string  `json:"apellido"`
	Nombre      string  `json:"nombre"`
	Email       *string `json:"email,omitempty"`
	Telefono    *string `json:"telefono,omitempty"`
	Estado      string  `json:"estado,omitempty"`
}

func (req *socioRequest) validate() error {
	if req.NumeroSocio <= 0 {
		return errors.New("numero_socio must be positive")
	}
	if req.Apellido == "" || req.Nombre == "" {
		return errors.New("apellido and nombre are required")
	}
	return nil
}

// Create registers a new member
func (h *SocioHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req socioRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if err := req.validate(); err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, err)
		return
	}

	estado := req.Estado
	if estado == "" {
		estado = socio.EstadoActivo
	}
	s := &socio.Socio{
		NumeroSocio: req.NumeroSocio,
		DNI:         req.DNI,
		CUIT:        req.CUIT,
		Apellido:    req.Apellido,
		Nombre:      req.Nombre,
		Email:       req.Email,
		Telefono:    req.Telefono,
		Estado:      estado,
	}
	if err := h.repo.CreateSocio(r.Context(), s); err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusCreated, s)
}

// List lists members, filterable by ?estado=
func (h *SocioHandler) List(w http.ResponseWriter, r *http.Request) {
	socios, err := h.repo.ListSocios(r.Context(), r.URL.Query().Get("estado"))
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusOK, socios)
}

// Get returns one member by id
func (h *SocioHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid socio id"))
		return
	}
	s, err := h.repo.GetSocioByID(r.Context(), id)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusOK, s)
}

// GetByNumero returns one member by their club number
func (h *SocioHandler) GetByNumero(w http.ResponseWriter, r *http.Request) {
	numero, err := strconv.Atoi(r.PathValue("numero"))
	if err != nil || numero <= 0 {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid numero_socio"))
		return
	}
	s, err := h.repo.GetSocioByNumero(r.Context(), numero)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusOK, s)
}

// Update replaces a member's registry data
func (h *SocioHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid socio id"))
		return
	}

	var req socioRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if err := req.validate(); err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if req.Estado == "" {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("estado is required"))
		return
	}

	s := &socio.Socio{
		ID:          id,
		NumeroSocio: req.NumeroSocio,
		DNI:         req.DNI,
		CUIT:        req.CUIT,
		Apellido:    req.Apellido,
		Nombre:      req.Nombre,
		Email:       req.Email,
		Telefono:    req.Telefono,
		Estado:      req.Estado,
	}
	if err := h.repo.UpdateSocio(r.Context(), s); err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusOK, s)
}

// ListKeywords lists a member's learned identity keywords
func (h *SocioHandler) ListKeywords(w http.ResponseWriter, r *http.Request) {
	socioID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid socio id"))
		return
	}
	keywords, err := h.repo.ListKeywordsBySocio(r.Context(), socioID)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusOK, keywords)
}

type keywordRequest struct {
	Tipo  string `json:"tipo"`
	Valor string `json:"valor"`
}

// CreateKeyword registers an identity keyword for a member
func (h *SocioHandler) CreateKeyword(w http.ResponseWriter, r *http.Request) {
	socioID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid socio id"))
		return
	}

	var req keywordRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if req.Valor == "" {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("valor is required"))
		return
	}
	tipo := req.Tipo
	if tipo == "" {
		tipo = socio.KeywordTipoCUIT
	}

	k := &socio.Keyword{SocioID: socioID, Tipo: tipo, Valor: req.Valor}
	if err := h.repo.CreateKeyword(r.Context(), k); err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusCreated, k)
}

// DeleteKeyword removes one learned keyword
func (h *SocioHandler) DeleteKeyword(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.WriteErrorStatus(w, h.logger, http.StatusBadRequest, errors.New("invalid keyword id"))
		return
	}
	if err := h.repo.DeleteKeyword(r.Context(), id); err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, h.logger, http.StatusNoContent, nil)
}
