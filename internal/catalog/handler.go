package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/MelihSuissefocus/Depotix/internal/platform/httpx"
	"github.com/MelihSuissefocus/Depotix/internal/shared"
)

// Handler exposes catalog CRUD over HTTP.
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler returns a catalog HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, validate: validator.New(), logger: logger}
}

// Routes mounts the catalog endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/items", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.remove)
	})
}

type createItemRequest struct {
	Name              string `json:"name" validate:"required,max=200"`
	SKU               string `json:"sku" validate:"required,max=64"`
	Description       string `json:"description" validate:"max=2000"`
	PackagesPerPallet int64  `json:"packages_per_pallet" validate:"required,gte=1"`
	UnitsPerPackage   int64  `json:"units_per_package" validate:"omitempty,gte=1"`
	MinStockLevel     int64  `json:"min_stock_level" validate:"gte=0"`
}

type updateItemRequest struct {
	Name              *string `json:"name" validate:"omitempty,max=200"`
	Description       *string `json:"description" validate:"omitempty,max=2000"`
	PackagesPerPallet *int64  `json:"packages_per_pallet" validate:"omitempty,gte=1"`
	UnitsPerPackage   *int64  `json:"units_per_package" validate:"omitempty,gte=1"`
	MinStockLevel     *int64  `json:"min_stock_level" validate:"omitempty,gte=0"`
	IsActive          *bool   `json:"is_active"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req createItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.Create(r.Context(), identity.UserID, CreateItemInput{
		OwnerID:           identity.UserID,
		Name:              req.Name,
		SKU:               req.SKU,
		Description:       req.Description,
		PackagesPerPallet: req.PackagesPerPallet,
		UnitsPerPackage:   req.UnitsPerPackage,
		MinStockLevel:     req.MinStockLevel,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	itemID, err := itemIDParam(r)
	if err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", "invalid item id")
		return
	}
	var req updateItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.Update(r.Context(), identity.UserID, ownerScope(identity), itemID, UpdateItemInput{
		Name:              req.Name,
		Description:       req.Description,
		PackagesPerPallet: req.PackagesPerPallet,
		UnitsPerPackage:   req.UnitsPerPackage,
		MinStockLevel:     req.MinStockLevel,
		IsActive:          req.IsActive,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	itemID, err := itemIDParam(r)
	if err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", "invalid item id")
		return
	}
	item, err := h.service.Get(r.Context(), ownerScope(identity), itemID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	activeOnly := r.URL.Query().Get("active") != "0"
	items, err := h.service.List(r.Context(), ownerScope(identity), activeOnly)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	itemID, err := itemIDParam(r)
	if err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", "invalid item id")
		return
	}
	if err := h.service.Delete(r.Context(), identity.UserID, ownerScope(identity), itemID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.ProblemCode(w, http.StatusNotFound, httpx.CodeNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		httpx.ProblemCode(w, http.StatusConflict, httpx.CodeDuplicate, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrInvalidInput):
		httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", err.Error())
	default:
		h.logger.Error("catalog request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func itemIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.ErrInvalidInput
	}
	return id, nil
}

func ownerScope(id shared.Identity) int64 {
	if id.Staff {
		return 0
	}
	return id.UserID
}
