package partners

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

// Handler exposes supplier and customer CRUD over HTTP.
type Handler struct {
	suppliers *Service
	customers *Service
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewHandler returns a partners HTTP handler.
func NewHandler(suppliers, customers *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{suppliers: suppliers, customers: customers, validate: validator.New(), logger: logger}
}

// Routes mounts the partner endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/suppliers", h.kindRoutes(h.suppliers))
	r.Route("/api/customers", h.kindRoutes(h.customers))
}

func (h *Handler) kindRoutes(svc *Service) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", h.list(svc))
		r.Post("/", h.create(svc))
		r.Get("/{id}", h.get(svc))
		r.Put("/{id}", h.update(svc))
		r.Delete("/{id}", h.remove(svc))
	}
}

type partyRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	ContactName string `json:"contact_name" validate:"max=200"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone" validate:"max=50"`
	Address     string `json:"address" validate:"max=500"`
}

func (h *Handler) create(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := shared.IdentityFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		var req partyRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", "invalid JSON body")
			return
		}
		if err := h.validate.Struct(req); err != nil {
			httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", err.Error())
			return
		}
		p, err := svc.Create(r.Context(), identity.UserID, identity.UserID, PartyInput{
			Name:        req.Name,
			ContactName: req.ContactName,
			Email:       req.Email,
			Phone:       req.Phone,
			Address:     req.Address,
		})
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, p)
	}
}

func (h *Handler) update(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := shared.IdentityFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		id, err := idParam(r)
		if err != nil {
			httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", "invalid id")
			return
		}
		var req partyRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", "invalid JSON body")
			return
		}
		if err := h.validate.Struct(req); err != nil {
			httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", err.Error())
			return
		}
		p, err := svc.Update(r.Context(), identity.UserID, ownerScope(identity), id, PartyInput{
			Name:        req.Name,
			ContactName: req.ContactName,
			Email:       req.Email,
			Phone:       req.Phone,
			Address:     req.Address,
		})
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, p)
	}
}

func (h *Handler) get(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := shared.IdentityFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		id, err := idParam(r)
		if err != nil {
			httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", "invalid id")
			return
		}
		p, err := svc.Get(r.Context(), ownerScope(identity), id)
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, p)
	}
}

func (h *Handler) list(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := shared.IdentityFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		parties, err := svc.List(r.Context(), ownerScope(identity))
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"partners": parties})
	}
}

func (h *Handler) remove(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := shared.IdentityFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		id, err := idParam(r)
		if err != nil {
			httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", "invalid id")
			return
		}
		if err := svc.Delete(r.Context(), identity.UserID, ownerScope(identity), id); err != nil {
			h.respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.ProblemCode(w, http.StatusNotFound, httpx.CodeNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrInvalidInput):
		httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", err.Error())
	default:
		h.logger.Error("partners request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func idParam(r *http.Request) (int64, error) {
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
