package orders

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/MelihSuissefocus/Depotix/internal/ledger"
	"github.com/MelihSuissefocus/Depotix/internal/platform/httpx"
	"github.com/MelihSuissefocus/Depotix/internal/shared"
)

// Handler exposes the order lifecycle over HTTP.
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler returns an orders HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, validate: validator.New(), logger: logger}
}

// Routes mounts the order endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Post("/{id}/confirm", h.confirm)
		r.Post("/{id}/deliver", h.deliver)
		r.Delete("/{id}", h.remove)
	})
}

type createOrderRequest struct {
	CustomerID   int64      `json:"customer_id" validate:"required,gt=0"`
	DeliveryDate *time.Time `json:"delivery_date"`
	Notes        string     `json:"notes" validate:"max=1000"`
	Lines        []struct {
		ItemID      int64 `json:"item_id" validate:"required,gt=0"`
		QtyPackages int64 `json:"qty_packages" validate:"required,gt=0"`
	} `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", err.Error())
		return
	}
	lines := make([]Line, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, Line{ItemID: l.ItemID, QtyPackages: l.QtyPackages})
	}
	o, err := h.service.Create(r.Context(), CreateOrderInput{
		OwnerID:      identity.UserID,
		CustomerID:   req.CustomerID,
		DeliveryDate: req.DeliveryDate,
		Notes:        req.Notes,
		Lines:        lines,
		ActorID:      identity.UserID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, o)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	orderID, err := idParam(r)
	if err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", "invalid order id")
		return
	}
	o, err := h.service.Get(r.Context(), ownerScope(identity), orderID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	out, err := h.service.List(r.Context(), ownerScope(identity), Status(r.URL.Query().Get("status")))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": out})
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Confirm)
}

func (h *Handler) deliver(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Deliver)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, actorID, ownerID, orderID int64) (Order, error)) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	orderID, err := idParam(r)
	if err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", "invalid order id")
		return
	}
	o, err := fn(r.Context(), identity.UserID, ownerScope(identity), orderID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	orderID, err := idParam(r)
	if err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", "invalid order id")
		return
	}
	if err := h.service.Delete(r.Context(), identity.UserID, ownerScope(identity), orderID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var insufficient *ledger.InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeInsufficientStock, "Insufficient Stock", insufficient.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.ProblemCode(w, http.StatusConflict, httpx.CodeBusinessRule, "Invalid Transition", err.Error())
	case errors.Is(err, ErrEmptyOrder), errors.Is(err, ErrUnknownCustomer), errors.Is(err, shared.ErrInvalidInput):
		httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", err.Error())
	case errors.Is(err, ledger.ErrManualReviewRequired):
		httpx.ProblemCode(w, http.StatusConflict, httpx.CodeManualReview, "Manual Review Required", err.Error())
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, ledger.ErrItemNotFound):
		httpx.ProblemCode(w, http.StatusNotFound, httpx.CodeNotFound, "Not Found", err.Error())
	default:
		h.logger.Error("orders request failed", slog.Any("error", err))
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
