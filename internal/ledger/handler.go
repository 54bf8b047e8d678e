package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/MelihSuissefocus/Depotix/internal/platform/httpx"
	"github.com/MelihSuissefocus/Depotix/internal/shared"
)

// Handler exposes the ledger over HTTP.
type Handler struct {
	service  *Service
	reversal *Reversal
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler returns a ledger HTTP handler.
func NewHandler(service *Service, reversal *Reversal, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:  service,
		reversal: reversal,
		validate: validator.New(),
		logger:   logger,
	}
}

// Routes mounts the ledger endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/stock", func(r chi.Router) {
		r.Post("/movements", h.submit(""))
		r.Post("/in", h.submit(MovementIn))
		r.Post("/out", h.submit(MovementOut))
		r.Post("/return", h.submit(MovementReturn))
		r.Post("/defect", h.submit(MovementDefect))
		r.Post("/adjust", h.submit(MovementAdjust))
		r.Get("/movements", h.list)
		r.Delete("/movements/{id}", h.reverse)
		r.Get("/low-stock", h.lowStock)
	})
	r.Route("/api/items/{id}", func(r chi.Router) {
		r.Get("/balance", h.balance)
		r.Get("/low-stock", h.lowStockFlag)
	})
}

type movementRequest struct {
	ItemID   int64  `json:"item_id" validate:"required,gt=0"`
	Type     string `json:"type" validate:"omitempty,oneof=IN OUT RETURN DEFECT ADJUST"`
	Unit     string `json:"unit" validate:"required,oneof=pallet package"`
	Quantity int64  `json:"qty" validate:"required"`

	QtyPallets  *int64 `json:"qty_pallets"`
	QtyPackages *int64 `json:"qty_packages"`
	QtyBase     *int64 `json:"qty_base"`

	IdempotencyKey string     `json:"idempotency_key" validate:"omitempty,max=64"`
	SupplierID     *int64     `json:"supplier_id"`
	CustomerID     *int64     `json:"customer_id"`
	PurchasePrice  *float64   `json:"purchase_price"`
	Note           string     `json:"note" validate:"max=1000"`
	MovementTS     *time.Time `json:"movement_ts"`
}

type movementResponse struct {
	ID                int64     `json:"id"`
	ItemID            int64     `json:"item_id"`
	Type              string    `json:"type"`
	Unit              string    `json:"unit"`
	Quantity          int64     `json:"qty"`
	PackagesPerPallet int64     `json:"packages_per_pallet"`
	IdempotencyKey    string    `json:"idempotency_key"`
	SupplierID        *int64    `json:"supplier_id,omitempty"`
	CustomerID        *int64    `json:"customer_id,omitempty"`
	OrderID           *int64    `json:"order_id,omitempty"`
	Note              string    `json:"note,omitempty"`
	MovementTS        time.Time `json:"movement_ts"`
	CreatedAt         time.Time `json:"created_at"`
}

func toMovementResponse(m Movement) movementResponse {
	return movementResponse{
		ID:                m.ID,
		ItemID:            m.ItemID,
		Type:              string(m.Type),
		Unit:              string(m.Unit),
		Quantity:          m.Quantity,
		PackagesPerPallet: m.PackagesPerPallet,
		IdempotencyKey:    m.IdempotencyKey,
		SupplierID:        m.SupplierID,
		CustomerID:        m.CustomerID,
		OrderID:           m.OrderID,
		Note:              m.Note,
		MovementTS:        m.MovementTimestamp,
		CreatedAt:         m.CreatedAt,
	}
}

// submit returns a handler posting a movement. When fixed is non-empty the
// route pins the movement type and the body's type field is ignored.
func (h *Handler) submit(fixed MovementType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := shared.IdentityFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}

		var req movementRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", "invalid JSON body")
			return
		}
		movementType := fixed
		if movementType == "" {
			movementType = MovementType(req.Type)
		}
		if err := h.validate.Struct(req); err != nil {
			httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", err.Error())
			return
		}

		in := MovementInput{
			OwnerID:        ownerScope(identity),
			ItemID:         req.ItemID,
			Type:           movementType,
			Unit:           Unit(req.Unit),
			Quantity:       req.Quantity,
			QtyPallets:     req.QtyPallets,
			QtyPackages:    req.QtyPackages,
			ClaimedBase:    req.QtyBase,
			IdempotencyKey: req.IdempotencyKey,
			SupplierID:     req.SupplierID,
			CustomerID:     req.CustomerID,
			PurchasePrice:  req.PurchasePrice,
			Note:           req.Note,
			ActorID:        identity.UserID,
		}
		if req.MovementTS != nil {
			in.MovementTimestamp = *req.MovementTS
		}

		m, replayed, err := h.service.SubmitMovement(r.Context(), in)
		if err != nil {
			h.respondLedgerError(w, err)
			return
		}
		status := http.StatusCreated
		if replayed {
			status = http.StatusOK
		}
		httpx.JSON(w, status, toMovementResponse(m))
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	itemID, _ := strconv.ParseInt(r.URL.Query().Get("item_id"), 10, 64)
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 32)
	movements, err := h.service.ListMovements(r.Context(), MovementFilter{
		OwnerID: ownerScope(identity),
		ItemID:  itemID,
		Type:    MovementType(r.URL.Query().Get("type")),
		Limit:   int32(limit),
	})
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	out := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, toMovementResponse(m))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": out})
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	movementID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || movementID <= 0 {
		httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", "invalid movement id")
		return
	}
	if err := h.reversal.ReverseMovement(r.Context(), ownerScope(identity), movementID, identity.UserID); err != nil {
		h.respondLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	itemID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || itemID <= 0 {
		httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", "invalid item id")
		return
	}
	balance, err := h.service.GetBalance(r.Context(), ownerScope(identity), itemID)
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

func (h *Handler) lowStockFlag(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	itemID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || itemID <= 0 {
		httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", "invalid item id")
		return
	}
	low, err := h.service.CheckLowStock(r.Context(), ownerScope(identity), itemID)
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"item_id": itemID, "low_stock": low})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	items, err := h.service.LowStockItems(r.Context(), ownerScope(identity))
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	type entry struct {
		ItemID        int64  `json:"item_id"`
		Name          string `json:"name"`
		SKU           string `json:"sku"`
		Total         int64  `json:"total_packages"`
		MinStockLevel int64  `json:"min_stock_level"`
	}
	out := make([]entry, 0, len(items))
	for _, it := range items {
		out = append(out, entry{
			ItemID:        it.ID,
			Name:          it.Name,
			SKU:           it.SKU,
			Total:         it.TotalPackages(),
			MinStockLevel: it.MinStockLevel,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out})
}

// respondLedgerError maps ledger domain errors onto the API error contract.
func (h *Handler) respondLedgerError(w http.ResponseWriter, err error) {
	var insufficient *InsufficientStockError
	var mismatch *ConversionMismatchError
	switch {
	case errors.As(err, &insufficient):
		httpx.JSON(w, http.StatusBadRequest, httpx.ProblemDetail{
			Title:  "Insufficient Stock",
			Status: http.StatusBadRequest,
			Detail: insufficient.Error(),
			Code:   httpx.CodeInsufficientStock,
			Fields: map[string]string{
				"available": strconv.FormatInt(insufficient.Available, 10),
				"requested": strconv.FormatInt(insufficient.Requested, 10),
				"unit":      string(insufficient.Unit),
			},
		})
	case errors.As(err, &mismatch):
		httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeConversion, "Conversion Mismatch", mismatch.Error())
	case errors.Is(err, ErrManualReviewRequired):
		httpx.ProblemCode(w, http.StatusConflict, httpx.CodeManualReview, "Manual Review Required", err.Error())
	case errors.Is(err, ErrItemNotFound), errors.Is(err, ErrMovementNotFound):
		httpx.ProblemCode(w, http.StatusNotFound, httpx.CodeNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrUnknownMovementType),
		errors.Is(err, ErrUnknownUnit),
		errors.Is(err, ErrInvalidFactor),
		errors.Is(err, ErrMissingCounterpart),
		errors.Is(err, ErrMissingProvenance),
		errors.Is(err, ErrMissingJustification):
		httpx.ProblemCode(w, http.StatusBadRequest, httpx.CodeValidation, "Validation Failed", err.Error())
	default:
		h.logger.Error("ledger request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

// ownerScope translates an identity into the repository owner filter. Staff
// actors see every owner's items.
func ownerScope(id shared.Identity) int64 {
	if id.Staff {
		return 0
	}
	return id.UserID
}
