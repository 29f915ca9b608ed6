package subscriptions

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mynaner/zero2prod/internal/domain"
	"github.com/mynaner/zero2prod/internal/pkg/httputil"
)

// Handler handles HTTP requests for the subscriptions module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new subscriptions handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers public subscription routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/subscriptions", h.Subscribe)
	r.Get(ConfirmPath, h.Confirm)
}

// SubscribeRequest is the form submitted by an applicant.
type SubscribeRequest struct {
	Name  string `validate:"required"`
	Email string `validate:"required"`
}

// ConfirmRequest carries the token from the confirmation link.
type ConfirmRequest struct {
	Token string `validate:"required"`
}

var subscribeErrors = []httputil.ErrorMapping{
	{Error: ErrInvalidSubscriber, Status: http.StatusBadRequest},
	{Error: ErrSubscriberExists, Status: http.StatusConflict},
	{Error: ErrNotification, Status: http.StatusInternalServerError, Message: ErrNotification.Error()},
	{Error: ErrStorage, Status: http.StatusInternalServerError, Message: "failed to save subscriber"},
}

var confirmErrors = []httputil.ErrorMapping{
	{Error: ErrTokenNotFound, Status: http.StatusUnauthorized, Message: ErrTokenNotFound.Error()},
	{Error: ErrStorage, Status: http.StatusInternalServerError, Message: "failed to confirm subscriber"},
}

// Subscribe handles POST /subscriptions with a urlencoded name and email.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid form body")
		return
	}

	req := SubscribeRequest{
		Name:  r.PostForm.Get("name"),
		Email: r.PostForm.Get("email"),
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	sub, err := h.service.Subscribe(r.Context(), SubscribeInput(req))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, subscribeErrors)
		return
	}

	httputil.Success(w, http.StatusOK, StatusResponse{Status: sub.Status})
}

// StatusResponse reports the subscription state without exposing the stored
// record.
type StatusResponse struct {
	Status domain.SubscriptionStatus `json:"status"`
}

// Confirm handles GET /subscriptions/confirm?subscription_token=...
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	req := ConfirmRequest{Token: r.URL.Query().Get(TokenParam)}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	if err := h.service.Confirm(r.Context(), req.Token); err != nil {
		httputil.HandleError(r.Context(), w, err, confirmErrors)
		return
	}

	httputil.Success(w, http.StatusOK, StatusResponse{Status: domain.StatusConfirmed})
}
