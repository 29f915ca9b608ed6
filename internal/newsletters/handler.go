package newsletters

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mynaner/zero2prod/internal/identity"
	"github.com/mynaner/zero2prod/internal/pkg/ctxlog"
	"github.com/mynaner/zero2prod/internal/pkg/httputil"
)

// Realm is advertised in the WWW-Authenticate challenge.
const Realm = "publish"

var challenge = map[string]string{"WWW-Authenticate": `Basic realm="` + Realm + `"`}

// Handler handles HTTP requests for the newsletters module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new newsletters handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers newsletter routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/newsletters", h.Publish)
}

// PublishRequest is the body of POST /newsletters.
type PublishRequest struct {
	Title   string         `json:"title" validate:"required"`
	Content ContentRequest `json:"content"`
}

// ContentRequest holds both renderings of an issue.
type ContentRequest struct {
	HTML string `json:"html" validate:"required"`
	Text string `json:"text" validate:"required"`
}

var publishErrors = []httputil.ErrorMapping{
	{Error: httputil.ErrMissingCredentials, Status: http.StatusUnauthorized, Message: "authentication required", Headers: challenge},
	{Error: httputil.ErrMalformedCredentials, Status: http.StatusUnauthorized, Message: "authentication required", Headers: challenge},
	{Error: identity.ErrAuthFailed, Status: http.StatusUnauthorized, Message: identity.ErrAuthFailed.Error(), Headers: challenge},
	{Error: ErrDelivery, Status: http.StatusInternalServerError, Message: ErrDelivery.Error()},
	{Error: ErrStorage, Status: http.StatusInternalServerError, Message: ErrStorage.Error()},
	{Error: identity.ErrStorage, Status: http.StatusInternalServerError, Message: "failed to verify credentials"},
	{Error: identity.ErrVerifier, Status: http.StatusServiceUnavailable, Message: "failed to verify credentials"},
}

// Publish handles POST /newsletters. Credentials are checked before the
// body is read.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	creds, err := httputil.BasicCredentials(r)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, publishErrors)
		return
	}
	ctx := ctxlog.With(r.Context(), "username", creds.Username)

	var req PublishRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	report, err := h.service.Publish(ctx, creds, Issue{
		Title:    req.Title,
		HTMLBody: req.Content.HTML,
		TextBody: req.Content.Text,
	})
	if err != nil {
		httputil.HandleError(ctx, w, err, publishErrors)
		return
	}

	httputil.Success(w, http.StatusOK, report)
}

