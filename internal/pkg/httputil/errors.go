package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/mynaner/zero2prod/internal/pkg/ctxlog"
	"github.com/mynaner/zero2prod/internal/pkg/errchain"
)

// ErrorMapping defines how a domain error maps to an HTTP response.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string // if empty, uses err.Error()
	// Headers are set on the response before the status is written.
	Headers map[string]string
}

// HandleError maps a domain error to an HTTP response using provided mappings.
// Server errors, mapped or not, are logged together with their cause chain.
// If no mapping matches, the response is 500 Internal Server Error.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	for _, m := range mappings {
		if errors.Is(err, m.Error) {
			msg := m.Message
			if msg == "" {
				msg = err.Error()
			}
			for k, v := range m.Headers {
				w.Header().Set(k, v)
			}
			if m.Status >= http.StatusInternalServerError {
				ctxlog.FromContext(ctx).Error("request failed",
					"status", m.Status,
					"error", errchain.Format(err),
				)
			}
			Error(w, m.Status, msg)
			return
		}
	}
	ctxlog.FromContext(ctx).Error("internal error", "error", errchain.Format(err))
	Error(w, http.StatusInternalServerError, "internal error")
}
