package httputil

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basicHeader(userpass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(userpass))
}

func TestBasicCredentials(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantUser string
		wantPass string
		wantErr  error
	}{
		{name: "valid", header: basicHeader("ursula:secret"), wantUser: "ursula", wantPass: "secret"},
		{name: "lowercase scheme", header: "basic " + base64.StdEncoding.EncodeToString([]byte("a:b")), wantUser: "a", wantPass: "b"},
		{name: "colon in password", header: basicHeader("ursula:se:cret"), wantUser: "ursula", wantPass: "se:cret"},
		{name: "empty password", header: basicHeader("ursula:"), wantUser: "ursula", wantPass: ""},
		{name: "missing header", header: "", wantErr: ErrMissingCredentials},
		{name: "bearer scheme", header: "Bearer abc", wantErr: ErrMalformedCredentials},
		{name: "no credentials part", header: "Basic", wantErr: ErrMalformedCredentials},
		{name: "bad base64", header: "Basic !!!", wantErr: ErrMalformedCredentials},
		{name: "no colon", header: basicHeader("ursula"), wantErr: ErrMalformedCredentials},
		{name: "invalid utf8", header: "Basic " + base64.StdEncoding.EncodeToString([]byte{0xff, ':', 'a'}), wantErr: ErrMalformedCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/newsletters", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			creds, err := BasicCredentials(r)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, creds.Username)
			assert.Equal(t, tt.wantPass, creds.Password.Expose())
		})
	}
}

func TestHandleError(t *testing.T) {
	errNotFound := errors.New("not found")
	errAuth := errors.New("auth failed")
	mappings := []ErrorMapping{
		{Error: errNotFound, Status: http.StatusNotFound},
		{
			Error:   errAuth,
			Status:  http.StatusUnauthorized,
			Message: "authentication failed",
			Headers: map[string]string{"WWW-Authenticate": `Basic realm="publish"`},
		},
	}

	t.Run("mapped with default message", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleError(context.Background(), w, fmt.Errorf("lookup: %w", errNotFound), mappings)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "lookup: not found")
	})

	t.Run("mapped with headers", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleError(context.Background(), w, errAuth, mappings)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, `Basic realm="publish"`, w.Header().Get("WWW-Authenticate"))

		var body struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "authentication failed", body.Error.Message)
	})

	t.Run("unmapped hides details", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleError(context.Background(), w, errors.New("pq: connection refused"), mappings)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Title string `json:"title"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"hi"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), r, &dst))
	assert.Equal(t, "hi", dst.Title)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"hi"} {}`))
	assert.Error(t, DecodeJSON(httptest.NewRecorder(), r, &dst))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`))
	assert.Error(t, DecodeJSON(httptest.NewRecorder(), r, &dst))
}

func TestValidationError(t *testing.T) {
	type form struct {
		Name  string `validate:"required"`
		Email string `validate:"required"`
	}
	err := validator.New().Struct(form{Email: "ursula@example.com"})
	require.Error(t, err)

	w := httptest.NewRecorder()
	ValidationError(w, err)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body struct {
		Error struct {
			Message string       `json:"message"`
			Details []FieldError `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "validation error", body.Error.Message)
	assert.Equal(t, []FieldError{{Field: "name", Rule: "required", Message: "name is required"}}, body.Error.Details)
}

func TestValidationError_PlainError(t *testing.T) {
	w := httptest.NewRecorder()
	ValidationError(w, errors.New("name is too long"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"details":"name is too long"`)
}

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware([]string{"https://example.com"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodOptions, "/subscriptions", nil)
	r.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodGet, "/health_check", nil)
	r.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
