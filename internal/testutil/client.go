package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

// Client drives the API over real HTTP. With a validator and a test set it
// checks every exchange against the API description.
type Client struct {
	BaseURL     string
	HTTPClient  *http.Client
	Validator   *OpenAPIValidator
	ValidateAPI bool

	username string
	password string
	basic    bool
	t        *testing.T
}

// NewClient returns a client that does not check exchanges.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{},
	}
}

// NewClientWithValidator returns a client that checks exchanges once SetT
// has been called.
func NewClientWithValidator(baseURL string, validator *OpenAPIValidator) *Client {
	return &Client{
		BaseURL:     baseURL,
		HTTPClient:  &http.Client{},
		Validator:   validator,
		ValidateAPI: true,
	}
}

// SetT sets the test that receives contract failures.
func (c *Client) SetT(t *testing.T) {
	c.t = t
}

// WithoutValidation returns a copy that sends requests the API description
// rejects, such as forms with missing fields.
func (c *Client) WithoutValidation() *Client {
	clone := *c
	clone.ValidateAPI = false
	return &clone
}

// WithBasicAuth returns a copy of the client that sends HTTP Basic
// credentials with every request.
func (c *Client) WithBasicAuth(username, password string) *Client {
	clone := *c
	clone.username = username
	clone.password = password
	clone.basic = true
	return &clone
}

// GET sends a GET request.
func (c *Client) GET(path string) (*http.Response, error) {
	return c.do(http.MethodGet, path, "", nil)
}

// PostForm performs a POST request with an urlencoded body.
func (c *Client) PostForm(path string, form url.Values) (*http.Response, error) {
	return c.do(http.MethodPost, path, "application/x-www-form-urlencoded", []byte(form.Encode()))
}

// POST sends body as JSON.
func (c *Client) POST(path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}
	return c.do(http.MethodPost, path, "application/json", data)
}

// PostRaw performs a POST request with a body sent as is.
func (c *Client) PostRaw(path, contentType, body string) (*http.Response, error) {
	return c.do(http.MethodPost, path, contentType, []byte(body))
}

func (c *Client) do(method, path, contentType string, body []byte) (*http.Response, error) {
	req, err := c.newRequest(method, path, contentType, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	if c.ValidateAPI && c.Validator != nil && c.t != nil {
		// The sent request's body is spent; check against a fresh copy.
		sent, err := c.newRequest(method, path, contentType, body)
		if err != nil {
			return nil, err
		}
		c.Validator.Check(c.t, sent, resp)
	}

	return resp, nil
}

func (c *Client) newRequest(method, path, contentType string, body []byte) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.basic {
		req.SetBasicAuth(c.username, c.password)
	}
	return req, nil
}

// DecodeJSON decodes and closes the response body.
func DecodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// ReadBody returns the trimmed response body and closes it.
func ReadBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return strings.TrimSpace(string(body))
}
