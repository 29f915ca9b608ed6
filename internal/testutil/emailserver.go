package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
)

// EmailRequest is a request captured by EmailServer.
type EmailRequest struct {
	Token    string
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HTMLBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// EmailServer imitates the Postmark email endpoint and records what it
// receives.
type EmailServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []EmailRequest
	status   int
}

// NewEmailServer starts a server answering POST /email with 200.
func NewEmailServer() *EmailServer {
	s := &EmailServer{status: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /email", s.handle)
	s.Server = httptest.NewServer(mux)
	return s
}

func (s *EmailServer) handle(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	req.Token = r.Header.Get("X-Postmark-Server-Token")

	s.mu.Lock()
	status := s.status
	if status < 300 {
		s.requests = append(s.requests, req)
	}
	s.mu.Unlock()

	w.WriteHeader(status)
}

// FailWith makes subsequent requests answer with status. Pass
// http.StatusOK to recover.
func (s *EmailServer) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Requests returns a copy of the accepted requests.
func (s *EmailServer) Requests() []EmailRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EmailRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestsTo returns accepted requests addressed to recipient.
func (s *EmailServer) RequestsTo(recipient string) []EmailRequest {
	var out []EmailRequest
	for _, r := range s.Requests() {
		if r.To == recipient {
			out = append(out, r)
		}
	}
	return out
}

// Reset forgets captured requests and restores the 200 response.
func (s *EmailServer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
	s.status = http.StatusOK
}

var linkPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)

// Links returns every http(s) URL found in body, in order.
func Links(body string) []string {
	return linkPattern.FindAllString(body, -1)
}
