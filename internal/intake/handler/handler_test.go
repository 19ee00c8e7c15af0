package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"paydesk/internal/intake/service"
	"paydesk/internal/intake/store/contact"
)

type HandlerSuite struct {
	suite.Suite
	store  *contact.MemoryStore
	router chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.store = contact.NewMemoryStore()

	svc, err := service.New(s.store, service.WithLogger(slog.New(slog.DiscardHandler)))
	s.Require().NoError(err)

	h, err := New(svc, WithLogger(slog.New(slog.DiscardHandler)))
	s.Require().NoError(err)

	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) post(contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/intake", strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestFormSubmission() {
	form := url.Values{
		"name":    {"Ada Lovelace"},
		"email":   {"ada@example.com"},
		"message": {"Need a site."},
	}

	rec := s.post("application/x-www-form-urlencoded", form.Encode())
	s.Require().Equal(http.StatusCreated, rec.Code)

	var body map[string]string
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.NotEmpty(body["id"])

	stored, err := s.store.List(context.Background(), 10)
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.Equal("ada@example.com", stored[0].Email)
}

func (s *HandlerSuite) TestJSONSubmission() {
	rec := s.post("application/json",
		`{"name": "Ada", "_replyto": "ada@example.com", "comments": "JSON relay."}`)
	s.Require().Equal(http.StatusCreated, rec.Code)

	stored, err := s.store.List(context.Background(), 10)
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.Equal("ada@example.com", stored[0].Email)
	s.Equal("JSON relay.", stored[0].Message)
}

func (s *HandlerSuite) TestEmptySubmissionRejected() {
	rec := s.post("application/x-www-form-urlencoded", url.Values{"name": {"only a name"}}.Encode())
	s.Equal(http.StatusBadRequest, rec.Code)

	stored, err := s.store.List(context.Background(), 10)
	s.Require().NoError(err)
	s.Empty(stored)
}

func (s *HandlerSuite) TestMalformedJSONRejected() {
	rec := s.post("application/json", `{"name": `)
	s.Equal(http.StatusBadRequest, rec.Code)
}
