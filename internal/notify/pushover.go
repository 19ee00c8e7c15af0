package notify

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"paydesk/internal/platform/config"
)

// emergency priority repeats every retrySeconds until acknowledged or
// expireSeconds elapses.
const (
	emergencyPriority = "2"
	retrySeconds      = "60"
	expireSeconds     = "3600"
)

// PushoverSender delivers messages through the Pushover message API.
type PushoverSender struct {
	endpoint string
	token    string
	user     string
	client   *http.Client
}

// NewPushoverSender builds a sender from credentials. Returns a nil Sender
// when the credentials are absent; the dispatcher treats a nil sender as
// disabled. The interface return keeps the nil check in the dispatcher
// honest: a typed-nil pointer inside the interface would slip past it.
func NewPushoverSender(cfg config.NotifyConfig) Sender {
	if cfg.Token == "" || cfg.User == "" {
		return nil
	}
	return &PushoverSender{
		endpoint: cfg.Endpoint,
		token:    cfg.Token,
		user:     cfg.User,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *PushoverSender) Push(msg Message) error {
	form := url.Values{}
	form.Set("token", s.token)
	form.Set("user", s.user)
	form.Set("title", msg.Title)
	form.Set("message", msg.Body)
	if msg.Link != "" {
		form.Set("url", msg.Link)
	}
	if msg.Emergency {
		form.Set("priority", emergencyPriority)
		form.Set("retry", retrySeconds)
		form.Set("expire", expireSeconds)
	}

	resp, err := s.client.Post(s.endpoint, "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("push notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push notification: unexpected status %d", resp.StatusCode)
	}
	return nil
}
