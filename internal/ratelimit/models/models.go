package models

import (
	"strings"
	"time"
)

// Preset names a window/threshold pair. Distinct traffic classes get
// distinct presets so a burst against one endpoint cannot starve another.
type Preset string

const (
	// PresetIntake: public contact-form submissions.
	PresetIntake Preset = "intake"
	// PresetAuth: login and portal-access endpoints.
	PresetAuth Preset = "auth"
	// PresetAdmin: operator endpoints.
	PresetAdmin Preset = "admin"
	// PresetAPI: general API traffic, including the webhook endpoint.
	PresetAPI Preset = "api"
)

// IsValid checks if the preset is one of the supported enum values.
func (p Preset) IsValid() bool {
	switch p {
	case PresetIntake, PresetAuth, PresetAdmin, PresetAPI:
		return true
	}
	return false
}

// Limit holds the thresholds for one preset. FallbackMax is deliberately
// stricter than Max: when the shared counter store is down the limiter
// degrades to a smaller allowance, never to "no limit".
type Limit struct {
	Window      time.Duration
	Max         int64
	FallbackMax int64
}

// Limits is the preset table. Values mirror the production deployment.
var Limits = map[Preset]Limit{
	PresetIntake: {Window: time.Hour, Max: 5, FallbackMax: 3},
	PresetAuth:   {Window: 15 * time.Minute, Max: 10, FallbackMax: 5},
	PresetAdmin:  {Window: time.Minute, Max: 30, FallbackMax: 10},
	PresetAPI:    {Window: time.Minute, Max: 60, FallbackMax: 20},
}

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int64     `json:"limit"`
	Remaining  int64     `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
	// Degraded is set when the in-process fallback produced this result.
	Degraded bool `json:"degraded,omitempty"`
}

// Key builds the counter-store key for a check. The namespace segment is
// optional and separates tenants sharing one store.
func Key(namespace string, preset Preset, identifier string) string {
	var b strings.Builder
	b.WriteString("rl:")
	if namespace != "" {
		b.WriteString(sanitizeSegment(namespace))
		b.WriteByte('|')
	}
	b.WriteString(string(preset))
	b.WriteByte(':')
	b.WriteString(sanitizeSegment(identifier))
	return b.String()
}

// sanitizeSegment escapes delimiter characters so a user-controlled
// identifier containing ':' cannot collide with an adjacent bucket.
func sanitizeSegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
