package models

import (
	"time"

	proofmodels "privid/internal/proof/models"
	dErrors "privid/pkg/domain-errors"
)

// Window is a sharing validity preset. Only these three exist; arbitrary
// durations would make expiry policy unauditable.
type Window string

const (
	Window24h Window = "24h"
	Window7d  Window = "7d"
	Window30d Window = "30d"
)

// Duration returns the wall-clock length of a window.
func (w Window) Duration() (time.Duration, error) {
	switch w {
	case Window24h:
		return 24 * time.Hour, nil
	case Window7d:
		return 7 * 24 * time.Hour, nil
	case Window30d:
		return 30 * 24 * time.Hour, nil
	default:
		return 0, dErrors.New(dErrors.CodeInvalidInput, "sharing window must be 24h, 7d, or 30d")
	}
}

// Package is one shared proof with its access policy. The access token is
// issued alongside but never stored.
type Package struct {
	ID        string            `json:"id"`
	Proof     proofmodels.Proof `json:"proof"`
	Audience  string            `json:"audience"`
	Window    Window            `json:"window"`
	CreatedAt time.Time         `json:"createdAt"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// Expired reports whether the package's sharing window has passed.
func (p *Package) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
