// Package store persists checkout sessions between requests.
package store

import (
	"context"
	"errors"
	"time"

	"meterpay/backend/services/checkout-service/internal/checkout"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("store: session not found")

// Record is everything kept for one checkout session.
type Record struct {
	ID        string           `json:"id"`
	Session   checkout.Session `json:"session"`
	History   checkout.History `json:"history"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// SessionStore is implemented by the redis and memory stores. Save refreshes the TTL.
type SessionStore interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
}
