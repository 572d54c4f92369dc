// Package authflowrepo keeps the short lived state of social login redirects
// between the start and callback requests.
package authflowrepo

import (
	"errors"
	"time"
)

// MaxAge bounds how long a user may take at the identity provider.
const MaxAge = 10 * time.Minute

var ErrStateNotFound = errors.New("auth flow state not found")

type FlowState struct {
	CodeVerifier string
	Nonce        string
	ReturnURL    string
	CreatedAt    time.Time
}

// Expired reports whether the flow is older than MaxAge at now.
func (f FlowState) Expired(now time.Time) bool {
	return now.Sub(f.CreatedAt) > MaxAge
}

type Repo interface {
	Put(state string, flow FlowState) error
	// Take returns the flow and removes it. A state can be redeemed once.
	Take(state string) (FlowState, error)
	// Prune drops flows that expired before now and returns how many.
	Prune(now time.Time) int
}
