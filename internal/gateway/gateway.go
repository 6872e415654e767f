// Package gateway fans change messages out to realtime subscribers. The
// core only produces messages; connection lifecycle belongs to the hub (or
// an external gateway implementing the same interface).
package gateway

import (
	"context"
	"errors"
)

// ErrUnavailable reports that the gateway cannot accept broadcasts at all
// (shut down or unreachable). Per-connection write failures are handled
// internally and never surface here.
var ErrUnavailable = errors.New("gateway: unavailable")

// Gateway delivers a message to every connection subscribed to a scope.
// Scope is typically a folder id; the empty scope is not a valid broadcast
// target.
type Gateway interface {
	Broadcast(ctx context.Context, scope string, message []byte) error
}
