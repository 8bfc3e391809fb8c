// Package provider fetches bounce and complaint feedback from delivery
// providers. Sources only report what the provider saw; interpreting the
// events (thresholds, suppression, status changes) happens downstream.
package provider

import (
	"context"
	"time"

	"github.com/ignite/listkeeper/internal/domain"
)

// BounceSource is a provider-side feed of delivery failures for a list.
type BounceSource interface {
	// FetchBounces returns all bounce and complaint events recorded since
	// the cutoff. An empty slice with a nil error means a clean campaign.
	FetchBounces(ctx context.Context, listExternalID string, since time.Time) ([]domain.BounceEvent, error)
}
