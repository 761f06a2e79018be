package driven

import (
	"context"

	"github.com/tmorling/credvault/internal/domain/model"
)

// PackageProber defines the driven port for on-demand checks of the
// downloadable package hosted alongside the app. Every probe defeats caching
// at all layers, including the offline gateway, so a redeployed package is
// always observed immediately.
//
// The context doubles as the cancellation token: when the triggering caller
// goes away mid-probe, the probe returns ctx.Err() and its partial result
// must be discarded, never applied.
type PackageProber interface {
	// CheckAvailability classifies the hosted package into one of the
	// availability variants. Network failures are folded into
	// PackageUnreachable; the error return is reserved for context
	// cancellation.
	CheckAvailability(ctx context.Context) (model.Availability, error)

	// FetchMetadata reads size, content type, and last-modified headers
	// without downloading the body. Implausible metadata sets the Advisory
	// field rather than failing.
	FetchMetadata(ctx context.Context) (*model.PackageMetadata, error)

	// Checksum downloads the full package, re-validates its length against
	// the minimum plausible size, and returns the SHA-256 digest of the
	// byte content as a lowercase hex string.
	Checksum(ctx context.Context) (string, error)
}
