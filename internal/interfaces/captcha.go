package interfaces

import "context"

// CaptchaSolver is an optional hook the dynamic fetcher calls between
// navigation and the action script. Detection and solving both run against
// the live browser page context.
type CaptchaSolver interface {
	// Type returns the solver discriminator.
	Type() string

	// Detect reports whether the current page shows a CAPTCHA challenge.
	Detect(ctx context.Context) (bool, error)

	// Solve attempts to clear the challenge. A nil error means the page can
	// be re-navigated and the fetch continued.
	Solve(ctx context.Context) error
}
