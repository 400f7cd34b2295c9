package destination

import "fmt"

// Fallback is the terminal safety net of the redirect path. It is validated
// once at construction so Resolve can never fail.
type Fallback struct {
	dest Destination
}

// NewFallback validates rawURL and returns a Fallback for it.
func NewFallback(rawURL string) (*Fallback, error) {
	dest, err := Validate(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fallback url: %w", err)
	}

	return &Fallback{dest: dest}, nil
}

// Resolve returns the configured fallback destination.
func (f *Fallback) Resolve() Destination {
	return f.dest
}
