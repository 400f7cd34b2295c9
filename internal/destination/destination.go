package destination

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalid is returned when a candidate is not an absolute http(s) URL.
var ErrInvalid = errors.New("candidate is not a valid http(s) URL")

// Destination is an absolute http or https URL ready to be used as a
// redirect Location.
type Destination struct {
	url *url.URL
}

// Validate parses candidate and accepts it only if it is an absolute URL with
// an http or https scheme and a host.
func Validate(candidate string) (Destination, error) {
	if strings.TrimSpace(candidate) == "" {
		return Destination{}, fmt.Errorf("%w: empty candidate", ErrInvalid)
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return Destination{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return Destination{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalid, u.Scheme)
	}

	if u.Host == "" {
		return Destination{}, fmt.Errorf("%w: missing host", ErrInvalid)
	}

	return Destination{url: u}, nil
}

// URL returns a copy of the underlying URL so callers can modify it freely.
func (d Destination) URL() *url.URL {
	if d.url == nil {
		return nil
	}

	u := *d.url
	return &u
}

// String returns the Location form of the destination.
func (d Destination) String() string {
	if d.url == nil {
		return ""
	}

	return d.url.String()
}

// IsZero reports whether d was never validated.
func (d Destination) IsZero() bool {
	return d.url == nil
}

// WithQuery returns a copy of d with the query parameter key set to value,
// replacing any previous values.
func (d Destination) WithQuery(key, value string) (Destination, error) {
	if d.url == nil {
		return d, fmt.Errorf("%w: zero destination", ErrInvalid)
	}

	u := d.URL()
	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return d, err
	}

	query.Set(key, value)
	u.RawQuery = query.Encode()

	return Destination{url: u}, nil
}
