package tiling

import "fmt"

// ClippingPolicy governs whether a displacement update that would move a
// tile's sampled patch outside the image is accepted.
type ClippingPolicy int

const (
	// NoOutOfBoundClipping resets the tile displacement to zero instead of
	// applying an out-of-bound update.
	NoOutOfBoundClipping ClippingPolicy = iota
	// AllowedOutOfBoundClipping applies every update; image sampling handles
	// the borders.
	AllowedOutOfBoundClipping
	// LoggedOutOfBoundClipping applies every update and reports out-of-bound
	// ones to the diagnostics sink.
	LoggedOutOfBoundClipping
)

var clippingNames = map[ClippingPolicy]string{
	NoOutOfBoundClipping:      "no_out_of_bound",
	AllowedOutOfBoundClipping: "allowed_out_of_bound",
	LoggedOutOfBoundClipping:  "logged_out_of_bound",
}

func (p ClippingPolicy) String() string {
	if name, ok := clippingNames[p]; ok {
		return name
	}
	return fmt.Sprintf("ClippingPolicy(%d)", int(p))
}

// ParseClippingPolicy maps a configuration name to a ClippingPolicy.
func ParseClippingPolicy(name string) (ClippingPolicy, error) {
	for p, n := range clippingNames {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown clipping policy %q", ErrInvalidTilingParameters, name)
}
