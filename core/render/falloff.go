package render

import "fmt"

// Falloff selects how apparent luminosity decays with distance.
type Falloff uint8

const (
	// FalloffSpherical divides by the squared eye distance.
	FalloffSpherical Falloff = iota
	// FalloffPlanar divides by the squared depth along the view axis.
	FalloffPlanar
	// FalloffConstant ignores distance.
	FalloffConstant
	// FalloffKnee is spherical beyond Knee and linear inside it.
	FalloffKnee
)

var falloffNames = [...]string{"spherical", "planar", "constant", "knee"}

func (f Falloff) String() string {
	if int(f) < len(falloffNames) {
		return falloffNames[f]
	}
	return fmt.Sprintf("Falloff(%d)", f)
}

// ParseFalloff resolves a policy name.
func ParseFalloff(s string) (Falloff, error) {
	for i, n := range falloffNames {
		if n == s {
			return Falloff(i), nil
		}
	}
	return 0, fmt.Errorf("render: unknown falloff %q", s)
}

// distanceFactor returns the luminosity divisor for a point at squared eye
// distance d2 and view-axis depth z.
func (f Falloff) distanceFactor(d2, z, knee float32) float32 {
	switch f {
	case FalloffPlanar:
		return z * z
	case FalloffConstant:
		return 1
	case FalloffKnee:
		k2 := knee * knee
		if k2 <= 0 || d2 >= k2 {
			return d2
		}
		// Linear in distance inside the knee, continuous at the boundary.
		return knee * sqrt32(d2)
	default:
		return d2
	}
}
