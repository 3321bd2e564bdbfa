package render

// Projection selects the camera projection.
type Projection uint8

const (
	Perspective Projection = iota
	Orthographic
)

// Camera describes the viewing transform.
type Camera struct {
	Type Projection

	Position Vec3
	Target   Vec3
	Up       Vec3

	// Perspective.
	FOVYRad float32

	// Orthographic (half-height).
	OrthoSize float32

	Near float32
	Far  float32
}

// DefaultCamera looks at the origin from +Z.
func DefaultCamera() Camera {
	return Camera{
		Type:      Perspective,
		Position:  V3(0, 0, 3),
		Target:    V3(0, 0, 0),
		Up:        V3(0, 1, 0),
		FOVYRad:   1.0,
		OrthoSize: 1,
		Near:      0.01,
		Far:       1000,
	}
}

// View returns the camera view matrix.
func (c Camera) View() Mat4 {
	up := c.Up
	if up == (Vec3{}) {
		up = V3(0, 1, 0)
	}
	return Mat4LookAt(c.Position, c.Target, up)
}

// Projection returns the projection matrix for a target aspect.
func (c Camera) Projection(aspect float32) Mat4 {
	switch c.Type {
	case Orthographic:
		size := c.OrthoSize
		if size == 0 {
			size = 1
		}
		right := size * aspect
		return Mat4Ortho(-right, right, -size, size, c.Near, c.Far)
	default:
		fov := c.FOVYRad
		if fov == 0 {
			fov = 1.0
		}
		return Mat4Perspective(fov, aspect, c.Near, c.Far)
	}
}

// Forward returns the unit viewing direction.
func (c Camera) Forward() Vec3 {
	return Normalize(c.Target.Sub(c.Position))
}
