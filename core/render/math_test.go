package render

import "testing"

func TestMat4MulIdentity(t *testing.T) {
	a := Mat4Identity()
	b := Mat4Translate(V3(1, 2, 3))
	if got := Mat4Mul(a, b); got != b {
		t.Fatalf("identity*a mismatch")
	}
	if got := Mat4Mul(b, a); got != b {
		t.Fatalf("a*identity mismatch")
	}
}

func TestLookAtNotIdentity(t *testing.T) {
	m := Mat4LookAt(V3(0, 0, 3), V3(0, 0, 0), V3(0, 1, 0))
	if m == Mat4Identity() {
		t.Fatalf("lookAt unexpectedly identity")
	}
}

func TestDefaultCameraProjectsOriginToCenter(t *testing.T) {
	cam := DefaultCamera()
	mvp := Mat4Mul(cam.Projection(1), cam.View())
	c := mvp.MulPoint(0, 0, 0)
	if c.W <= 0 {
		t.Fatalf("w=%v, want > 0", c.W)
	}
	if x, y := c.X/c.W, c.Y/c.W; abs32(x) > 1e-6 || abs32(y) > 1e-6 {
		t.Fatalf("ndc=(%v,%v), want (0,0)", x, y)
	}
	if f := cam.Forward(); Len(f.Sub(V3(0, 0, -1))) > 1e-6 {
		t.Fatalf("forward=%v", f)
	}
}

func TestOrbitControllerClampsPitch(t *testing.T) {
	var c OrbitController
	c.Rotate(0, 10)
	if c.Pitch > 1.55 {
		t.Fatalf("pitch=%v not clamped", c.Pitch)
	}
	c.MinRadius, c.MaxRadius = 1, 5
	c.Zoom(100)
	if c.Radius != 5 {
		t.Fatalf("radius=%v, want 5", c.Radius)
	}
	cam := DefaultCamera()
	c.Apply(&cam)
	if d := Len(cam.Position.Sub(cam.Target)); d < 4.99 || d > 5.01 {
		t.Fatalf("orbit distance=%v, want 5", d)
	}
}

func TestFalloffKneeContinuous(t *testing.T) {
	const knee = 2
	in := FalloffKnee.distanceFactor(knee*knee-1e-4, 0, knee)
	out := FalloffKnee.distanceFactor(knee*knee, 0, knee)
	if d := out - in; d < 0 || d > 1e-3 {
		t.Fatalf("knee discontinuity: in=%v out=%v", in, out)
	}
	if f, err := ParseFalloff("planar"); err != nil || f != FalloffPlanar {
		t.Fatalf("ParseFalloff = %v, %v", f, err)
	}
	if _, err := ParseFalloff("cubic"); err == nil {
		t.Fatalf("expected error for unknown falloff")
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
