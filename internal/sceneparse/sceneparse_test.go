package sceneparse

import (
	"errors"
	"strings"
	"testing"

	"github.com/selenia-project/crt/internal/geom"
	"github.com/selenia-project/crt/internal/region"
	"github.com/selenia-project/crt/internal/scene"
)

func parse(t *testing.T, input string) (*scene.Scene, error) {
	t.Helper()

	buf := make([]byte, 1<<16)

	var sc *scene.Scene
	var err error

	region.With(buf, func(r *region.Region) struct{} {
		sc, err = Parse(r, input)
		return struct{}{}
	})

	return sc, err
}

func TestParseMinimalScene(t *testing.T) {
	const src = `
		background #000000
		foreground #ffffff
		camera {
			pos 0,0,-5
			look_at 0,0,0
			up 0,1,0
			focus 1.0
			dim 800x600
		}
		light {
			pos 10,10,-10
			color #ffffff
		}
	`

	sc, err := parse(t, src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if sc.Background != (scene.Color{0, 0, 0}) {
		t.Fatalf("Background = %v", sc.Background)
	}

	if sc.Foreground != (scene.Color{1, 1, 1}) {
		t.Fatalf("Foreground = %v", sc.Foreground)
	}

	if sc.Camera.Width != 800 || sc.Camera.Height != 600 {
		t.Fatalf("Camera dim = %vx%v", sc.Camera.Width, sc.Camera.Height)
	}

	if sc.Camera.LookAt != geom.Zero {
		t.Fatalf("Camera.LookAt = %v", sc.Camera.LookAt)
	}

	if len(sc.Spheres) != 0 || len(sc.Planes) != 0 || len(sc.Meshes) != 0 {
		t.Fatalf("expected no entities, got %+v", sc)
	}
}

func TestParseSphereAndPlane(t *testing.T) {
	const src = `
		sphere {
			pos 1,2,3
			radius 4
			material {
				color #ff0000
				diffuse 0.5
			}
		}
		plane {
			normal 0,1,0
			material { color #00ff00 diffuse 1.0 }
		}
	`

	sc, err := parse(t, src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(sc.Spheres) != 1 || len(sc.Planes) != 1 {
		t.Fatalf("expected 1 sphere + 1 plane, got %d/%d", len(sc.Spheres), len(sc.Planes))
	}

	sp := sc.Spheres[0]
	if sp.Center != (geom.Vec3{X: 1, Y: 2, Z: 3}) || sp.Radius != 4 {
		t.Fatalf("sphere = %+v", sp)
	}

	if sp.Material.Diffuse != 0.5 {
		t.Fatalf("sphere material = %+v", sp.Material)
	}

	pl := sc.Planes[0]
	if pl.Normal != (geom.Vec3{X: 0, Y: 1, Z: 0}) {
		t.Fatalf("plane normal = %v", pl.Normal)
	}

	// pos was not overridden; the default origin applies.
	if pl.Origin != geom.Zero {
		t.Fatalf("plane origin = %v, want zero", pl.Origin)
	}
}

func TestParseMesh(t *testing.T) {
	const src = `
		mesh {
			material { color #ffffff diffuse 1.0 }
			data {
				v 0,0,0
				v 1,0,0
				v 0,1,0
				vn 0,0,1
				f 1/1 2/1 3/1
			}
		}
	`

	sc, err := parse(t, src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(sc.Meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(sc.Meshes))
	}

	m := sc.Meshes[0]
	if len(m.V) != 3 || len(m.N) != 1 || m.NumFaces() != 1 {
		t.Fatalf("mesh arrays = v:%d n:%d f:%d", len(m.V), len(m.N), m.NumFaces())
	}

	tr := m.Triangle(0)
	if tr.V[1] != (geom.Vec3{X: 1, Y: 0, Z: 0}) {
		t.Fatalf("resolved triangle = %+v", tr)
	}
}

func TestParseEmptySceneSucceeds(t *testing.T) {
	sc, err := parse(t, "   \n\t  ")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(sc.Spheres) != 0 {
		t.Fatalf("expected empty scene, got %+v", sc)
	}
}

func TestParseInvalidKey(t *testing.T) {
	_, err := parse(t, "bogus #000000")

	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *Error", err)
	}

	if perr.Kind != KindInvalidKey {
		t.Fatalf("Kind = %v, want KindInvalidKey", perr.Kind)
	}
}

func TestParseInvalidColorFormat(t *testing.T) {
	_, err := parse(t, "background red")

	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindInvalidFormat {
		t.Fatalf("err = %v, want KindInvalidFormat", err)
	}
}

func TestParseInvalidColorHexValue(t *testing.T) {
	_, err := parse(t, "background #zzzzzz")

	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindInvalidColorValue {
		t.Fatalf("err = %v, want KindInvalidColorValue", err)
	}
}

func TestParseUnexpectedEofInsideGroup(t *testing.T) {
	_, err := parse(t, "camera { pos 0,0,0")

	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindUnexpectedEOF {
		t.Fatalf("err = %v, want KindUnexpectedEOF", err)
	}
}

func TestParseExpectedBrace(t *testing.T) {
	_, err := parse(t, "camera pos 0,0,0 }")

	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindExpected {
		t.Fatalf("err = %v, want KindExpected", err)
	}

	if perr.Expected != "{" {
		t.Fatalf("Expected = %q, want `{`", perr.Expected)
	}
}

func TestParseFaceIndexOutOfBounds(t *testing.T) {
	const src = `
		mesh {
			data {
				v 0,0,0
				vn 0,0,1
				f 1/1 2/1 1/1
			}
		}
	`

	_, err := parse(t, src)

	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindFaceIndexOutOfBounds {
		t.Fatalf("err = %v, want KindFaceIndexOutOfBounds", err)
	}
}

func TestParseFaceZeroIndexIsOutOfBounds(t *testing.T) {
	const src = `
		mesh {
			data {
				v 0,0,0
				v 1,0,0
				v 0,1,0
				vn 0,0,1
				f 0/1 1/1 2/1
			}
		}
	`

	_, err := parse(t, src)

	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindFaceIndexOutOfBounds {
		t.Fatalf("err = %v, want KindFaceIndexOutOfBounds (1-based index 0)", err)
	}
}

func TestParseInvalidDim(t *testing.T) {
	_, err := parse(t, "camera { dim 800-600 }")

	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindInvalidDim {
		t.Fatalf("err = %v, want KindInvalidDim", err)
	}
}

func TestErrorContextBreadcrumb(t *testing.T) {
	const src = `
		mesh {
			data {
				v 0,0,0
				vn 0,0,1
				f bogus 2/1 3/1
			}
		}
	`

	_, err := parse(t, src)

	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *Error", err)
	}

	got := strings.Join(trimTrailingEmpty(perr.Context[:]), ".")
	want := "scene.mesh.data.f"
	if got != want {
		t.Fatalf("Context = %q, want %q", got, want)
	}
}

func trimTrailingEmpty(ctx []string) []string {
	out := make([]string, 0, len(ctx))
	for _, c := range ctx {
		if c == "" {
			break
		}
		out = append(out, c)
	}
	return out
}

func TestParseOomPropagatesFromArrayAllocation(t *testing.T) {
	buf := make([]byte, 4) // far too small for even one Scene's arrays

	var err error
	region.With(buf, func(r *region.Region) struct{} {
		_, err = Parse(r, "sphere { radius 1 }")
		return struct{}{}
	})

	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindOom {
		t.Fatalf("err = %v, want KindOom", err)
	}
}
