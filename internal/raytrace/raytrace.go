// Package raytrace is the orchestrator: it wraps a caller-supplied
// byte buffer in a region, parses a scene description, builds one BVH
// per mesh, constructs a camera frame, and drives a workpool.Pool
// across the output image's rows. Grounded on the original crt
// render::render() entry point and main.rs's top-level driver.
package raytrace

import (
	"fmt"
	"math"

	"github.com/selenia-project/crt/internal/bvh"
	"github.com/selenia-project/crt/internal/geom"
	"github.com/selenia-project/crt/internal/region"
	"github.com/selenia-project/crt/internal/rgb"
	"github.com/selenia-project/crt/internal/scene"
	"github.com/selenia-project/crt/internal/sceneparse"
	"github.com/selenia-project/crt/internal/shader"
	"github.com/selenia-project/crt/internal/workpool"
)

// Options configures a render.
type Options struct {
	// MemBytes sizes the region every scene entity and BVH is
	// allocated from.
	MemBytes int
	// Width and Height size the output image in pixels.
	Width, Height int
	// Workers sizes the worker pool; <= 0 selects hardware
	// parallelism (see workpool.New).
	Workers int
}

// Render parses input as a scene description and renders it per
// opts, returning the filled pixel buffer. Both parse errors
// (*sceneparse.Error) and allocation failures (region.ErrOom) are
// wrapped with %w and a short context prefix, so callers can still
// distinguish them with errors.As/errors.Is.
func Render(input string, opts Options) (*rgb.Buf, error) {
	buf := make([]byte, opts.MemBytes)

	px := make([]rgb.Color, opts.Width*opts.Height)
	out := rgb.NewBuf(uint32(opts.Width), uint32(opts.Height), px)

	var renderErr error

	region.With(buf, func(r *region.Region) struct{} {
		renderErr = renderInto(r, input, opts, out)
		return struct{}{}
	})

	if renderErr != nil {
		return nil, renderErr
	}

	return out, nil
}

func renderInto(r *region.Region, input string, opts Options, out *rgb.Buf) error {
	sc, err := sceneparse.Parse(r, input)
	if err != nil {
		return fmt.Errorf("parsing scene: %w", err)
	}

	meshBVHs := make([]*bvh.Bvh, len(sc.Meshes))
	for i := range sc.Meshes {
		b, err := bvh.Build(r, &sc.Meshes[i])
		if err != nil {
			return fmt.Errorf("building bvh for mesh %d: %w", i, err)
		}

		meshBVHs[i] = b
	}

	cam := newCamera(sc.Camera)
	world := &shader.World{Scene: sc, MeshBVHs: meshBVHs}

	partition := out.Partition()
	pool := workpool.New(opts.Workers)

	width, height := out.Width(), out.Height()

	pool.InParallel(func() {
		for {
			row, ok := partition.NextRow()
			if !ok {
				return
			}

			for x := uint32(0); x < width; x++ {
				sx := (2*float64(x) - float64(width)) / float64(width)
				sy := -(2*float64(row.Y) - float64(height)) / float64(height)

				ray := cam.cast(sx, sy)
				c := world.Shade(ray)

				row.Pix[x] = toRGB(c)
			}
		}
	})

	return nil
}

// camera is the derived screen-space basis the orchestrator builds
// once from scene.Camera's raw parameters.
type camera struct {
	pos    geom.Vec3
	center geom.Vec3
	dx, dy geom.Vec3
}

func newCamera(c scene.Camera) camera {
	gaze := c.LookAt.Sub(c.Pos).Unit()
	center := c.Pos.Add(gaze.Scale(c.Focus))
	right := geom.Cross(gaze, c.Up).Unit()
	trueUp := geom.Cross(right, gaze).Unit()

	return camera{
		pos:    c.Pos,
		center: center,
		dx:     right.Scale(c.Width / 2),
		dy:     trueUp.Scale(-c.Height / 2),
	}
}

// cast builds the ray from the camera's position through the screen
// point at normalized screen coordinates (sx, sy) in [-1, 1].
func (c camera) cast(sx, sy float64) geom.Ray {
	target := c.center.Add(c.dx.Scale(sx)).Add(c.dy.Scale(sy))
	return geom.RayFromTo(c.pos, target)
}

// toRGB converts a linear shaded color to 8-bit-per-channel, clamping
// to [0, 255] and rounding to nearest.
func toRGB(c scene.Color) rgb.Color {
	return rgb.Color{
		R: toByte(c.R),
		G: toByte(c.G),
		B: toByte(c.B),
	}
}

func toByte(v float64) uint8 {
	v = math.Round(v * 255)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}

	return uint8(v)
}
