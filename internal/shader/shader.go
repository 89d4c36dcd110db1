// Package shader implements ray-vs-scene intersection and the
// direct-lighting shading model, grounded directly on the original
// crt render module's render() function and its sphere/plane/triangle
// intersection formulas.
package shader

import (
	"math"

	"github.com/selenia-project/crt/internal/bvh"
	"github.com/selenia-project/crt/internal/geom"
	"github.com/selenia-project/crt/internal/scene"
)

// shadingBias offsets a shading point along its surface normal before
// casting a shadow ray, avoiding immediate self-intersection.
const shadingBias = 0.0001

// World pairs a parsed scene with one built BVH per mesh, indexed the
// same way as Scene.Meshes. It is the shader's only input; once
// constructed neither it nor the BVHs it points to are mutated during
// a render.
type World struct {
	Scene    *scene.Scene
	MeshBVHs []*bvh.Bvh
}

type hitRecord struct {
	t        float64
	point    geom.Vec3
	normal   geom.Vec3
	material scene.Material
}

// Shade traces ray through w and returns its color: the scene
// background if nothing is hit, otherwise the direct-lighting result
// at the nearest surface point.
func (w *World) Shade(ray geom.Ray) scene.Color {
	hit, ok := w.intersect(ray, math.Inf(1))
	if !ok {
		return w.Scene.Background
	}

	p := hit.point.Add(hit.normal.Scale(shadingBias))

	toLight := w.Scene.Light.Pos.Sub(p)
	distSq := toLight.NormSquared()
	shadowRay := geom.NewRay(p, toLight)

	base := hit.material.Color

	shadowHit, shadowFound := w.intersect(shadowRay, math.Inf(1))
	if shadowFound && shadowHit.t*shadowHit.t < distSq {
		return base
	}

	diff := math.Max(0, geom.Dot(hit.normal, shadowRay.Dir()))
	diffuse := hit.material.Color.Mul(w.Scene.Light.Color).Scale(diff * hit.material.Diffuse)

	return base.Add(diffuse)
}

// intersect finds the nearest surface the ray hits among every
// sphere, plane, and mesh (through its BVH) within [0, maxT). The
// returned normal is normalized only once, after the winning
// candidate is chosen, matching the original's "n is normalized after
// selection".
func (w *World) intersect(ray geom.Ray, maxT float64) (hitRecord, bool) {
	var best hitRecord

	bestT := maxT
	found := false

	for i := range w.Scene.Spheres {
		s := &w.Scene.Spheres[i]
		if t, n, ok := intersectSphere(s, ray, bestT); ok {
			bestT = t
			found = true
			best = hitRecord{t: t, point: ray.At(t), normal: n, material: s.Material}
		}
	}

	for i := range w.Scene.Planes {
		pl := &w.Scene.Planes[i]
		if t, ok := intersectPlane(pl, ray, bestT); ok {
			bestT = t
			found = true
			best = hitRecord{t: t, point: ray.At(t), normal: pl.Normal, material: pl.Material}
		}
	}

	for mi := range w.Scene.Meshes {
		m := &w.Scene.Meshes[mi]

		bv := w.MeshBVHs[mi]
		if bv == nil || len(bv.Tris) == 0 {
			continue
		}

		hit, ok := bv.Intersect(ray, 0, bestT, triBvhTest)
		if !ok {
			continue
		}

		t, n, ok := intersectTriangle(bv.Tris[hit.TriIdx], ray, math.Inf(1))
		if !ok {
			continue
		}

		bestT = t
		found = true
		best = hitRecord{t: t, point: ray.At(t), normal: n, material: m.Material}
	}

	if found {
		best.normal = best.normal.Unit()
	}

	return best, found
}

func triBvhTest(tri scene.Triangle, ray geom.Ray, tMin, tMax float64) (float64, bool) {
	t, _, ok := intersectTriangle(tri, ray, tMax)
	if !ok || t < tMin {
		return 0, false
	}

	return t, true
}

// intersectSphere solves |o + t*d - c|^2 = r^2 for the smallest
// positive root less than maxT, per o' = o-c, k = d.o', disc = k^2 -
// (o'.o' - r^2).
func intersectSphere(s *scene.Sphere, ray geom.Ray, maxT float64) (t float64, normal geom.Vec3, ok bool) {
	oPrime := ray.Origin().Sub(s.Center)
	k := geom.Dot(ray.Dir(), oPrime)
	cPrime := geom.Dot(oPrime, oPrime) - s.Radius*s.Radius

	disc := k*k - cPrime
	if disc < 0 {
		return 0, geom.Zero, false
	}

	sq := math.Sqrt(disc)

	if t1 := -k - sq; t1 > 0 && t1 < maxT {
		p := ray.At(t1)
		return t1, p.Sub(s.Center), true
	}

	if t2 := -k + sq; t2 > 0 && t2 < maxT {
		p := ray.At(t2)
		return t2, p.Sub(s.Center), true
	}

	return 0, geom.Zero, false
}

// intersectPlane solves t = -(o'.n) / (d.n) where o' = o - plane.origin.
func intersectPlane(p *scene.Plane, ray geom.Ray, maxT float64) (t float64, ok bool) {
	denom := geom.Dot(ray.Dir(), p.Normal)
	if denom == 0 {
		return 0, false
	}

	oPrime := ray.Origin().Sub(p.Origin)
	t = -geom.Dot(oPrime, p.Normal) / denom

	if t <= 0 || t >= maxT {
		return 0, false
	}

	return t, true
}

// intersectTriangle is the Möller affine solve: n = ab x ac, t =
// ((v0-o).n)/(d.n), barycentric weights via orthogonal projection onto
// ort_ac = ac x n and ort_ab = ab x n (matching the original's
// intersect_triangle exactly, including its denominators
// dot(ab,ort_ac) / dot(ac,ort_ab) rather than dot(n,n)). Accepts only
// points strictly inside the triangle (every barycentric coordinate in
// the open interval (0,1)).
func intersectTriangle(tr scene.Triangle, ray geom.Ray, maxT float64) (t float64, normal geom.Vec3, ok bool) {
	v0, v1, v2 := tr.V[0], tr.V[1], tr.V[2]

	ab := v1.Sub(v0)
	ac := v2.Sub(v0)
	n := geom.Cross(ab, ac)

	denom := geom.Dot(ray.Dir(), n)
	if denom == 0 {
		return 0, geom.Zero, false
	}

	t = geom.Dot(v0.Sub(ray.Origin()), n) / denom
	if t < 0 || t > maxT {
		return 0, geom.Zero, false
	}

	p := ray.At(t)
	v0p := p.Sub(v0)

	ortAc := geom.Cross(ac, n)
	ortAb := geom.Cross(ab, n)

	beta := geom.Dot(v0p, ortAc) / geom.Dot(ab, ortAc)  // weight for v1
	gamma := geom.Dot(v0p, ortAb) / geom.Dot(ac, ortAb) // weight for v2
	alpha := 1 - beta - gamma                           // weight for v0

	if !(alpha > 0 && alpha < 1 && beta > 0 && beta < 1 && gamma > 0 && gamma < 1) {
		return 0, geom.Zero, false
	}

	normal = tr.N[0].Scale(alpha).Add(tr.N[1].Scale(beta)).Add(tr.N[2].Scale(gamma))

	return t, normal, true
}
