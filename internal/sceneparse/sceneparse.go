// Package sceneparse implements the whitespace-tokenized,
// brace-delimited scene description format. It is a direct Go
// transliteration of the original crt scene::crt module: a two-pass
// parser (count variable-length sections first, allocate exact-sized
// arrays from a region, then fill them in a single forward pass) that
// reports errors as a Kind plus a fixed four-frame context breadcrumb.
//
// The breadcrumb/typed-error shape follows the teacher's
// internal/errors (a categorized error value with per-kind
// constructors) and internal/position (a small diagnostic value with
// a String method), adapted to this format's much smaller grammar.
package sceneparse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/selenia-project/crt/internal/geom"
	"github.com/selenia-project/crt/internal/region"
	"github.com/selenia-project/crt/internal/scene"
)

// Kind enumerates the error conditions the parser can raise.
type Kind int

const (
	KindOom Kind = iota
	KindUnexpectedEOF
	KindExpected
	KindInvalidKey
	KindInvalidFormat
	KindInvalidColorValue
	KindParseFloat
	KindParseVector
	KindInvalidDim
	KindInvalidFace
	KindInvalidFaceIndex
	KindFaceIndexOutOfBounds
)

// Error is a parse failure: a Kind plus up to four nested group names
// (e.g. "scene", "mesh", "data", "f") giving the reader a breadcrumb
// of where in the scene description the failure occurred. Pushing a
// fifth frame is silently dropped, matching the fixed-depth contract.
type Error struct {
	Kind     Kind
	Context  [4]string
	Expected string // set when Kind == KindExpected
	Err      error  // wrapped strconv error or region.ErrOom, if any
}

func (e *Error) Error() string {
	var sb strings.Builder

	sb.WriteString("in ")

	first := true
	for _, c := range e.Context {
		if c == "" {
			break
		}

		if !first {
			sb.WriteByte('.')
		}

		sb.WriteString(c)
		first = false
	}

	sb.WriteString(": ")
	sb.WriteString(e.message())

	return sb.String()
}

// Unwrap exposes the wrapped strconv/region error, if any, for
// errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Err }

func (e *Error) message() string {
	switch e.Kind {
	case KindOom:
		return "out of memory"
	case KindUnexpectedEOF:
		return "unexpected end of file"
	case KindExpected:
		return fmt.Sprintf("expected `%s`", e.Expected)
	case KindInvalidKey:
		return "invalid key"
	case KindInvalidFormat:
		return "invalid color format, expected `#00aa9f`"
	case KindInvalidColorValue:
		return fmt.Sprintf("invalid hex value: %v", e.Err)
	case KindParseFloat:
		return fmt.Sprintf("invalid scalar: %v", e.Err)
	case KindParseVector:
		return fmt.Sprintf("invalid vector: %v", e.Err)
	case KindInvalidDim:
		return "invalid dimensions"
	case KindInvalidFace:
		return "invalid mesh face"
	case KindInvalidFaceIndex:
		return fmt.Sprintf("invalid mesh face index: %v", e.Err)
	case KindFaceIndexOutOfBounds:
		return "mesh face index out of bounds"
	default:
		return "unknown parse error"
	}
}

// parser holds the token stream and the region scene entities are
// allocated from.
type parser struct {
	r       *region.Region
	words   []string
	pos     int
	context [4]string
	depth   int
}

func newParser(r *region.Region, input string) *parser {
	return &parser{r: r, words: strings.Fields(input)}
}

func (p *parser) atEnd() bool { return p.pos >= len(p.words) }

func (p *parser) peek() (string, bool) {
	if p.atEnd() {
		return "", false
	}

	return p.words[p.pos], true
}

func (p *parser) at(tok string) bool {
	w, ok := p.peek()
	return ok && w == tok
}

func (p *parser) next() (string, error) {
	w, ok := p.peek()
	if !ok {
		return "", p.err(KindUnexpectedEOF)
	}

	p.pos++

	return w, nil
}

func (p *parser) expect(tok string) error {
	w, err := p.next()
	if err != nil {
		return err
	}

	if w != tok {
		return p.errExpected(tok)
	}

	return nil
}

// pushNext reads the next token and pushes it as a context frame;
// callers pop() it once the group it introduces has been consumed.
func (p *parser) pushNext() (string, error) {
	w, err := p.next()
	if err != nil {
		return "", err
	}

	p.push(w)

	return w, nil
}

func (p *parser) push(ctx string) {
	if p.depth < len(p.context) {
		p.context[p.depth] = ctx
		p.depth++
	}
}

func (p *parser) pop() {
	p.depth--
	p.context[p.depth] = ""
}

func (p *parser) err(kind Kind) *Error {
	return &Error{Kind: kind, Context: p.context}
}

func (p *parser) errWrap(kind Kind, wrapped error) *Error {
	return &Error{Kind: kind, Context: p.context, Err: wrapped}
}

func (p *parser) errExpected(tok string) *Error {
	return &Error{Kind: KindExpected, Context: p.context, Expected: tok}
}

// Parse parses a full scene description, allocating every scene
// entity from r. spheres/planes/meshes array lengths are determined
// by a counting pre-pass over the whole token stream before any
// filling occurs, so every array is allocated exactly once and filled
// in place — no reallocation or append.
func Parse(r *region.Region, input string) (*scene.Scene, error) {
	words := strings.Fields(input)

	var nSpheres, nPlanes, nMeshes int
	for _, w := range words {
		switch w {
		case "sphere":
			nSpheres++
		case "plane":
			nPlanes++
		case "mesh":
			nMeshes++
		}
	}

	spheres, err := region.AllocArrayDefault[scene.Sphere](r, nSpheres)
	if err != nil {
		return nil, &Error{Kind: KindOom, Err: err}
	}

	planes, err := region.AllocArrayDefault[scene.Plane](r, nPlanes)
	if err != nil {
		return nil, &Error{Kind: KindOom, Err: err}
	}

	meshes, err := region.AllocArrayDefault[scene.Mesh](r, nMeshes)
	if err != nil {
		return nil, &Error{Kind: KindOom, Err: err}
	}

	res := &scene.Scene{Spheres: spheres, Planes: planes, Meshes: meshes}

	p := newParser(r, input)
	if err := parseSceneBody(p, res); err != nil {
		return nil, err
	}

	return res, nil
}

func parseSceneBody(p *parser, res *scene.Scene) error {
	p.push("scene")
	defer p.pop()

	var sphereIdx, planeIdx, meshIdx int

	for !p.atEnd() {
		w, err := p.pushNext()
		if err != nil {
			return err
		}

		switch w {
		case "background":
			c, err := parseColor(p)
			if err != nil {
				return err
			}

			res.Background = c
		case "foreground":
			c, err := parseColor(p)
			if err != nil {
				return err
			}

			res.Foreground = c
		case "camera":
			if err := parseCamera(p, &res.Camera); err != nil {
				return err
			}
		case "light":
			if err := parseLight(p, &res.Light); err != nil {
				return err
			}
		case "sphere":
			if err := parseSphere(p, &res.Spheres[sphereIdx]); err != nil {
				return err
			}

			sphereIdx++
		case "plane":
			if err := parsePlane(p, &res.Planes[planeIdx]); err != nil {
				return err
			}

			planeIdx++
		case "mesh":
			if err := parseMesh(p, &res.Meshes[meshIdx]); err != nil {
				return err
			}

			meshIdx++
		default:
			return p.err(KindInvalidKey)
		}

		p.pop()
	}

	return nil
}

func parseColor(p *parser) (scene.Color, error) {
	s, err := p.next()
	if err != nil {
		return scene.Color{}, err
	}

	if !isColorLiteral(s) {
		return scene.Color{}, p.err(KindInvalidFormat)
	}

	r, err := strconv.ParseUint(s[1:3], 16, 8)
	if err != nil {
		return scene.Color{}, p.errWrap(KindInvalidColorValue, err)
	}

	g, err := strconv.ParseUint(s[3:5], 16, 8)
	if err != nil {
		return scene.Color{}, p.errWrap(KindInvalidColorValue, err)
	}

	b, err := strconv.ParseUint(s[5:7], 16, 8)
	if err != nil {
		return scene.Color{}, p.errWrap(KindInvalidColorValue, err)
	}

	return scene.Color{
		R: float64(r) / 255.0,
		G: float64(g) / 255.0,
		B: float64(b) / 255.0,
	}, nil
}

func isColorLiteral(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}

	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}

	return true
}

func parseVector(p *parser) (geom.Vec3, error) {
	t, err := p.next()
	if err != nil {
		return geom.Vec3{}, err
	}

	parts, ok := splitN(t, ',', 3)
	if !ok {
		return geom.Vec3{}, p.err(KindParseVector)
	}

	var xyz [3]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return geom.Vec3{}, p.errWrap(KindParseVector, err)
		}

		xyz[i] = f
	}

	return geom.Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

func parseScalar(p *parser) (float64, error) {
	t, err := p.next()
	if err != nil {
		return 0, err
	}

	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, p.errWrap(KindParseFloat, err)
	}

	return f, nil
}

func parseDim(p *parser) (w, h float64, err error) {
	t, err := p.next()
	if err != nil {
		return 0, 0, err
	}

	parts, ok := splitN(t, 'x', 2)
	if !ok {
		return 0, 0, p.err(KindInvalidDim)
	}

	w, err1 := strconv.ParseFloat(parts[0], 64)
	h, err2 := strconv.ParseFloat(parts[1], 64)

	if err1 != nil {
		return 0, 0, p.errWrap(KindInvalidDim, err1)
	}

	if err2 != nil {
		return 0, 0, p.errWrap(KindInvalidDim, err2)
	}

	return w, h, nil
}

func splitN(s string, sep byte, n int) ([]string, bool) {
	parts := strings.Split(s, string(sep))
	if len(parts) != n {
		return nil, false
	}

	return parts, true
}

func parseCamera(p *parser, res *scene.Camera) error {
	if err := p.expect("{"); err != nil {
		return err
	}

	for !p.at("}") {
		key, err := p.pushNext()
		if err != nil {
			return err
		}

		switch key {
		case "pos":
			if res.Pos, err = parseVector(p); err != nil {
				return err
			}
		case "look_at":
			if res.LookAt, err = parseVector(p); err != nil {
				return err
			}
		case "up":
			if res.Up, err = parseVector(p); err != nil {
				return err
			}
		case "focus":
			if res.Focus, err = parseScalar(p); err != nil {
				return err
			}
		case "dim":
			if res.Width, res.Height, err = parseDim(p); err != nil {
				return err
			}
		default:
			return p.err(KindInvalidKey)
		}

		p.pop()
	}

	return p.expect("}")
}

func parseSphere(p *parser, res *scene.Sphere) error {
	if err := p.expect("{"); err != nil {
		return err
	}

	for !p.at("}") {
		key, err := p.pushNext()
		if err != nil {
			return err
		}

		switch key {
		case "pos":
			if res.Center, err = parseVector(p); err != nil {
				return err
			}
		case "radius":
			if res.Radius, err = parseScalar(p); err != nil {
				return err
			}
		case "material":
			if err := parseMaterial(p, &res.Material); err != nil {
				return err
			}
		default:
			return p.err(KindInvalidKey)
		}

		p.pop()
	}

	return p.expect("}")
}

func parsePlane(p *parser, res *scene.Plane) error {
	if err := p.expect("{"); err != nil {
		return err
	}

	pos := geom.Zero
	dir := geom.Vec3{X: 0, Y: 0, Z: 1}

	for !p.at("}") {
		key, err := p.pushNext()
		if err != nil {
			return err
		}

		switch key {
		case "pos":
			if pos, err = parseVector(p); err != nil {
				return err
			}
		case "normal":
			if dir, err = parseVector(p); err != nil {
				return err
			}
		case "material":
			if err := parseMaterial(p, &res.Material); err != nil {
				return err
			}
		default:
			return p.err(KindInvalidKey)
		}

		p.pop()
	}

	res.Origin = pos
	res.Normal = dir

	return p.expect("}")
}

func parseMaterial(p *parser, res *scene.Material) error {
	if err := p.expect("{"); err != nil {
		return err
	}

	for !p.at("}") {
		key, err := p.pushNext()
		if err != nil {
			return err
		}

		switch key {
		case "color":
			if res.Color, err = parseColor(p); err != nil {
				return err
			}
		case "diffuse":
			if res.Diffuse, err = parseScalar(p); err != nil {
				return err
			}
		case "specular":
			if res.Specular, err = parseScalar(p); err != nil {
				return err
			}
		case "reflectance":
			if res.Reflectance, err = parseScalar(p); err != nil {
				return err
			}
		default:
			return p.err(KindInvalidKey)
		}

		p.pop()
	}

	return p.expect("}")
}

func parseLight(p *parser, res *scene.Light) error {
	if err := p.expect("{"); err != nil {
		return err
	}

	for !p.at("}") {
		key, err := p.pushNext()
		if err != nil {
			return err
		}

		switch key {
		case "pos":
			if res.Pos, err = parseVector(p); err != nil {
				return err
			}
		case "color":
			if res.Color, err = parseColor(p); err != nil {
				return err
			}
		default:
			return p.err(KindInvalidKey)
		}

		p.pop()
	}

	return p.expect("}")
}

func parseMesh(p *parser, res *scene.Mesh) error {
	if err := p.expect("{"); err != nil {
		return err
	}

	for !p.at("}") {
		key, err := p.pushNext()
		if err != nil {
			return err
		}

		switch key {
		case "material":
			if err := parseMaterial(p, &res.Material); err != nil {
				return err
			}
		case "data":
			if err := parseMeshData(p, res); err != nil {
				return err
			}
		default:
			return p.err(KindInvalidKey)
		}

		p.pop()
	}

	return p.expect("}")
}

func parseMeshData(p *parser, res *scene.Mesh) error {
	if err := p.expect("{"); err != nil {
		return err
	}

	var nV, nN, nF int
	for i := p.pos; i < len(p.words) && p.words[i] != "}"; i++ {
		switch p.words[i] {
		case "v":
			nV++
		case "vn":
			nN++
		case "f":
			nF++
		}
	}

	var err error

	res.V, err = region.AllocArrayDefault[geom.Vec3](p.r, nV)
	if err != nil {
		return p.errWrap(KindOom, err)
	}

	res.N, err = region.AllocArrayDefault[geom.Vec3](p.r, nN)
	if err != nil {
		return p.errWrap(KindOom, err)
	}

	res.F, err = region.AllocArrayDefault[scene.MeshFace](p.r, nF)
	if err != nil {
		return p.errWrap(KindOom, err)
	}

	var vIdx, nIdx, fIdx int

	for !p.at("}") {
		key, err := p.pushNext()
		if err != nil {
			return err
		}

		switch key {
		case "v":
			if res.V[vIdx], err = parseVector(p); err != nil {
				return err
			}

			vIdx++
		case "vn":
			if res.N[nIdx], err = parseVector(p); err != nil {
				return err
			}

			nIdx++
		case "f":
			if err := parseFace(p, uint32(nV), uint32(nN), &res.F[fIdx]); err != nil {
				return err
			}

			fIdx++
		default:
			return p.err(KindInvalidKey)
		}

		p.pop()
	}

	return p.expect("}")
}

func parseFace(p *parser, nV, nN uint32, res *scene.MeshFace) error {
	for i := 0; i < 3; i++ {
		t, err := p.next()
		if err != nil {
			return err
		}

		parts, ok := splitN(t, '/', 2)
		if !ok {
			return p.err(KindInvalidFace)
		}

		vi, err1 := strconv.ParseUint(parts[0], 10, 32)
		ni, err2 := strconv.ParseUint(parts[1], 10, 32)

		if err1 != nil {
			return p.errWrap(KindInvalidFaceIndex, err1)
		}

		if err2 != nil {
			return p.errWrap(KindInvalidFaceIndex, err2)
		}

		vi32 := uint32(vi) - 1
		ni32 := uint32(ni) - 1

		if !(vi32 < nV && ni32 < nN) {
			return p.err(KindFaceIndexOutOfBounds)
		}

		res.V[i] = vi32
		res.N[i] = ni32
	}

	return nil
}
