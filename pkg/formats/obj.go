package formats

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/Faultbox/nanite-lod/pkg/math"
)

// OBJ format errors.
var (
	ErrInvalidOBJLine     = errors.New("invalid OBJ line")
	ErrOBJIndexOutOfRange = errors.New("OBJ index out of range")
	ErrEmptyOBJ           = errors.New("OBJ has no faces")
)

// OBJCorner references one face corner. Indices are 0-based; -1 means absent.
type OBJCorner struct {
	V  int
	VT int
	VN int
}

// OBJ represents a parsed Wavefront OBJ file reduced to triangles.
// Object, group, smoothing and material statements are ignored.
type OBJ struct {
	Positions []math.Vec3
	TexCoords []math.Vec2
	Normals   []math.Vec3
	Faces     [][3]OBJCorner
}

// ParseOBJ parses OBJ text. Polygons with more than three corners are triangulated
// as a fan around their first corner. Negative (relative) indices are supported.
// A UTF-8 byte order mark is skipped and UTF-16 input with a mark is transcoded.
func ParseOBJ(r io.Reader) (*OBJ, error) {
	obj := &OBJ{}
	sc := bufio.NewScanner(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)

		var err error
		switch fields[0] {
		case "v":
			var p [3]float32
			p, err = parseFloats3(fields[1:], 3)
			obj.Positions = append(obj.Positions, math.Vec3FromArray(p))
		case "vn":
			var n [3]float32
			n, err = parseFloats3(fields[1:], 3)
			obj.Normals = append(obj.Normals, math.Vec3FromArray(n))
		case "vt":
			var uv [3]float32
			uv, err = parseFloats3(fields[1:], 2)
			obj.TexCoords = append(obj.TexCoords, math.Vec2{X: uv[0], Y: uv[1]})
		case "f":
			err = obj.parseFace(fields[1:])
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading OBJ: %w", err)
	}
	if len(obj.Faces) == 0 {
		return nil, ErrEmptyOBJ
	}
	return obj, nil
}

// parseFloats3 reads at least min and at most 3 floats; extra components (like w) are ignored.
func parseFloats3(fields []string, min int) ([3]float32, error) {
	var out [3]float32
	if len(fields) < min {
		return out, fmt.Errorf("%w: want %d components, got %d", ErrInvalidOBJLine, min, len(fields))
	}
	for i := 0; i < len(fields) && i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return out, fmt.Errorf("%w: %q", ErrInvalidOBJLine, fields[i])
		}
		out[i] = float32(f)
	}
	return out, nil
}

func (o *OBJ) parseFace(fields []string) error {
	if len(fields) < 3 {
		return fmt.Errorf("%w: face with %d corners", ErrInvalidOBJLine, len(fields))
	}
	corners := make([]OBJCorner, len(fields))
	for i, f := range fields {
		c, err := o.parseCorner(f)
		if err != nil {
			return err
		}
		corners[i] = c
	}
	for i := 1; i+1 < len(corners); i++ {
		o.Faces = append(o.Faces, [3]OBJCorner{corners[0], corners[i], corners[i+1]})
	}
	return nil
}

// parseCorner handles "v", "v/vt", "v//vn" and "v/vt/vn".
func (o *OBJ) parseCorner(s string) (OBJCorner, error) {
	parts := strings.Split(s, "/")
	if len(parts) > 3 {
		return OBJCorner{}, fmt.Errorf("%w: corner %q", ErrInvalidOBJLine, s)
	}
	c := OBJCorner{V: -1, VT: -1, VN: -1}

	var err error
	if c.V, err = resolveIndex(parts[0], len(o.Positions)); err != nil {
		return c, err
	}
	if c.V < 0 {
		return c, fmt.Errorf("%w: corner %q has no position", ErrInvalidOBJLine, s)
	}
	if len(parts) > 1 {
		if c.VT, err = resolveIndex(parts[1], len(o.TexCoords)); err != nil {
			return c, err
		}
	}
	if len(parts) > 2 {
		if c.VN, err = resolveIndex(parts[2], len(o.Normals)); err != nil {
			return c, err
		}
	}
	return c, nil
}

// resolveIndex converts a 1-based or negative OBJ index to 0-based. Empty is -1.
func resolveIndex(s string, count int) (int, error) {
	if s == "" {
		return -1, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return -1, fmt.Errorf("%w: index %q", ErrInvalidOBJLine, s)
	}
	switch {
	case i > 0:
		i--
	case i < 0:
		i += count
	default:
		return -1, fmt.Errorf("%w: index 0", ErrOBJIndexOutOfRange)
	}
	if i < 0 || i >= count {
		return -1, fmt.Errorf("%w: %s of %d", ErrOBJIndexOutOfRange, s, count)
	}
	return i, nil
}

// ParseOBJFile reads and parses an OBJ file from disk.
func ParseOBJFile(path string) (*OBJ, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening OBJ file: %w", err)
	}
	defer f.Close()
	return ParseOBJ(f)
}

// WriteOBJ writes o as OBJ text. Floats use the shortest representation that
// round-trips a float32 exactly.
func WriteOBJ(w io.Writer, o *OBJ) error {
	bw := bufio.NewWriter(w)

	for _, p := range o.Positions {
		fmt.Fprintf(bw, "v %s %s %s\n", formatFloat(p.X), formatFloat(p.Y), formatFloat(p.Z))
	}
	for _, t := range o.TexCoords {
		fmt.Fprintf(bw, "vt %s %s\n", formatFloat(t.X), formatFloat(t.Y))
	}
	for _, n := range o.Normals {
		fmt.Fprintf(bw, "vn %s %s %s\n", formatFloat(n.X), formatFloat(n.Y), formatFloat(n.Z))
	}
	for _, f := range o.Faces {
		bw.WriteString("f")
		for _, c := range f {
			bw.WriteByte(' ')
			bw.WriteString(formatCorner(c))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// WriteOBJFile writes o to path, replacing any existing file.
func WriteOBJFile(path string, o *OBJ) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating OBJ file: %w", err)
	}
	if err := WriteOBJ(f, o); err != nil {
		f.Close()
		return fmt.Errorf("writing OBJ file: %w", err)
	}
	return f.Close()
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

func formatCorner(c OBJCorner) string {
	v := strconv.Itoa(c.V + 1)
	switch {
	case c.VT >= 0 && c.VN >= 0:
		return v + "/" + strconv.Itoa(c.VT+1) + "/" + strconv.Itoa(c.VN+1)
	case c.VT >= 0:
		return v + "/" + strconv.Itoa(c.VT+1)
	case c.VN >= 0:
		return v + "//" + strconv.Itoa(c.VN+1)
	default:
		return v
	}
}
