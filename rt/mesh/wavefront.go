// Package mesh loads triangle geometry into the flat vertex layout the
// registry builds from.
package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// Object is a contiguous triangle range of a Mesh.
type Object struct {
	Name          string
	StartTriangle int
	TriangleCount int
}

// Mesh stores three vertices per triangle, w = 1.
type Mesh struct {
	Vertices []mgl32.Vec4
	Objects  []Object
}

func (m *Mesh) TriangleCount() int {
	return len(m.Vertices) / 3
}

type objReader struct {
	name      string
	positions []mgl32.Vec3
	mesh      *Mesh
}

// LoadOBJFile opens and parses a Wavefront OBJ file.
func LoadOBJFile(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadOBJ(f, path)
}

// LoadOBJ parses positions ("v") and faces ("f") from r. "o" and "g" start
// a new object. Polygons are fan triangulated. Every other statement is
// ignored. name is only used in error messages.
func LoadOBJ(r io.Reader, name string) (*Mesh, error) {
	rd := &objReader{name: name, mesh: &Mesh{}}

	lineNum := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNum++
		tokens := strings.Fields(scanner.Text())
		if len(tokens) == 0 || strings.HasPrefix(tokens[0], "#") {
			continue
		}

		switch tokens[0] {
		case "v":
			v, err := parseVec3(tokens)
			if err != nil {
				return nil, rd.errorf(lineNum, "%v", err)
			}
			rd.positions = append(rd.positions, v)
		case "f":
			if err := rd.parseFace(tokens); err != nil {
				return nil, rd.errorf(lineNum, "%v", err)
			}
		case "o", "g":
			objName := strings.Join(tokens[1:], " ")
			if objName == "" {
				objName = fmt.Sprintf("object%d", len(rd.mesh.Objects))
			}
			rd.startObject(objName)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	// drop trailing empty objects
	objs := rd.mesh.Objects[:0]
	for _, o := range rd.mesh.Objects {
		if o.TriangleCount > 0 {
			objs = append(objs, o)
		}
	}
	rd.mesh.Objects = objs
	return rd.mesh, nil
}

func (rd *objReader) errorf(line int, format string, args ...any) error {
	return fmt.Errorf("[%s: %d] %s", rd.name, line, fmt.Sprintf(format, args...))
}

// startObject renames the current object while it is still empty.
func (rd *objReader) startObject(name string) {
	objs := rd.mesh.Objects
	if n := len(objs); n > 0 && objs[n-1].TriangleCount == 0 {
		objs[n-1].Name = name
		return
	}
	rd.mesh.Objects = append(objs, Object{Name: name, StartTriangle: rd.mesh.TriangleCount()})
}

func (rd *objReader) parseFace(tokens []string) error {
	if len(tokens) < 4 {
		return fmt.Errorf(`unsupported syntax for "f"; expected at least 3 arguments; got %d`, len(tokens)-1)
	}

	idx := make([]int, 0, len(tokens)-1)
	for arg, tok := range tokens[1:] {
		// only the position index matters: "v", "v/vt", "v//vn", "v/vt/vn"
		vTok, _, _ := strings.Cut(tok, "/")
		i, err := selectIndex(vTok, len(rd.positions))
		if err != nil {
			return fmt.Errorf("face argument %d: %w", arg, err)
		}
		idx = append(idx, i)
	}

	if len(rd.mesh.Objects) == 0 {
		rd.startObject("default")
	}
	for k := 1; k+1 < len(idx); k++ {
		rd.mesh.Vertices = append(rd.mesh.Vertices,
			rd.positions[idx[0]].Vec4(1),
			rd.positions[idx[k]].Vec4(1),
			rd.positions[idx[k+1]].Vec4(1),
		)
		rd.mesh.Objects[len(rd.mesh.Objects)-1].TriangleCount++
	}
	return nil
}

// selectIndex resolves a 1-based or negative (relative to the end) index.
func selectIndex(token string, count int) (int, error) {
	index, err := strconv.ParseInt(token, 10, 32)
	if err != nil {
		return -1, err
	}

	var i int
	if index < 0 {
		i = count + int(index)
	} else {
		i = int(index) - 1
	}
	if i < 0 || i >= count {
		return -1, fmt.Errorf("index %d out of bounds", index)
	}
	return i, nil
}

func parseVec3(tokens []string) (mgl32.Vec3, error) {
	if len(tokens) < 4 {
		return mgl32.Vec3{}, fmt.Errorf(`unsupported syntax for "%s"; expected 3 arguments; got %d`, tokens[0], len(tokens)-1)
	}

	var v mgl32.Vec3
	for i := 0; i < 3; i++ {
		c, err := strconv.ParseFloat(tokens[i+1], 32)
		if err != nil {
			return v, err
		}
		v[i] = float32(c)
	}
	return v, nil
}
