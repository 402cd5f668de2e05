package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/chewxy/math32"

	"github.com/Faultbox/nanite-lod/internal/mesh"
)

// SourceHash returns the hex sha256 of the mesh contents: counts, then positions,
// normals, texture coordinates and faces in little-endian order.
func SourceHash(m *mesh.Mesh) string {
	h := sha256.New()
	buf := make([]byte, 0, 16)

	for _, n := range []int{len(m.Positions), len(m.Normals), len(m.TexCoords), len(m.Faces)} {
		buf = binary.LittleEndian.AppendUint64(buf[:0], uint64(n))
		h.Write(buf)
	}
	for _, p := range m.Positions {
		h.Write(appendFloats(buf[:0], p.X, p.Y, p.Z))
	}
	for _, n := range m.Normals {
		h.Write(appendFloats(buf[:0], n.X, n.Y, n.Z))
	}
	for _, uv := range m.TexCoords {
		h.Write(appendFloats(buf[:0], uv.X, uv.Y))
	}
	for _, f := range m.Faces {
		buf = buf[:0]
		for _, v := range f {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(v))
		}
		h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func appendFloats(buf []byte, values ...float32) []byte {
	for _, v := range values {
		buf = binary.LittleEndian.AppendUint32(buf, math32.Float32bits(v))
	}
	return buf
}
