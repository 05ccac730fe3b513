// Package model holds the vertex level data types shared between
// asset decoding and the rendering batches.
package model

import (
	"encoding/binary"
	"math"

	glm "github.com/go-gl/mathgl/mgl32"
)

// Vertex is a mesh vertex.
type Vertex struct {
	Pos    glm.Vec3
	Normal glm.Vec3
	Color  glm.Vec4
}

// VertexStride is the packed byte size of one Vertex.
const VertexStride = 40

// Uniform defines a model-view-projection object.
type Uniform struct {
	Model      glm.Mat4
	View       glm.Mat4
	Projection glm.Mat4
}

// Bytes packs the uniform matrices for device upload, column major,
// little endian.
func (u *Uniform) Bytes() []byte {
	out := make([]byte, 0, 3*16*4)
	for _, m := range [3]glm.Mat4{u.Model, u.View, u.Projection} {
		for _, v := range m {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
		}
	}
	return out
}

// MeshData is a decoded mesh ready for upload.
type MeshData struct {
	Name     string
	Vertices []Vertex
}

// Bytes packs the vertices for device upload, position then normal
// then color, little endian.
func (m *MeshData) Bytes() []byte {
	out := make([]byte, 0, len(m.Vertices)*VertexStride)
	put := func(v float32) {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	for _, vert := range m.Vertices {
		for idx := range 3 {
			put(vert.Pos[idx])
		}
		for idx := range 3 {
			put(vert.Normal[idx])
		}
		for idx := range 4 {
			put(vert.Color[idx])
		}
	}
	return out
}
