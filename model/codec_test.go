package model

import (
	"bytes"
	"errors"
	"testing"

	glm "github.com/go-gl/mathgl/mgl32"
)

func TestMeshRoundTrip(t *testing.T) {
	mesh := MeshData{
		Name: "triangle",
		Vertices: []Vertex{
			{Pos: glm.Vec3{0, -1, 0}, Normal: glm.Vec3{0, 0, 1}, Color: glm.Vec4{1, 0, 0, 1}},
			{Pos: glm.Vec3{1, 1, 0}, Normal: glm.Vec3{0, 0, 1}, Color: glm.Vec4{0, 1, 0, 1}},
			{Pos: glm.Vec3{-1, 1, 0}, Normal: glm.Vec3{0, 0, 1}, Color: glm.Vec4{0, 0, 1, 1}},
		},
	}

	var buf bytes.Buffer
	if err := mesh.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}

	if decoded.Name != mesh.Name {
		t.Errorf("decoded name %q, want %q", decoded.Name, mesh.Name)
	}
	if len(decoded.Vertices) != len(mesh.Vertices) {
		t.Fatalf("decoded %d vertices, want %d", len(decoded.Vertices), len(mesh.Vertices))
	}
	for idx, vert := range decoded.Vertices {
		if vert != mesh.Vertices[idx] {
			t.Errorf("vertex %d decoded as %v, want %v", idx, vert, mesh.Vertices[idx])
		}
	}
}

func TestDecodeRejectsForeignData(t *testing.T) {
	if _, err := Decode(bytes.NewReader([]byte("COLLADA file"))); !errors.Is(err, ErrFormat) {
		t.Errorf("got %v, want ErrFormat", err)
	}
}

func TestVertexPacking(t *testing.T) {
	mesh := MeshData{Vertices: make([]Vertex, 5)}
	if got := len(mesh.Bytes()); got != 5*VertexStride {
		t.Errorf("packed %d bytes, want %d", got, 5*VertexStride)
	}
}
