package model

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// package errors
var (
	// ErrFormat is returned when decoded data is not a mesh stream.
	ErrFormat = errors.New("model: not a mesh stream")

	// ErrVersion is returned on an unsupported mesh stream version.
	ErrVersion = errors.New("model: unsupported mesh version")
)

// Mesh stream layout, all values little endian:
// magic "PMSH", uint32 version, uint32 name length, name bytes,
// uint32 vertex count, then count packed vertices.
var meshMagic = [4]byte{'P', 'M', 'S', 'H'}

const meshVersion = 1

// Decode reads one mesh from r.
func Decode(r io.Reader) (MeshData, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return MeshData{}, err
	}
	if magic != meshMagic {
		return MeshData{}, ErrFormat
	}

	var version, nameLen uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return MeshData{}, err
	}
	if version != meshVersion {
		return MeshData{}, ErrVersion
	}
	if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return MeshData{}, err
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return MeshData{}, err
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return MeshData{}, err
	}
	packed := make([]byte, int(count)*VertexStride)
	if _, err := io.ReadFull(r, packed); err != nil {
		return MeshData{}, err
	}

	mesh := MeshData{
		Name:     string(name),
		Vertices: make([]Vertex, count),
	}
	for idx := range mesh.Vertices {
		at := idx * VertexStride
		next := func() float32 {
			v := math.Float32frombits(binary.LittleEndian.Uint32(packed[at:]))
			at += 4
			return v
		}
		vert := &mesh.Vertices[idx]
		for c := range 3 {
			vert.Pos[c] = next()
		}
		for c := range 3 {
			vert.Normal[c] = next()
		}
		for c := range 4 {
			vert.Color[c] = next()
		}
	}
	return mesh, nil
}

// Encode writes the mesh to w in the stream layout Decode reads.
func (m *MeshData) Encode(w io.Writer) error {
	if _, err := w.Write(meshMagic[:]); err != nil {
		return err
	}
	header := []uint32{meshVersion, uint32(len(m.Name))}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	if _, err := io.WriteString(w, m.Name); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(m.Vertices))); err != nil {
		return err
	}
	_, err := w.Write(m.Bytes())
	return err
}
