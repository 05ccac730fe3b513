package mesh

import (
	"github.com/devblok/prism/asset"
	"github.com/devblok/prism/gfx"
	"github.com/devblok/prism/model"
)

// NewMesh uploads the mesh vertices and wraps them in a drawable.
// The returned chain signals when the vertex upload has completed.
func NewMesh(device gfx.Device, queue gfx.Queue, data model.MeshData) (*Mesh, *gfx.FutureChain, error) {
	buffer, token, err := device.NewVertexBuffer(queue, data.Bytes())
	if err != nil {
		return nil, nil, err
	}
	return &Mesh{
		name:     data.Name,
		vertices: buffer,
		count:    len(data.Vertices),
	}, gfx.NewFutureChain(token), nil
}

// FromArchive decodes the named mesh out of an archive and uploads it.
func FromArchive(device gfx.Device, queue gfx.Queue, ar *asset.Archive, name string) (*Mesh, *gfx.FutureChain, error) {
	r, err := ar.Open(name)
	if err != nil {
		return nil, nil, err
	}
	data, err := model.Decode(r)
	if err != nil {
		return nil, nil, err
	}
	return NewMesh(device, queue, data)
}

// Mesh is a drawable vertex mesh.
type Mesh struct {
	name     string
	vertices gfx.Buffer
	count    int
}

// Name returns the mesh name from its source data.
func (m *Mesh) Name() string {
	return m.name
}

// MakeCommands implements Drawable3D.
func (m *Mesh) MakeCommands(pass *MeshPass, cameraDesc gfx.DescriptorSet, queueFamily uint32) (gfx.CommandBuffer, error) {
	return pass.Device().NewDrawCommands(gfx.DrawDesc{
		Pipeline:    pass.PipelineGBuffers(),
		Descriptors: []gfx.DescriptorSet{cameraDesc},
		Vertices:    m.vertices,
		VertexCount: m.count,
		QueueFamily: queueFamily,
	})
}

// Release frees the mesh vertex buffer.
func (m *Mesh) Release() {
	m.vertices.Release()
}
