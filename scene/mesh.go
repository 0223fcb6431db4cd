// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scene

import (
	"encoding/binary"

	"github.com/gogpu/gputypes"
)

// Vertex is the vertex layout of the raster pipeline.
type Vertex struct {
	Pos   Vec3
	Color [4]float32
}

// VertexStride is the encoded size of a Vertex.
const VertexStride = 28

// VertexAttributes describes Vertex to the pipeline.
func VertexAttributes() []gputypes.VertexAttribute {
	return []gputypes.VertexAttribute{
		{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
		{Format: gputypes.VertexFormatFloat32x4, Offset: 12, ShaderLocation: 1},
	}
}

// Mesh is indexed triangle-list geometry with 16-bit indices.
type Mesh struct {
	Name     string
	Vertices []Vertex
	Indices  []uint16
}

// VertexData returns the encoded vertices.
func (m *Mesh) VertexData() []byte {
	out, _ := binary.Append(nil, binary.LittleEndian, m.Vertices)
	return out
}

// IndexData returns the encoded indices.
func (m *Mesh) IndexData() []byte {
	out, _ := binary.Append(nil, binary.LittleEndian, m.Indices)
	return out
}

// IndexCount returns the number of indices.
func (m *Mesh) IndexCount() uint32 { return uint32(len(m.Indices)) }

// Cube returns a unit cube centered at the origin with a color per corner.
func Cube() *Mesh {
	white := [4]float32{1, 1, 1, 1}
	black := [4]float32{0, 0, 0, 1}
	red := [4]float32{1, 0, 0, 1}
	green := [4]float32{0, 1, 0, 1}
	blue := [4]float32{0, 0, 1, 1}
	yellow := [4]float32{1, 1, 0, 1}
	cyan := [4]float32{0, 1, 1, 1}
	magenta := [4]float32{1, 0, 1, 1}

	return &Mesh{
		Name: "cube",
		Vertices: []Vertex{
			{Vec3{-0.5, -0.5, -0.5}, white},
			{Vec3{-0.5, +0.5, -0.5}, black},
			{Vec3{+0.5, +0.5, -0.5}, red},
			{Vec3{+0.5, -0.5, -0.5}, green},
			{Vec3{-0.5, -0.5, +0.5}, blue},
			{Vec3{-0.5, +0.5, +0.5}, yellow},
			{Vec3{+0.5, +0.5, +0.5}, cyan},
			{Vec3{+0.5, -0.5, +0.5}, magenta},
		},
		Indices: []uint16{
			0, 1, 2, 0, 2, 3, // front
			4, 6, 5, 4, 7, 6, // back
			4, 5, 1, 4, 1, 0, // left
			3, 2, 6, 3, 6, 7, // right
			1, 5, 6, 1, 6, 2, // top
			4, 0, 3, 4, 3, 7, // bottom
		},
	}
}
