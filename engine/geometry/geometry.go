// Package geometry holds mappers: objects that produce device-resident geometry for the renderer
// and draw it each frame.
package geometry

import (
	"github.com/Carmen-Shannon/oxy-sphere/engine/compute"
)

// Bounds is an axis-aligned box as [xmin, xmax, ymin, ymax, zmin, zmax].
type Bounds [6]float32

// Center returns the midpoint of the box.
func (b Bounds) Center() [3]float32 {
	return [3]float32{(b[0] + b[1]) / 2, (b[2] + b[3]) / 2, (b[4] + b[5]) / 2}
}

// Actor carries the per-object display properties a mapper draws with.
type Actor struct {
	// Visible controls whether the mapper issues its draw call.
	Visible bool
	// Color is the flat RGBA color of the drawn points.
	Color [4]float32
}

// NewActor returns a visible white actor.
func NewActor() *Actor {
	return &Actor{Visible: true, Color: [4]float32{1, 1, 1, 1}}
}

// RenderSurface is the part of the renderer a Mapper draws through.
type RenderSurface interface {
	// GraphicsContext returns the active graphics context.
	//
	// Returns:
	//   - compute.GraphicsContext: the graphics context
	GraphicsContext() compute.GraphicsContext

	// CreateVertexBuffer allocates a zeroed graphics buffer usable as a vertex source and as
	// kernel storage.
	//
	// Parameters:
	//   - label: a debug label
	//   - size: the size in bytes
	//
	// Returns:
	//   - compute.GraphicsBuffer: the buffer
	//   - error: an error if allocation fails
	CreateVertexBuffer(label string, size uint64) (compute.GraphicsBuffer, error)

	// DestroyVertexBuffer frees a buffer created by CreateVertexBuffer.
	//
	// Parameters:
	//   - vb: the buffer to free
	DestroyVertexBuffer(vb compute.GraphicsBuffer)

	// DrawPoints draws count vertices of vb as a point list with the given render pipeline.
	//
	// Parameters:
	//   - pipelineKey: the registered pipeline to draw with
	//   - vb: the vertex buffer
	//   - count: the number of vertices
	//
	// Returns:
	//   - error: an error if no frame is open or the pipeline is unknown
	DrawPoints(pipelineKey string, vb compute.GraphicsBuffer, count uint32) error
}

// Mapper produces geometry for an actor and draws it.
type Mapper interface {
	// Initialize prepares the mapper for drawing on surface. It needs a current graphics context.
	//
	// Parameters:
	//   - surface: the render surface
	//   - actor: the actor being drawn
	//
	// Returns:
	//   - error: an error if the mapper cannot draw on this surface
	Initialize(surface RenderSurface, actor *Actor) error

	// Render draws the mapper's geometry for one frame, initializing and generating it first if
	// needed. Failures are logged; they never escape to the caller.
	//
	// Parameters:
	//   - surface: the render surface
	//   - actor: the actor being drawn
	Render(surface RenderSurface, actor *Actor)

	// GetBounds returns the extent of the geometry. It does not depend on whether the geometry
	// has been generated yet.
	//
	// Returns:
	//   - Bounds: the bounding box
	GetBounds() Bounds
}
