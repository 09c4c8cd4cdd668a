package cloud

import (
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/scanmatch/internal/geom"
)

// Point is a single return in sensor-frame Cartesian coordinates.
// Coordinate convention: X=right, Y=forward, Z=up.
type Point struct {
	X, Y, Z   float64
	Intensity uint8
}

// Frame is one point cloud captured at a single time instant.
type Frame struct {
	FrameID   string    // unique identifier for this frame
	SensorID  string    // which sensor produced this frame
	Timestamp time.Time // capture time of the frame
	Points    []Point
}

// NewFrame builds a frame around the given points and assigns it a
// fresh FrameID. The points slice is adopted, not copied.
func NewFrame(sensorID string, ts time.Time, points []Point) *Frame {
	return &Frame{
		FrameID:   uuid.NewString(),
		SensorID:  sensorID,
		Timestamp: ts,
		Points:    points,
	}
}

// Len returns the number of points in the frame.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Points)
}

// Centroid returns the mean point position, or zeros for an empty frame.
func (f *Frame) Centroid() (cx, cy, cz float64) {
	if f.Len() == 0 {
		return 0, 0, 0
	}
	for _, p := range f.Points {
		cx += p.X
		cy += p.Y
		cz += p.Z
	}
	n := float64(len(f.Points))
	return cx / n, cy / n, cz / n
}

// Transform returns a copy of the frame with every point moved by T.
// The receiver is left untouched; the copy keeps SensorID and
// Timestamp but gets its own FrameID.
func (f *Frame) Transform(T geom.Mat4) *Frame {
	out := NewFrame(f.SensorID, f.Timestamp, make([]Point, len(f.Points)))
	for i, p := range f.Points {
		x, y, z := T.Apply(p.X, p.Y, p.Z)
		out.Points[i] = Point{X: x, Y: y, Z: z, Intensity: p.Intensity}
	}
	return out
}
