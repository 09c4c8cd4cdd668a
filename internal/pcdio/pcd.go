// Package pcdio reads and writes point-cloud frames as ASCII PCD
// v0.7 files. Only the fields the registration tooling needs are
// supported: x, y, z and an optional intensity column.
package pcdio

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/scanmatch/internal/cloud"
	"github.com/banshee-data/scanmatch/internal/fsutil"
)

// Codec reads and writes PCD files through a fsutil.FileSystem so
// tests can run fully in memory.
type Codec struct {
	FS fsutil.FileSystem
}

// NewCodec returns a codec over the given filesystem.
func NewCodec(fs fsutil.FileSystem) *Codec {
	return &Codec{FS: fs}
}

// ReadFrame parses an ASCII PCD file into a frame. The frame
// timestamp is taken from the file's modification time, which is what
// recorded replay sequences carry.
func (c *Codec) ReadFrame(path, sensorID string) (*cloud.Frame, error) {
	data, err := c.FS.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pcdio: reading %s: %w", path, err)
	}

	ts := time.Time{}
	if info, err := c.FS.Stat(path); err == nil {
		ts = info.ModTime()
	}

	points, err := parseASCII(data)
	if err != nil {
		return nil, fmt.Errorf("pcdio: parsing %s: %w", path, err)
	}
	return cloud.NewFrame(sensorID, ts, points), nil
}

// WriteFrame writes the frame as an ASCII PCD v0.7 file with
// x/y/z/intensity columns.
func (c *Codec) WriteFrame(path string, f *cloud.Frame) error {
	if f == nil {
		return fmt.Errorf("pcdio: nil frame")
	}

	var buf bytes.Buffer
	n := len(f.Points)
	fmt.Fprintf(&buf, "# .PCD v0.7 - Point Cloud Data file format\n")
	fmt.Fprintf(&buf, "VERSION 0.7\n")
	fmt.Fprintf(&buf, "FIELDS x y z intensity\n")
	fmt.Fprintf(&buf, "SIZE 4 4 4 4\n")
	fmt.Fprintf(&buf, "TYPE F F F F\n")
	fmt.Fprintf(&buf, "COUNT 1 1 1 1\n")
	fmt.Fprintf(&buf, "WIDTH %d\n", n)
	fmt.Fprintf(&buf, "HEIGHT 1\n")
	fmt.Fprintf(&buf, "VIEWPOINT 0 0 0 1 0 0 0\n")
	fmt.Fprintf(&buf, "POINTS %d\n", n)
	fmt.Fprintf(&buf, "DATA ascii\n")
	for _, p := range f.Points {
		fmt.Fprintf(&buf, "%g %g %g %d\n", p.X, p.Y, p.Z, p.Intensity)
	}

	if err := c.FS.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("pcdio: writing %s: %w", path, err)
	}
	return nil
}

// parseASCII parses the header and data section of an ASCII PCD file.
func parseASCII(data []byte) ([]cloud.Point, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var (
		fields     []string
		points     = -1
		dataASCII  = false
		inData     = false
		xi, yi, zi = -1, -1, -1
		ii         = -1
		out        []cloud.Point
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !inData {
			parts := strings.Fields(line)
			switch strings.ToUpper(parts[0]) {
			case "FIELDS":
				fields = parts[1:]
				for i, f := range fields {
					switch strings.ToLower(f) {
					case "x":
						xi = i
					case "y":
						yi = i
					case "z":
						zi = i
					case "intensity":
						ii = i
					}
				}
			case "POINTS":
				if len(parts) < 2 {
					return nil, fmt.Errorf("malformed POINTS line %q", line)
				}
				n, err := strconv.Atoi(parts[1])
				if err != nil {
					return nil, fmt.Errorf("malformed POINTS count %q", parts[1])
				}
				points = n
			case "DATA":
				if len(parts) < 2 || strings.ToLower(parts[1]) != "ascii" {
					return nil, fmt.Errorf("unsupported DATA encoding %q (only ascii)", line)
				}
				dataASCII = true
				inData = true
				if xi < 0 || yi < 0 || zi < 0 {
					return nil, fmt.Errorf("FIELDS must include x, y and z, got %v", fields)
				}
			case "VERSION", "SIZE", "TYPE", "COUNT", "WIDTH", "HEIGHT", "VIEWPOINT":
				// Accepted and ignored; ascii parsing does not need them.
			default:
				return nil, fmt.Errorf("unknown header line %q", line)
			}
			continue
		}

		cols := strings.Fields(line)
		if len(cols) < len(fields) {
			return nil, fmt.Errorf("data row has %d columns, header declares %d", len(cols), len(fields))
		}
		x, err := strconv.ParseFloat(cols[xi], 64)
		if err != nil {
			return nil, fmt.Errorf("bad x value %q: %w", cols[xi], err)
		}
		y, err := strconv.ParseFloat(cols[yi], 64)
		if err != nil {
			return nil, fmt.Errorf("bad y value %q: %w", cols[yi], err)
		}
		z, err := strconv.ParseFloat(cols[zi], 64)
		if err != nil {
			return nil, fmt.Errorf("bad z value %q: %w", cols[zi], err)
		}

		p := cloud.Point{X: x, Y: y, Z: z}
		if ii >= 0 {
			// Intensity may be written as float or integer.
			iv, err := strconv.ParseFloat(cols[ii], 64)
			if err != nil {
				return nil, fmt.Errorf("bad intensity value %q: %w", cols[ii], err)
			}
			if iv < 0 {
				iv = 0
			} else if iv > 255 {
				iv = 255
			}
			p.Intensity = uint8(iv)
		}
		out = append(out, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning PCD data: %w", err)
	}

	if !dataASCII {
		return nil, fmt.Errorf("missing DATA ascii section")
	}
	if points >= 0 && len(out) != points {
		return nil, fmt.Errorf("POINTS declares %d rows, file has %d", points, len(out))
	}
	return out, nil
}
