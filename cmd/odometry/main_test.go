package main

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/scanmatch/internal/cloud"
	"github.com/banshee-data/scanmatch/internal/fsutil"
	"github.com/banshee-data/scanmatch/internal/geom"
	"github.com/banshee-data/scanmatch/internal/monitoring"
	"github.com/banshee-data/scanmatch/internal/pcdio"
	"github.com/banshee-data/scanmatch/internal/register/icp"
)

func TestGroundSpeed(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		prev, cur geom.Mat4
		prevTS    time.Time
		curTS     time.Time
		wantSpeed float64
		wantOK    bool
	}{
		{
			name:      "1m in 1s",
			prev:      geom.Identity(),
			cur:       geom.Translation(1, 0, 0),
			prevTS:    t0,
			curTS:     t0.Add(time.Second),
			wantSpeed: 1.0,
			wantOK:    true,
		},
		{
			name:      "3-4-5 diagonal in 2s",
			prev:      geom.Identity(),
			cur:       geom.Translation(3, 4, 0),
			prevTS:    t0,
			curTS:     t0.Add(2 * time.Second),
			wantSpeed: 2.5,
			wantOK:    true,
		},
		{name: "zero prev timestamp", cur: geom.Identity(), curTS: t0, wantOK: false},
		{name: "equal timestamps", prev: geom.Identity(), cur: geom.Identity(), prevTS: t0, curTS: t0, wantOK: false},
		{name: "out of order", prev: geom.Identity(), cur: geom.Identity(), prevTS: t0.Add(time.Second), curTS: t0, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			speed, ok := groundSpeed(tt.prev, tt.cur, tt.prevTS, tt.curTS)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && math.Abs(speed-tt.wantSpeed) > 1e-9 {
				t.Errorf("speed = %v, want %v", speed, tt.wantSpeed)
			}
		})
	}
}

// baseGrid is a dense synthetic scene for replay tests.
func baseGrid() []cloud.Point {
	var pts []cloud.Point
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			for k := 0; k < 3; k++ {
				pts = append(pts, cloud.Point{
					X: float64(i) * 0.5,
					Y: float64(j) * 0.5,
					Z: float64(k) * 0.5,
				})
			}
		}
	}
	return pts
}

func TestRunReplaysSequence(t *testing.T) {
	dir := t.TempDir()
	codec := pcdio.NewCodec(fsutil.OSFileSystem{})

	// Three frames: the sensor advances 0.05m along +X per frame, so
	// the scene appears to shift -0.05m in the sensor frame.
	base := cloud.NewFrame("fixture", time.Now(), baseGrid())
	for k := 0; k < 3; k++ {
		f := base.Transform(geom.Translation(-0.05*float64(k), 0, 0))
		path := filepath.Join(dir, fmt.Sprintf("frame_%02d.pcd", k))
		if err := codec.WriteFrame(path, f); err != nil {
			t.Fatalf("writing fixture: %v", err)
		}
	}

	var logs []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logs = append(logs, fmt.Sprintf(format, v...))
	})
	defer monitoring.SetLogger(nil)

	paths := []string{
		filepath.Join(dir, "frame_00.pcd"),
		filepath.Join(dir, "frame_01.pcd"),
		filepath.Join(dir, "frame_02.pcd"),
	}
	exportDir := filepath.Join(dir, "aligned")
	if err := run(paths, icp.DefaultConfig(), "mps", "test-sensor", exportDir); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(logs) == 0 {
		t.Fatal("run produced no log output")
	}
	summary := logs[len(logs)-1]
	if !strings.Contains(summary, "3 accepted, 0 rejected") {
		t.Errorf("summary = %q, want 3 accepted / 0 rejected", summary)
	}
	// Final pose: two accepted deltas of +0.05m each.
	if !strings.Contains(summary, "final pose=(0.100") {
		t.Errorf("summary = %q, want final pose x=0.100", summary)
	}

	// Exported aligned frames exist for every accepted frame.
	for k := 0; k < 3; k++ {
		path := filepath.Join(exportDir, fmt.Sprintf("aligned_%04d.pcd", k))
		if !(fsutil.OSFileSystem{}).Exists(path) {
			t.Errorf("missing exported frame %s", path)
		}
	}
}

func TestRunMissingFile(t *testing.T) {
	monitoring.SetLogger(func(string, ...interface{}) {})
	defer monitoring.SetLogger(nil)

	err := run([]string{filepath.Join(t.TempDir(), "missing.pcd")}, icp.DefaultConfig(), "mps", "s", "")
	if err == nil {
		t.Error("run accepted a missing input file")
	}
}
