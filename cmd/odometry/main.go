// Command odometry replays a recorded sequence of PCD frames through
// the incremental registration engine and reports the estimated
// trajectory.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"path/filepath"
	"sort"
	"time"

	"github.com/banshee-data/scanmatch/internal/config"
	"github.com/banshee-data/scanmatch/internal/fsutil"
	"github.com/banshee-data/scanmatch/internal/geom"
	"github.com/banshee-data/scanmatch/internal/monitoring"
	"github.com/banshee-data/scanmatch/internal/pcdio"
	"github.com/banshee-data/scanmatch/internal/register"
	"github.com/banshee-data/scanmatch/internal/register/icp"
	"github.com/banshee-data/scanmatch/internal/security"
	"github.com/banshee-data/scanmatch/internal/units"
	"github.com/banshee-data/scanmatch/internal/version"
)

var (
	cloudsGlob  = flag.String("clouds", "", "Glob of PCD files to replay, in lexical order (e.g. 'scans/*.pcd')")
	sensorID    = flag.String("sensor", "replay", "Sensor ID recorded on loaded frames")
	configPath  = flag.String("config", "", "Path to registration tuning JSON (optional)")
	speedUnits  = flag.String("units", "", "Speed units for reporting: mps, mph, kmph (overrides config)")
	exportDir   = flag.String("export-dir", "", "Export accepted frames, transformed into the trajectory frame, into this directory")
	debug       = flag.Bool("debug", false, "Enable per-align ICP diagnostics")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("odometry %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if *cloudsGlob == "" {
		log.Fatal("missing -clouds glob")
	}

	cfg := config.EmptyRegistrationConfig()
	if *configPath != "" {
		loaded, err := config.LoadRegistrationConfig(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		cfg = loaded
	}

	unit := cfg.GetSpeedUnits()
	if *speedUnits != "" {
		if !units.IsValid(*speedUnits) {
			log.Fatalf("invalid -units %q, must be one of %s", *speedUnits, units.GetValidUnitsString())
		}
		unit = *speedUnits
	}

	icpCfg := cfg.ICPConfig()
	if *debug {
		icpCfg.Debug = true
	}

	paths, err := filepath.Glob(*cloudsGlob)
	if err != nil {
		log.Fatalf("bad -clouds glob: %v", err)
	}
	if len(paths) == 0 {
		log.Fatalf("no files match %q", *cloudsGlob)
	}
	sort.Strings(paths)

	if err := run(paths, icpCfg, unit, *sensorID, *exportDir); err != nil {
		log.Fatal(err)
	}
}

// run replays the sequence and logs the trajectory. Split from main
// for testability.
func run(paths []string, icpCfg icp.Config, unit, sensor, exportDir string) error {
	codec := pcdio.NewCodec(fsutil.OSFileSystem{})
	engine := register.NewIncrementalRegistration(icp.NewAligner(icpCfg))

	if exportDir != "" {
		if err := (fsutil.OSFileSystem{}).MkdirAll(exportDir, 0755); err != nil {
			return fmt.Errorf("creating export dir: %w", err)
		}
	}

	var (
		accepted int
		rejected int
		lastTS   time.Time
		lastPose = geom.Identity()
	)

	// Constant-velocity prior: seed each alignment with the last
	// accepted delta. On the first frame this is identity, which also
	// pins the trajectory origin to the first sensor pose.
	for i, path := range paths {
		frame, err := codec.ReadFrame(path, sensor)
		if err != nil {
			return err
		}

		ok, err := engine.RegisterCloud(frame, engine.DeltaTransform())
		if err != nil {
			return fmt.Errorf("registering %s: %w", path, err)
		}
		if !ok {
			rejected++
			monitoring.Logf("frame %d (%s): alignment did not converge, skipping", i, filepath.Base(path))
			continue
		}
		accepted++

		pose := engine.AbsoluteTransform()
		x, y, z := pose.Translation()
		msg := fmt.Sprintf("frame %d (%s): pose=(%.3f, %.3f, %.3f)", i, filepath.Base(path), x, y, z)
		if speed, ok := groundSpeed(lastPose, pose, lastTS, frame.Timestamp); ok {
			msg += fmt.Sprintf(" speed=%.2f %s", units.ConvertSpeed(speed, unit), unit)
		}
		monitoring.Logf("%s", msg)
		lastPose = pose
		lastTS = frame.Timestamp

		if exportDir != "" {
			name := fmt.Sprintf("aligned_%04d.pcd", i)
			outPath, err := security.ValidateExportPath(name, exportDir)
			if err != nil {
				return fmt.Errorf("export path: %w", err)
			}
			if err := codec.WriteFrame(outPath, frame.Transform(pose)); err != nil {
				return err
			}
		}
	}

	x, y, z := engine.AbsoluteTransform().Translation()
	monitoring.Logf("replayed %d frames: %d accepted, %d rejected, final pose=(%.3f, %.3f, %.3f)",
		len(paths), accepted, rejected, x, y, z)
	return nil
}

// groundSpeed derives the scalar speed in m/s between two consecutive
// accepted poses. Returns ok=false when the timestamps cannot support
// a rate (unset, equal, or out of order).
func groundSpeed(prev, cur geom.Mat4, prevTS, curTS time.Time) (float64, bool) {
	if prevTS.IsZero() || curTS.IsZero() || !curTS.After(prevTS) {
		return 0, false
	}
	px, py, pz := prev.Translation()
	cx, cy, cz := cur.Translation()
	dx, dy, dz := cx-px, cy-py, cz-pz
	dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
	return dist / curTS.Sub(prevTS).Seconds(), true
}
