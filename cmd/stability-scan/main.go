// stability-scan walks a DOBACK upload tree, ingests every recognized raw
// file, runs the sanitize/classify/cluster pipeline over the GPS and
// stability sessions it finds, and prints the resulting hotspot clusters as
// JSON. With -watch it keeps running and feeds filesystem notifications
// into the tracker as new files land.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/doback-data/stability.report/internal/cluster"
	"github.com/doback-data/stability.report/internal/config"
	"github.com/doback-data/stability.report/internal/fsutil"
	"github.com/doback-data/stability.report/internal/ingest"
	"github.com/doback-data/stability.report/internal/ingest/parse"
	"github.com/doback-data/stability.report/internal/ingest/watch"
	"github.com/doback-data/stability.report/internal/stability"
	"github.com/doback-data/stability.report/internal/track"
)

type report struct {
	Files    ingest.Stats              `json:"files"`
	Tracks   map[string]track.Stats    `json:"tracks"`
	Events   int                       `json:"events"`
	Clusters []cluster.Cluster         `json:"clusters"`
	Records  []ingest.ProcessingRecord `json:"records,omitempty"`
}

func main() {
	var base, cfgPath string
	var watchMode, dumpRecords bool

	flag.StringVar(&base, "base", "data", "base directory holding organization subdirectories")
	flag.StringVar(&cfgPath, "config", "", "optional tuning config JSON file")
	flag.BoolVar(&watchMode, "watch", false, "keep watching type folders and reprocess on new files")
	flag.BoolVar(&dumpRecords, "records", false, "include the full processing record audit trail in output")
	flag.Parse()

	tuning := config.EmptyTuningConfig()
	if cfgPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(cfgPath)
		if err != nil {
			log.Fatalf("load tuning config: %v", err)
		}
	}

	tracker := ingest.NewTracker(ingest.DefaultConfig())

	vehicles, err := discoverAll(tracker, base)
	if err != nil {
		log.Fatalf("discover: %v", err)
	}
	fmt.Fprintf(os.Stderr, "scanning %d vehicle directories under %s\n", len(vehicles), base)

	if err := emitReport(tracker, tuning, dumpRecords); err != nil {
		log.Fatalf("process: %v", err)
	}

	if !watchMode {
		return
	}

	w, err := watch.New(tracker)
	if err != nil {
		log.Fatalf("start watcher: %v", err)
	}
	defer w.Close()
	for _, v := range vehicles {
		for _, folder := range []string{"CAN", "GPS", "estabilidad", "ROTATIVO"} {
			dir := filepath.Join(v, folder)
			if _, statErr := os.Stat(dir); statErr == nil {
				if addErr := w.Add(dir); addErr != nil {
					log.Printf("watch: %v", addErr)
				}
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	fmt.Fprintln(os.Stderr, "watching for new files; Ctrl-C to stop")
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("watcher: %v", err)
	}
}

// discoverAll walks organizations and vehicles and scans every vehicle
// directory, returning the vehicle paths for the watch phase.
func discoverAll(tracker *ingest.Tracker, base string) ([]string, error) {
	orgs, err := tracker.DiscoverOrganizations(base)
	if err != nil {
		return nil, err
	}

	var all []string
	for _, org := range orgs {
		vehicles, err := tracker.DiscoverVehicles(org)
		if err != nil {
			return nil, err
		}
		for _, v := range vehicles {
			if _, err := tracker.Scan(v); err != nil {
				return nil, err
			}
			all = append(all, v)
		}
	}
	return all, nil
}

// emitReport processes every discovered GPS and stability file and writes
// the pipeline output as JSON to stdout.
func emitReport(tracker *ingest.Tracker, tuning *config.TuningConfig, dumpRecords bool) error {
	fs := fsutil.OSFileSystem{}
	sanitizeCfg := track.FromTuning(tuning)
	thresholds := stability.ThresholdsFromTuning(tuning)
	clusterParams := cluster.ParamsFromTuning(tuning)

	trackStats := make(map[string]track.Stats)
	var allEvents []stability.Event

	for _, rec := range tracker.Records() {
		if rec.Status != ingest.StatusDiscovered {
			continue
		}
		key := rec.Descriptor.Key()

		switch rec.Descriptor.FileType {
		case ingest.FileTypeGPS:
			if err := tracker.MarkProcessing(key); err != nil {
				return err
			}
			data, err := fs.ReadFile(rec.Descriptor.Path)
			if err != nil {
				if markErr := tracker.MarkFailed(key, err); markErr != nil {
					return markErr
				}
				continue
			}
			samples, skipped := parse.GPS(data)
			if skipped > 0 {
				log.Printf("%s: skipped %d malformed lines", key, skipped)
			}
			_, stats := track.Sanitize(samples, sanitizeCfg)
			trackStats[key] = stats
			if err := tracker.MarkProcessed(key, uuid.New().String()); err != nil {
				return err
			}

		case ingest.FileTypeStability:
			if err := tracker.MarkProcessing(key); err != nil {
				return err
			}
			data, err := fs.ReadFile(rec.Descriptor.Path)
			if err != nil {
				if markErr := tracker.MarkFailed(key, err); markErr != nil {
					return markErr
				}
				continue
			}
			samples, skipped := parse.Stability(data)
			if skipped > 0 {
				log.Printf("%s: skipped %d malformed lines", key, skipped)
			}
			allEvents = append(allEvents, stability.Classify(samples, thresholds)...)
			if err := tracker.MarkProcessed(key, uuid.New().String()); err != nil {
				return err
			}
		}
	}

	out := report{
		Files:    tracker.Stats(),
		Tracks:   trackStats,
		Events:   len(allEvents),
		Clusters: cluster.Aggregate(allEvents, clusterParams),
	}
	if dumpRecords {
		out.Records = tracker.Records()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
