package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/doback-data/stability.report/internal/fsutil"
	"github.com/doback-data/stability.report/internal/timeutil"
)

// Status is the lifecycle state of a tracked file.
type Status string

const (
	StatusDiscovered Status = "DISCOVERED" // Seen on disk, not yet handed to a processor
	StatusProcessing Status = "PROCESSING" // Handed to the session processor
	StatusProcessed  Status = "PROCESSED"  // Session extracted successfully
	StatusFailed     Status = "FAILED"     // Processor reported an error
)

// Sentinel errors for precondition violations. These indicate a caller bug
// and are never swallowed.
var (
	ErrUnknownFile   = errors.New("ingest: unknown file key")
	ErrBadTransition = errors.New("ingest: illegal status transition")
)

// typeFolders are the per-vehicle subfolders holding raw files, as laid out
// by the onboard upload agent.
var typeFolders = []string{"CAN", "GPS", "estabilidad", "ROTATIVO"}

// DefaultVehicleDirPrefix recognizes vehicle directories inside an
// organization directory.
const DefaultVehicleDirPrefix = "DOBACK"

// ProcessingRecord owns one FileDescriptor plus its mutable processing
// state. At most one record exists per identity key; records are the audit
// trail and are never proactively deleted.
type ProcessingRecord struct {
	Descriptor  FileDescriptor `json:"descriptor"`
	Status      Status         `json:"status"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	SessionID   string         `json:"session_id,omitempty"`
}

// Config configures a Tracker. Zero values get sensible defaults from
// DefaultConfig.
type Config struct {
	// FS is the filesystem the tracker scans. Defaults to the OS filesystem.
	FS fsutil.FileSystem

	// Clock stamps processing transitions. Defaults to the real clock.
	Clock timeutil.Clock

	// VehicleDirPrefix recognizes vehicle directories. Defaults to "DOBACK".
	VehicleDirPrefix string

	// OnDiscovered, when set, is invoked once per newly discovered file,
	// after the record is registered. Called without the tracker lock held.
	OnDiscovered func(ProcessingRecord)

	// Logf receives diagnostics for skipped files. Defaults to log.Printf.
	Logf func(format string, args ...any)
}

// DefaultConfig returns the production tracker configuration.
func DefaultConfig() Config {
	return Config{
		FS:               fsutil.OSFileSystem{},
		Clock:            timeutil.RealClock{},
		VehicleDirPrefix: DefaultVehicleDirPrefix,
		Logf:             log.Printf,
	}
}

// Tracker maintains the authoritative view of which raw files exist and
// what has happened to them. It is an explicitly owned store: multiple
// trackers (per test, per organization) coexist without shared globals.
//
// The record map is guarded by a single mutex, so racing filesystem
// notifications for the same identity key serialize and discovery stays
// idempotent.
type Tracker struct {
	cfg Config

	mu      sync.Mutex
	records map[string]*ProcessingRecord
}

// NewTracker creates a tracker with the given configuration. Unset config
// fields fall back to DefaultConfig values.
func NewTracker(cfg Config) *Tracker {
	def := DefaultConfig()
	if cfg.FS == nil {
		cfg.FS = def.FS
	}
	if cfg.Clock == nil {
		cfg.Clock = def.Clock
	}
	if cfg.VehicleDirPrefix == "" {
		cfg.VehicleDirPrefix = def.VehicleDirPrefix
	}
	if cfg.Logf == nil {
		cfg.Logf = def.Logf
	}
	return &Tracker{
		cfg:     cfg,
		records: make(map[string]*ProcessingRecord),
	}
}

// DiscoverOrganizations lists every immediate subdirectory of basePath.
func (t *Tracker) DiscoverOrganizations(basePath string) ([]string, error) {
	entries, err := t.cfg.FS.ReadDir(basePath)
	if err != nil {
		return nil, fmt.Errorf("list organizations under %s: %w", basePath, err)
	}

	var orgs []string
	for _, e := range entries {
		if e.IsDir() {
			orgs = append(orgs, filepath.Join(basePath, e.Name()))
		}
	}
	sort.Strings(orgs)
	return orgs, nil
}

// DiscoverVehicles lists every immediate subdirectory of orgPath whose name
// carries the vehicle directory prefix.
func (t *Tracker) DiscoverVehicles(orgPath string) ([]string, error) {
	entries, err := t.cfg.FS.ReadDir(orgPath)
	if err != nil {
		return nil, fmt.Errorf("list vehicles under %s: %w", orgPath, err)
	}

	var vehicles []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), t.cfg.VehicleDirPrefix) {
			vehicles = append(vehicles, filepath.Join(orgPath, e.Name()))
		}
	}
	sort.Strings(vehicles)
	return vehicles, nil
}

// Scan walks the four known type subfolders of a vehicle directory and
// registers every file not yet known. Repeated scans of an unchanged tree
// are no-ops: discovery is keyed by file identity and never double-counts.
// Returns the number of newly discovered files.
func (t *Tracker) Scan(vehiclePath string) (int, error) {
	discovered := 0
	for _, folder := range typeFolders {
		dir := filepath.Join(vehiclePath, folder)
		entries, err := t.cfg.FS.ReadDir(dir)
		if err != nil {
			// A vehicle may not carry every sensor; missing folders are fine.
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil {
				t.cfg.Logf("ingest: stat %s: %v", e.Name(), err)
				continue
			}
			if t.discover(filepath.Join(dir, e.Name()), info) {
				discovered++
			}
		}
	}
	return discovered, nil
}

// OnFileSystemEvent is the incremental variant of Scan for a single path,
// fed by a filesystem change notification. A file already tracked, in any
// state, is not re-discovered. Reports whether the path was newly tracked.
func (t *Tracker) OnFileSystemEvent(path string) (bool, error) {
	info, err := t.cfg.FS.Stat(path)
	if err != nil {
		// The file vanished between the notification and the stat.
		return false, nil
	}
	if info.IsDir() {
		return false, nil
	}
	return t.discover(path, info), nil
}

// discover registers the file if its name classifies and it is not already
// tracked. Reports whether a new record was created.
func (t *Tracker) discover(path string, info fs.FileInfo) bool {
	key := filepath.Base(path)

	t.mu.Lock()
	if _, ok := t.records[key]; ok {
		t.mu.Unlock()
		return false
	}

	desc := Classify(path, info)
	if desc == nil {
		t.mu.Unlock()
		t.cfg.Logf("ingest: unrecognized file name %q, skipping", key)
		return false
	}

	rec := &ProcessingRecord{
		Descriptor: *desc,
		Status:     StatusDiscovered,
	}
	t.records[key] = rec
	snapshot := *rec
	t.mu.Unlock()

	if t.cfg.OnDiscovered != nil {
		t.cfg.OnDiscovered(snapshot)
	}
	return true
}

// MarkProcessing transitions a discovered file to PROCESSING.
func (t *Tracker) MarkProcessing(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[key]
	if !ok {
		return fmt.Errorf("mark processing %q: %w", key, ErrUnknownFile)
	}
	if rec.Status != StatusDiscovered {
		return fmt.Errorf("mark processing %q from %s: %w", key, rec.Status, ErrBadTransition)
	}
	rec.Status = StatusProcessing
	return nil
}

// MarkProcessed transitions a processing file to PROCESSED, recording the
// session it produced and when.
func (t *Tracker) MarkProcessed(key, sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[key]
	if !ok {
		return fmt.Errorf("mark processed %q: %w", key, ErrUnknownFile)
	}
	if rec.Status != StatusProcessing {
		return fmt.Errorf("mark processed %q from %s: %w", key, rec.Status, ErrBadTransition)
	}
	now := t.cfg.Clock.Now()
	rec.Status = StatusProcessed
	rec.ProcessedAt = &now
	rec.SessionID = sessionID
	rec.Error = ""
	return nil
}

// MarkFailed transitions a processing file to FAILED with the processor's
// error message.
func (t *Tracker) MarkFailed(key string, cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[key]
	if !ok {
		return fmt.Errorf("mark failed %q: %w", key, ErrUnknownFile)
	}
	if rec.Status != StatusProcessing {
		return fmt.Errorf("mark failed %q from %s: %w", key, rec.Status, ErrBadTransition)
	}
	now := t.cfg.Clock.Now()
	rec.Status = StatusFailed
	rec.ProcessedAt = &now
	if cause != nil {
		rec.Error = cause.Error()
	}
	return nil
}

// Retry resets a failed file to PROCESSING and clears its error. Retry is
// only legal from FAILED; records never regress otherwise.
func (t *Tracker) Retry(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[key]
	if !ok {
		return fmt.Errorf("retry %q: %w", key, ErrUnknownFile)
	}
	if rec.Status != StatusFailed {
		return fmt.Errorf("retry %q from %s: %w", key, rec.Status, ErrBadTransition)
	}
	rec.Status = StatusProcessing
	rec.Error = ""
	rec.ProcessedAt = nil
	return nil
}

// Record returns a copy of the record for key, if tracked.
func (t *Tracker) Record(key string) (ProcessingRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[key]
	if !ok {
		return ProcessingRecord{}, false
	}
	return *rec, true
}

// Records returns a snapshot of all tracked records, sorted by key.
func (t *Tracker) Records() []ProcessingRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]string, 0, len(t.records))
	for k := range t.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]ProcessingRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, *t.records[k])
	}
	return out
}

// Stats is a point-in-time summary of tracked files.
type Stats struct {
	Total    int              `json:"total"`
	ByStatus map[Status]int   `json:"by_status"`
	ByType   map[FileType]int `json:"by_type"`
}

// Stats counts tracked files by state and by file type. Pure read.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Stats{
		Total:    len(t.records),
		ByStatus: make(map[Status]int),
		ByType:   make(map[FileType]int),
	}
	for _, rec := range t.records {
		s.ByStatus[rec.Status]++
		s.ByType[rec.Descriptor.FileType]++
	}
	return s
}
