// Package ingest discovers raw vehicle sensor files under an
// organization/vehicle directory tree, classifies them into descriptors and
// tracks the processing state of every file it has seen.
package ingest

import (
	"io/fs"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// FileType identifies the kind of sensor log a file carries.
type FileType string

const (
	FileTypeCAN            FileType = "CAN"
	FileTypeGPS            FileType = "GPS"
	FileTypeStability      FileType = "STABILITY"
	FileTypeRotatingBeacon FileType = "ROTATING-BEACON"
)

// fileNamePattern is the fixed naming contract for raw sensor files:
// <TYPE>_DOBACK<digits>_<YYYYMMDD>_<digits>.txt
var fileNamePattern = regexp.MustCompile(`^(CAN|GPS|ESTABILIDAD|ROTATIVO)_DOBACK(\d+)_(\d{8})_(\d+)\.txt$`)

// typeKeywords maps the filename keyword to the FileType enum.
var typeKeywords = map[string]FileType{
	"CAN":         FileTypeCAN,
	"GPS":         FileTypeGPS,
	"ESTABILIDAD": FileTypeStability,
	"ROTATIVO":    FileTypeRotatingBeacon,
}

// FileDescriptor is the identity extracted from a raw file's path.
// Immutable once parsed; a re-discovered file gets a fresh descriptor.
type FileDescriptor struct {
	FileType     FileType  `json:"file_type"`
	VehicleID    string    `json:"vehicle_id"`
	Date         string    `json:"date"` // calendar day as found in the name (YYYYMMDD)
	Sequence     int       `json:"sequence"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	Path         string    `json:"path"`
}

// Key returns the stable file identity key: the base file name. The naming
// convention already encodes vehicle, type, date and sequence, and vehicle
// directories never hold two files with the same name.
func (d FileDescriptor) Key() string {
	return filepath.Base(d.Path)
}

// Classify parses a file path into a FileDescriptor, or returns nil when the
// name does not match the naming contract. Size and modification time are
// taken from info when provided. Classification never fails hard: a
// malformed name is a no-op, not an error.
func Classify(path string, info fs.FileInfo) *FileDescriptor {
	name := filepath.Base(path)
	m := fileNamePattern.FindStringSubmatch(name)
	if m == nil {
		return nil
	}

	seq, err := strconv.Atoi(m[4])
	if err != nil {
		// Digit group too large for an int; treat as unrecognized.
		return nil
	}

	d := &FileDescriptor{
		FileType:  typeKeywords[m[1]],
		VehicleID: "DOBACK" + m[2],
		Date:      m[3],
		Sequence:  seq,
		Path:      path,
	}
	if info != nil {
		d.Size = info.Size()
		d.LastModified = info.ModTime()
	}
	return d
}
