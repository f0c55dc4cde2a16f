// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

package archive

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/telegraphus/internal/logging"
	"github.com/tomtom215/telegraphus/internal/models"
)

// recordsExt is the on-disk extension for per-print record files.
const recordsExt = ".records"

// maxRecordLine caps a single record line; anything longer is treated as
// corrupt and skipped.
const maxRecordLine = 4 * 1024 * 1024

// ErrNotFound is returned when the requested archive file does not
// exist.
var ErrNotFound = errors.New("archive not found")

// dateDirRe matches the YYYY-MM-DD directory names the writer creates.
var dateDirRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Info describes one archived print file.
type Info struct {
	// Date is the YYYY-MM-DD directory the file lives in.
	Date string `json:"date"`

	// Filename is the sanitized print filename without the records
	// extension.
	Filename string `json:"filename"`

	// SizeBytes is the current file size.
	SizeBytes int64 `json:"size_bytes"`

	// ModifiedMS is the file's last modification time in Unix
	// milliseconds.
	ModifiedMS int64 `json:"modified_ms"`
}

// Reader lists and loads archived prints. It opens files independently
// of the writer; an archive being appended to reads cleanly up to the
// last complete line.
type Reader struct {
	root string
}

// NewReader creates a reader over the given archive root.
func NewReader(root string) *Reader {
	return &Reader{root: root}
}

// List returns every archived print, sorted by date then filename.
// A missing root directory is an empty archive, not an error.
func (r *Reader) List() ([]Info, error) {
	days, err := os.ReadDir(r.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []Info{}, nil
		}
		return nil, fmt.Errorf("reading archive root: %w", err)
	}

	out := []Info{}
	for _, day := range days {
		if !day.IsDir() || !dateDirRe.MatchString(day.Name()) {
			continue
		}
		files, err := os.ReadDir(filepath.Join(r.root, day.Name()))
		if err != nil {
			logging.Err(err).Str("date", day.Name()).Msg("skipping unreadable archive day")
			continue
		}
		for _, f := range files {
			name := f.Name()
			if f.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, recordsExt) {
				continue
			}
			fi, err := f.Info()
			if err != nil {
				continue
			}
			out = append(out, Info{
				Date:       day.Name(),
				Filename:   strings.TrimSuffix(name, recordsExt),
				SizeBytes:  fi.Size(),
				ModifiedMS: fi.ModTime().UnixMilli(),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Filename < out[j].Filename
	})
	return out, nil
}

// Read loads every complete record from one archived print. Malformed
// lines, including a torn trailing line from a crash mid-append, are
// skipped with a warning rather than failing the whole read.
func (r *Reader) Read(date, filename string) ([]*models.Packet, error) {
	if !dateDirRe.MatchString(date) {
		return nil, fmt.Errorf("%w: invalid date %q", ErrNotFound, date)
	}
	if filename == "" || filename != SanitizeFilename(filename) {
		// A name the writer could never have produced cannot exist on
		// disk; rejecting it also blocks path traversal.
		return nil, fmt.Errorf("%w: invalid filename %q", ErrNotFound, filename)
	}

	path := filepath.Join(r.root, date, filename+recordsExt)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, date, filename)
		}
		return nil, fmt.Errorf("opening archive %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var packets []*models.Packet
	skipped := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxRecordLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var pkt models.Packet
		if err := json.Unmarshal(line, &pkt); err != nil {
			skipped++
			continue
		}
		packets = append(packets, &pkt)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading archive %s: %w", path, err)
	}
	if skipped > 0 {
		logging.Warn().Str("path", path).Int("skipped", skipped).
			Msg("archive contained malformed records")
	}
	return packets, nil
}
