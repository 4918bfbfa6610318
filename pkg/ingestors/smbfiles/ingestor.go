// Package smbfiles ingests SMB share crawl output (smbthing JSON or
// JSONL, optionally gzip or zstd compressed) into smb_file records.
package smbfiles

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/redopsio/cyberkb/pkg/core"
	"github.com/redopsio/cyberkb/pkg/cyberdb"
	kberrors "github.com/redopsio/cyberkb/pkg/errors"
	"github.com/redopsio/cyberkb/pkg/metrics"
)

const name = "smbfiles"

// entry is one crawled SMB object.
type entry struct {
	Target      string   `json:"target"`
	Share       string   `json:"share"`
	Directory   string   `json:"directory"`
	File        string   `json:"file"`
	Size        int64    `json:"size"`
	IsDirectory flexBool `json:"is_directory"`
}

// flexBool accepts JSON booleans and 0/1 numbers; crawler versions differ.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("1")):
		*b = true
	default:
		*b = false
	}
	return nil
}

// Ingestor parses SMB crawl exports.
type Ingestor struct{}

// New creates an smbfiles ingestor.
func New() *Ingestor { return &Ingestor{} }

// Name returns the ingestor name.
func (i *Ingestor) Name() string { return name }

// Description returns a short human-readable description.
func (i *Ingestor) Description() string {
	return "Parses SMB share crawl exports (JSON/JSONL, gz/zst) into hosts and smb_file records"
}

// Autodetect reports that crawl exports are detected on files.
func (i *Ingestor) Autodetect() cyberdb.Autodetect { return cyberdb.AutodetectFile }

// Match recognizes .json/.jsonl exports, optionally compressed. Plain
// files additionally need the crawl keys near the start; compressed files
// are accepted on extension alone.
func (i *Ingestor) Match(path string) bool {
	base := core.StripCompressionExt(path)
	if !strings.HasSuffix(base, ".json") && !strings.HasSuffix(base, ".jsonl") {
		return false
	}
	if base != path {
		return true
	}
	prefix := core.SniffPrefix(path, 500)
	return strings.Contains(prefix, `"target"`) && strings.Contains(prefix, `"share"`)
}

// Run ingests the export at path. Entries stream through a decoder; a
// broken entry is logged and skipped.
func (i *Ingestor) Run(db *cyberdb.CyberDB, path string) error {
	const op = "smbfiles.Ingestor.Run"

	r, err := core.OpenInput(path)
	if err != nil {
		return kberrors.Wrap(kberrors.KindInvalidInput, op, "open input", err)
	}
	defer r.Close()

	if strings.HasSuffix(core.StripCompressionExt(path), ".json") {
		return i.ingestArray(db, r)
	}
	return i.ingestLines(db, r)
}

// ingestArray reads a .json document: either an array of entries or one
// bare entry.
func (i *Ingestor) ingestArray(db *cyberdb.CyberDB, r io.Reader) error {
	const op = "smbfiles.Ingestor.ingestArray"

	data, err := io.ReadAll(r)
	if err != nil {
		return kberrors.Wrap(kberrors.KindInvalidInput, op, "read export", err)
	}

	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		var single entry
		if err := json.Unmarshal(data, &single); err != nil {
			return kberrors.Wrap(kberrors.KindInvalidInput, op, "decode export", err)
		}
		entries = []entry{single}
	}
	for _, e := range entries {
		i.feed(db, e)
	}
	return nil
}

// ingestLines reads newline-delimited JSON entries.
func (i *Ingestor) ingestLines(db *cyberdb.CyberDB, r io.Reader) error {
	log := db.Logger()
	for line := range core.Lines(r) {
		var e entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			metrics.RowsSkipped.WithLabelValues(name).Inc()
			log.Debug("skipping malformed entry: %v", err)
			continue
		}
		i.feed(db, e)
	}
	return nil
}

func (i *Ingestor) feed(db *cyberdb.CyberDB, e entry) {
	log := db.Logger()
	if e.Target == "" || e.Share == "" {
		metrics.RowsSkipped.WithLabelValues(name).Inc()
		log.Debug("skipping entry without target/share")
		return
	}

	if _, err := db.Feed("host", cyberdb.Fields{"ip": e.Target}); err != nil {
		log.Error("feed host %s: %v", e.Target, err)
		return
	}
	fields := cyberdb.Fields{
		"host":         e.Target,
		"share":        e.Share,
		"directory":    e.Directory,
		"file":         e.File,
		"size":         e.Size,
		"is_directory": bool(e.IsDirectory),
	}
	if _, err := db.Feed("smb_file", fields); err != nil {
		metrics.RowsSkipped.WithLabelValues(name).Inc()
		log.Debug("skipping entry: %v", err)
	}
}
