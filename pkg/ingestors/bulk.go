package ingestors

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/redopsio/cyberkb/pkg/cyberdb"
	kberrors "github.com/redopsio/cyberkb/pkg/errors"
	"github.com/redopsio/cyberkb/pkg/metrics"
)

// =============================================================================
// Bulk Ingestor - Autodetecting directory walker
// =============================================================================

// Bulk walks a directory tree top-down and routes every recognized entry
// to the ingestor whose detection matches it. It is registered under the
// name "all" so callers ingest whole engagement directories the same way
// they ingest a single file.
//
// A directory claimed by a directory-capable ingestor is not descended
// into unless multiple matches are allowed, so a claimed tool directory
// (for example a BloodHound export) is consumed exactly once.
type Bulk struct {
	reg *Registry
}

// NewBulk creates the bulk walker backed by reg.
func NewBulk(reg *Registry) *Bulk {
	return &Bulk{reg: reg}
}

// Name returns the ingestor name.
func (b *Bulk) Name() string { return "all" }

// Description returns a short human-readable description.
func (b *Bulk) Description() string {
	return "Walks a directory tree and routes every recognized file or directory to its matching ingestor"
}

// Autodetect reports that the bulk walker never claims paths itself.
func (b *Bulk) Autodetect() cyberdb.Autodetect { return cyberdb.AutodetectNone }

// Match always reports false; the walker is invoked by name only.
func (b *Bulk) Match(string) bool { return false }

// Run walks root and ingests every matching entry. A failing ingestor is
// logged and skipped; the walk continues. Only detection is serialized by
// registration order, so the first matching ingestor wins.
func (b *Bulk) Run(db *cyberdb.CyberDB, root string) error {
	const op = "ingestors.Bulk.Run"

	if _, err := os.Stat(root); err != nil {
		return kberrors.Newf(kberrors.KindNotFound, op, "path %q does not exist", root)
	}

	log := db.Logger()
	allowMultiple := db.Config().Ingest.AllowMultiple

	var dirCapable, fileCapable []cyberdb.Ingestor
	for _, ing := range b.reg.All() {
		ad := ing.Autodetect()
		if ad.Dir() {
			dirCapable = append(dirCapable, ing)
		}
		if ad.File() {
			fileCapable = append(fileCapable, ing)
		}
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn("skipping %s: %v", path, err)
			return nil
		}

		if d.IsDir() {
			for _, ing := range dirCapable {
				if !ing.Match(path) {
					continue
				}
				log.Info("[MATCH DIR] %s -> %s", path, ing.Name())
				b.runOne(db, ing, path)
				if !allowMultiple {
					return fs.SkipDir
				}
				// First directory match wins; files beneath are still
				// probed individually when multiple matches are allowed.
				break
			}
			return nil
		}

		for _, ing := range fileCapable {
			if !ing.Match(path) {
				continue
			}
			log.Info("[MATCH FILE] %s -> %s", path, ing.Name())
			b.runOne(db, ing, path)
			if !allowMultiple {
				break
			}
		}
		return nil
	})
}

// runOne executes a single matched ingestor, containing its failure so a
// broken input file cannot abort the rest of the walk.
func (b *Bulk) runOne(db *cyberdb.CyberDB, ing cyberdb.Ingestor, path string) {
	if err := ing.Run(db, path); err != nil {
		metrics.IngestorRuns.WithLabelValues(ing.Name(), "error").Inc()
		db.Logger().Error("ingestor %s failed on %s: %v", ing.Name(), path, err)
		return
	}
	metrics.IngestorRuns.WithLabelValues(ing.Name(), "success").Inc()
}
