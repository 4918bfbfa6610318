package cyberdb

import (
	"iter"
	"sort"
	"time"

	"github.com/redopsio/cyberkb/pkg/config"
	"github.com/redopsio/cyberkb/pkg/core"
	kberrors "github.com/redopsio/cyberkb/pkg/errors"
	"github.com/redopsio/cyberkb/pkg/metrics"
)

// CyberDB is the knowledge-base facade: the entity store plus the plugin
// operations (ingest, scan) built on top of it.
type CyberDB struct {
	store     Store
	log       core.Logger
	cfg       *config.Config
	ingestors IngestorSource
	scanners  ScannerSource
}

// Option configures a CyberDB.
type Option func(*CyberDB)

// WithLogger sets the logger.
func WithLogger(l core.Logger) Option {
	return func(db *CyberDB) { db.log = l }
}

// WithConfig sets the engine configuration.
func WithConfig(cfg *config.Config) Option {
	return func(db *CyberDB) { db.cfg = cfg }
}

// WithIngestors attaches the ingestor registry.
func WithIngestors(src IngestorSource) Option {
	return func(db *CyberDB) { db.ingestors = src }
}

// WithScanners attaches the scanner registry.
func WithScanners(src ScannerSource) Option {
	return func(db *CyberDB) { db.scanners = src }
}

// New creates a CyberDB over the given store.
func New(store Store, opts ...Option) *CyberDB {
	db := &CyberDB{
		store: store,
		log:   core.NewDefaultLogger("cyberdb", core.LogLevelInfo),
		cfg:   config.Default(),
	}
	for _, opt := range opts {
		opt(db)
	}
	metrics.Register()
	return db
}

// Logger returns the logger plugins should use.
func (db *CyberDB) Logger() core.Logger { return db.log }

// Config returns the active engine configuration.
func (db *CyberDB) Config() *config.Config { return db.cfg }

// Feed upserts an entity record by natural key.
func (db *CyberDB) Feed(entity string, fields Fields) (*Record, error) {
	rec, err := db.store.Feed(entity, fields)
	if err == nil {
		metrics.RecordsFed.WithLabelValues(entity).Inc()
	}
	return rec, err
}

// Request returns a lazy, filterable sequence over an entity's records.
func (db *CyberDB) Request(entity string, filters ...Filter) (iter.Seq[*Record], error) {
	return db.store.Request(entity, filters...)
}

// First returns the first matching record, or nil when none matches.
func (db *CyberDB) First(entity string, filters ...Filter) (*Record, error) {
	return db.store.First(entity, filters...)
}

// Emitter returns the control/alert emitter bound to the named scanner.
func (db *CyberDB) Emitter(scanner string) *Emitter {
	return &Emitter{db: db, scanner: scanner}
}

// Ingest runs one named ingestor over one or more paths. Per-path errors
// are logged and returned: unlike the bulk walker, direct invocation
// propagates failures to the caller.
func (db *CyberDB) Ingest(name string, paths ...string) error {
	const op = "cyberdb.Ingest"
	if db.ingestors == nil {
		return kberrors.New(kberrors.KindInternal, op, "no ingestor registry attached")
	}
	ing, ok := db.ingestors.Lookup(name)
	if !ok {
		return kberrors.Newf(kberrors.KindNotFound, op, "unknown ingestor %q", name)
	}

	for _, path := range paths {
		db.log.Info("ingesting %s with %s", path, name)
		if err := ing.Run(db, path); err != nil {
			db.log.Error("error ingesting %s with %s ingestor: %v", path, name, err)
			metrics.IngestorRuns.WithLabelValues(name, "error").Inc()
			return err
		}
		metrics.IngestorRuns.WithLabelValues(name, "success").Inc()
	}
	return nil
}

// Scan runs one scanner by name.
func (db *CyberDB) Scan(name string) error {
	const op = "cyberdb.Scan"
	if db.scanners == nil {
		return kberrors.New(kberrors.KindInternal, op, "no scanner registry attached")
	}
	sc, ok := db.scanners.Lookup(name)
	if !ok {
		return kberrors.Newf(kberrors.KindNotFound, op, "unknown scanner %q", name)
	}
	return db.runScanner(sc)
}

func (db *CyberDB) runScanner(sc Scanner) error {
	start := time.Now()
	err := sc.Run(db, db.Emitter(sc.Name()))
	metrics.ScannerDuration.WithLabelValues(sc.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ScannerRuns.WithLabelValues(sc.Name(), "error").Inc()
		return err
	}
	metrics.ScannerRuns.WithLabelValues(sc.Name(), "success").Inc()
	return nil
}

// ScanForControls resolves which scanners cover the requested named checks
// and runs each matching scanner once. An unknown check name fails before
// any scanner runs, so no partial results are written.
func (db *CyberDB) ScanForControls(controls ...string) error {
	const op = "cyberdb.ScanForControls"
	if db.scanners == nil {
		return kberrors.New(kberrors.KindInternal, op, "no scanner registry attached")
	}

	requested := make(map[string]bool, len(controls))
	for _, c := range controls {
		requested[c] = true
	}

	var matching []Scanner
	covered := make(map[string]bool)
	for _, sc := range db.scanners.All() {
		matched := false
		for _, c := range sc.Controls() {
			if requested[c] {
				covered[c] = true
				matched = true
			}
		}
		if matched {
			matching = append(matching, sc)
		}
	}

	var uncovered []string
	for c := range requested {
		if !covered[c] {
			uncovered = append(uncovered, c)
		}
	}
	if len(uncovered) > 0 {
		sort.Strings(uncovered)
		return kberrors.Newf(kberrors.KindNoCoverage, op, "no scanners found for controls: %v", uncovered)
	}

	for _, sc := range matching {
		db.log.Info("running scanner %q for requested controls", sc.Name())
		if err := db.runScanner(sc); err != nil {
			return err
		}
	}
	return nil
}

// GetControls returns all control rows recorded for the named check.
func (db *CyberDB) GetControls(control string, filters ...Filter) ([]*Record, error) {
	all := append([]Filter{Eq("name", control)}, filters...)
	seq, err := db.Request("control", all...)
	if err != nil {
		return nil, err
	}
	var out []*Record
	for rec := range seq {
		out = append(out, rec)
	}
	return out, nil
}

// GetObservations returns the failing control rows recorded for the named
// check.
func (db *CyberDB) GetObservations(control string, filters ...Filter) ([]*Record, error) {
	return db.GetControls(control, append([]Filter{Eq("status", StatusKO)}, filters...)...)
}
