package cyberdb

// Autodetect declares what a plugin can classify during bulk ingestion.
// It replaces capability flags with an explicit variant: a plugin either
// opts out of autodetection or recognizes files, directories, or both.
type Autodetect int

const (
	// AutodetectNone opts the ingestor out of bulk autodetection.
	AutodetectNone Autodetect = iota

	// AutodetectFile lets the ingestor claim individual files.
	AutodetectFile

	// AutodetectDir lets the ingestor claim whole directories.
	AutodetectDir

	// AutodetectBoth lets the ingestor claim either.
	AutodetectBoth
)

// File reports whether the mode covers individual files.
func (a Autodetect) File() bool { return a == AutodetectFile || a == AutodetectBoth }

// Dir reports whether the mode covers directories.
func (a Autodetect) Dir() bool { return a == AutodetectDir || a == AutodetectBoth }

// Ingestor parses one external tool's output format into entity records.
//
// Run must tolerate malformed individual rows (skip, optionally log) and
// reserve errors for inputs whose overall structure is unusable. Match is
// the autodetection predicate; it must stay cheap (bounded content sniff
// plus filename checks) and is only consulted for the path kinds declared
// by Autodetect.
type Ingestor interface {
	Name() string
	Description() string
	Autodetect() Autodetect
	Match(path string) bool
	Run(db *CyberDB, path string) error
}

// Scanner evaluates a security condition over stored entities and emits
// controls and alerts through the Emitter. Controls() lists the named
// checks the scanner covers; Tags() groups scanners for sweeps ("default"
// marks scanners run by the standard sweep).
type Scanner interface {
	Name() string
	Description() string
	Controls() []string
	Tags() []string
	Run(db *CyberDB, e *Emitter) error
}

// IngestorSource resolves ingestors by name. Implemented by the ingestor
// registry; the facade only needs lookup.
type IngestorSource interface {
	Lookup(name string) (Ingestor, bool)
}

// ScannerSource resolves scanners by name and enumerates them in
// registration order.
type ScannerSource interface {
	Lookup(name string) (Scanner, bool)
	All() []Scanner
}
