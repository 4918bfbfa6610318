// Package eyewitness ingests EyeWitness output directories (Requests.csv)
// into hosts and web services.
package eyewitness

import (
	"encoding/csv"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/redopsio/cyberkb/pkg/cyberdb"
	kberrors "github.com/redopsio/cyberkb/pkg/errors"
	"github.com/redopsio/cyberkb/pkg/metrics"
)

const name = "eyewitness"

// Ingestor parses EyeWitness output directories.
type Ingestor struct{}

// New creates an eyewitness ingestor.
func New() *Ingestor { return &Ingestor{} }

// Name returns the ingestor name.
func (i *Ingestor) Name() string { return name }

// Description returns a short human-readable description.
func (i *Ingestor) Description() string {
	return "Parses an EyeWitness output directory (Requests.csv) into hosts and web services"
}

// Autodetect reports that EyeWitness output is detected on directories.
func (i *Ingestor) Autodetect() cyberdb.Autodetect { return cyberdb.AutodetectDir }

// Match recognizes an EyeWitness output directory by its Requests.csv.
func (i *Ingestor) Match(path string) bool {
	st, err := os.Stat(filepath.Join(path, "Requests.csv"))
	return err == nil && !st.IsDir()
}

// Run ingests the directory at path. A missing Requests.csv means this is
// not EyeWitness output, which is fatal.
func (i *Ingestor) Run(db *cyberdb.CyberDB, path string) error {
	const op = "eyewitness.Ingestor.Run"

	f, err := os.Open(filepath.Join(path, "Requests.csv"))
	if err != nil {
		return kberrors.Wrap(kberrors.KindInvalidInput, op, "open Requests.csv", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if err != nil {
		return kberrors.Wrap(kberrors.KindInvalidInput, op, "read header", err)
	}
	col := make(map[string]int, len(head))
	for idx, h := range head {
		col[strings.TrimSpace(h)] = idx
	}

	log := db.Logger()
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return kberrors.Wrap(kberrors.KindInvalidInput, op, "read row", err)
		}

		get := func(column string) string {
			idx, ok := col[column]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		target := get("Domain")
		// Hostname targets would need resolution; only literal IPs are
		// attributable to a host record.
		if net.ParseIP(target) == nil {
			metrics.RowsSkipped.WithLabelValues(name).Inc()
			log.Debug("skipping non-IP target %q", target)
			continue
		}
		port, err := strconv.Atoi(get("Port"))
		if err != nil {
			metrics.RowsSkipped.WithLabelValues(name).Inc()
			log.Debug("skipping row with port %q", get("Port"))
			continue
		}

		if _, err := db.Feed("host", cyberdb.Fields{"ip": target}); err != nil {
			return err
		}
		if _, err := db.Feed("service", cyberdb.Fields{
			"host":     target,
			"port":     port,
			"protocol": "tcp",
			"type":     strings.ToLower(get("Protocol")),
		}); err != nil {
			return err
		}
	}
}
