// Package pingcastle ingests PingCastle user and computer TSV exports.
package pingcastle

import (
	"encoding/csv"
	"io"
	"strings"
	"time"

	"github.com/redopsio/cyberkb/pkg/core"
	"github.com/redopsio/cyberkb/pkg/cyberdb"
	kberrors "github.com/redopsio/cyberkb/pkg/errors"
	"github.com/redopsio/cyberkb/pkg/metrics"
)

// timeLayout is the timestamp format PingCastle writes.
const timeLayout = "2006-01-02 15:04:05Z"

// zeroDate is PingCastle's "never" sentinel.
const zeroDate = "0001-01-01 00:00:00Z"

// row is one TSV record with header-based access.
type row struct {
	header map[string]int
	fields []string
}

func (r row) get(col string) string {
	idx, ok := r.header[col]
	if !ok || idx >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[idx])
}

// eachRow reads a PingCastle TSV export and calls fn for every data row.
func eachRow(path, op string, fn func(row) error) error {
	f, err := core.OpenInput(path)
	if err != nil {
		return kberrors.Wrap(kberrors.KindInvalidInput, op, "open input", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	head, err := cr.Read()
	if err != nil {
		return kberrors.Wrap(kberrors.KindInvalidInput, op, "read header", err)
	}
	header := make(map[string]int, len(head))
	for i, col := range head {
		header[strings.TrimSpace(col)] = i
	}

	for {
		fields, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return kberrors.Wrap(kberrors.KindInvalidInput, op, "read row", err)
		}
		if err := fn(row{header: header, fields: fields}); err != nil {
			return err
		}
	}
}

// domainFromDN derives a DNS domain name from a distinguished name:
// "CN=x,OU=y,DC=corp,DC=local" becomes "corp.local".
func domainFromDN(dn string) string {
	var parts []string
	for _, comp := range strings.Split(dn, ",") {
		comp = strings.TrimSpace(comp)
		if rest, found := strings.CutPrefix(comp, "DC="); found {
			parts = append(parts, strings.ToLower(rest))
		}
	}
	return strings.Join(parts, ".")
}

// parseTime parses a PingCastle timestamp, reporting false for the zero
// sentinel and unparseable values.
func parseTime(s string) (time.Time, bool) {
	if s == "" || s == zeroDate {
		return time.Time{}, false
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true", "yes", "1":
		return true, true
	case "false", "no", "0":
		return false, true
	default:
		return false, false
	}
}

func skipRow(db *cyberdb.CyberDB, ingestor, reason string) {
	metrics.RowsSkipped.WithLabelValues(ingestor).Inc()
	db.Logger().Debug("skipping row: %s", reason)
}
