// Package ntds ingests impacket secretsdump output: classic
// user:rid:lm:ntlm hash lines and CLEARTEXT credential lines.
package ntds

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/redopsio/cyberkb/pkg/core"
	"github.com/redopsio/cyberkb/pkg/cyberdb"
	kberrors "github.com/redopsio/cyberkb/pkg/errors"
	"github.com/redopsio/cyberkb/pkg/metrics"
)

const name = "ntds"

// lineKind is the outcome of classifying one secretsdump line. Every line
// gets an explicit classification; nothing is decided by trial and error.
type lineKind int

const (
	lineSkip lineKind = iota
	lineMalformed
	lineCleartext
	lineSecret
)

// hexDumpRe matches the offset column of secretsdump hex-dump blocks
// (NL$KM and friends).
var hexDumpRe = regexp.MustCompile(`^[0-9A-Fa-f]{4}\s`)

// skippedKeyTypes are the second colon field of non-NT secret lines that
// carry no reusable credential for the knowledge base.
var skippedKeyTypes = map[string]bool{
	"aes256-cts-hmac-sha1-96": true,
	"aes128-cts-hmac-sha1-96": true,
	"des-cbc-md5":             true,
	"des-cbc-crc":             true,
	"rc4_hmac":                true,
	"plain_password_hex":      true,
}

type secretRow struct {
	domain   string
	user     string
	rid      int
	lm       string
	ntlm     string
	password string
}

// Ingestor parses impacket secretsdump output.
type Ingestor struct{}

// New creates an ntds ingestor.
func New() *Ingestor { return &Ingestor{} }

// Name returns the ingestor name.
func (i *Ingestor) Name() string { return name }

// Description returns a short human-readable description.
func (i *Ingestor) Description() string {
	return "Parses impacket secretsdump output into AD users with RID, LM, NTLM and cleartext credentials"
}

// Autodetect reports that secretsdump output is detected on files.
func (i *Ingestor) Autodetect() cyberdb.Autodetect { return cyberdb.AutodetectFile }

// Match recognizes a secretsdump capture by its leading tool banner.
func (i *Ingestor) Match(path string) bool {
	prefix := core.SniffPrefix(path, 500)
	return strings.HasPrefix(prefix, "Impacket v") &&
		strings.Contains(prefix, "[*] Dumping local SAM hashes (uid:rid:lmhash:nthash)")
}

// Run ingests the file at path. Skipped and malformed lines are counted
// and never abort the file.
func (i *Ingestor) Run(db *cyberdb.CyberDB, path string) error {
	const op = "ntds.Ingestor.Run"

	r, err := core.OpenInput(path)
	if err != nil {
		return kberrors.Wrap(kberrors.KindInvalidInput, op, "open input", err)
	}
	defer r.Close()

	log := db.Logger()
	for line := range core.Lines(r) {
		row, kind := classify(line)
		switch kind {
		case lineSkip:
			continue
		case lineMalformed:
			metrics.RowsSkipped.WithLabelValues(name).Inc()
			log.Debug("skipping malformed line: %q", line)
			continue
		}

		fields := cyberdb.Fields{
			"name":   row.user,
			"domain": row.domain,
		}
		if kind == lineCleartext {
			fields["password"] = row.password
		} else {
			fields["rid"] = row.rid
			fields["lm"] = row.lm
			fields["ntlm"] = row.ntlm
		}
		if _, err := db.Feed("ad_user", fields); err != nil {
			return err
		}
	}
	return nil
}

// classify decides what a single secretsdump line is. The row result is
// only meaningful for lineCleartext and lineSecret.
func classify(line string) (secretRow, lineKind) {
	var row secretRow

	if strings.HasPrefix(line, "[") || strings.HasPrefix(line, "Impacket") {
		return row, lineSkip
	}
	if hexDumpRe.MatchString(line) {
		return row, lineSkip
	}
	if strings.HasPrefix(line, "dpapi_machinekey:") ||
		strings.HasPrefix(line, "dpapi_userkey:") ||
		strings.HasPrefix(line, "NL$KM") {
		return row, lineSkip
	}

	parts := strings.Split(line, ":")
	switch {
	case len(parts) == 3 && parts[1] == "CLEARTEXT":
		domain, user, ok := splitAccount(parts[0])
		if !ok {
			return row, lineSkip
		}
		row.domain = domain
		row.user = user
		row.password = parts[2]
		return row, lineCleartext

	case len(parts) == 3:
		if skippedKeyTypes[parts[1]] {
			return row, lineSkip
		}
		return row, lineMalformed

	case len(parts) >= 7:
		// DOMAIN\user:rid:lmhash:nthash:::
		domain, user, ok := splitAccount(parts[0])
		if !ok {
			// A bare account name carries no domain context; it is
			// never guessed.
			return row, lineSkip
		}
		if strings.HasSuffix(user, "$") {
			return row, lineSkip
		}
		rid, err := strconv.Atoi(parts[1])
		if err != nil {
			return row, lineMalformed
		}
		ntlm := strings.ToLower(parts[3])
		if len(ntlm) != 32 {
			return row, lineMalformed
		}
		row.domain = domain
		row.user = user
		row.rid = rid
		row.lm = strings.ToLower(parts[2])
		row.ntlm = ntlm
		return row, lineSecret

	default:
		return row, lineSkip
	}
}

// splitAccount splits "DOMAIN\user" into lowercased domain and user.
func splitAccount(account string) (domain, user string, ok bool) {
	idx := strings.Index(account, `\`)
	if idx < 0 {
		return "", "", false
	}
	return strings.ToLower(account[:idx]), strings.ToLower(account[idx+1:]), true
}
