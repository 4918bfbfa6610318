// Package hashcat ingests hashcat potfiles (hash:password lines).
package hashcat

import (
	"regexp"
	"strings"

	"github.com/redopsio/cyberkb/pkg/core"
	"github.com/redopsio/cyberkb/pkg/cyberdb"
	kberrors "github.com/redopsio/cyberkb/pkg/errors"
	"github.com/redopsio/cyberkb/pkg/metrics"
)

const name = "hashcat"

// ntlmRe matches a bare NTLM (or LM) hash: 32 hex characters.
var ntlmRe = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)

// Ingestor parses hashcat potfiles.
type Ingestor struct{}

// New creates a hashcat ingestor.
func New() *Ingestor { return &Ingestor{} }

// Name returns the ingestor name.
func (i *Ingestor) Name() string { return name }

// Description returns a short human-readable description.
func (i *Ingestor) Description() string {
	return "Parses hashcat potfiles into cracked hash and password records"
}

// Autodetect reports that potfiles are detected on files.
func (i *Ingestor) Autodetect() cyberdb.Autodetect { return cyberdb.AutodetectFile }

// Match recognizes potfiles by extension.
func (i *Ingestor) Match(path string) bool {
	return strings.HasSuffix(path, ".potfile")
}

// Run ingests the potfile at path. Each cracked entry becomes a hash
// record (carrying the recovered password) and a password record.
func (i *Ingestor) Run(db *cyberdb.CyberDB, path string) error {
	const op = "hashcat.Ingestor.Run"

	r, err := core.OpenInput(path)
	if err != nil {
		return kberrors.Wrap(kberrors.KindInvalidInput, op, "open input", err)
	}
	defer r.Close()

	log := db.Logger()
	for line := range core.Lines(r) {
		hash, password, found := strings.Cut(line, ":")
		if !found || hash == "" {
			metrics.RowsSkipped.WithLabelValues(name).Inc()
			log.Debug("skipping malformed line: %q", line)
			continue
		}

		fields := cyberdb.Fields{
			"value":    strings.ToLower(hash),
			"type":     hashType(hash),
			"password": password,
		}
		if _, err := db.Feed("hash", fields); err != nil {
			return err
		}
		if password == "" {
			continue
		}
		if _, err := db.Feed("password", cyberdb.Fields{"value": password}); err != nil {
			return err
		}
	}
	return nil
}

// hashType infers a coarse hash type from the raw hash text. Unknown
// formats keep an empty type rather than a guess.
func hashType(hash string) string {
	switch {
	case ntlmRe.MatchString(hash):
		return "ntlm"
	case strings.HasPrefix(hash, "$krb5tgs$"):
		return "krb5tgs"
	case strings.HasPrefix(hash, "$krb5asrep$"):
		return "krb5asrep"
	case strings.HasPrefix(hash, "$DCC2$"):
		return "dcc2"
	default:
		return ""
	}
}
