// Package relations derives host-level state from account-level facts:
// a captured built-in Administrator credential compromises its host.
package relations

import (
	"github.com/redopsio/cyberkb/pkg/cyberdb"
)

const name = "relations"

// adminRID is the well-known RID of the built-in Administrator account.
const adminRID = 500

// ntlmBlank means "no secret stored" and never counts as a credential.
const ntlmBlank = "31d6cfe0d16ae931b73c59d7e0c089c0"

// Scanner propagates compromise state. It emits no controls; it mutates
// host records so downstream scanners and reports see derived state.
type Scanner struct{}

// New creates a relations scanner.
func New() *Scanner { return &Scanner{} }

// Name returns the scanner name.
func (s *Scanner) Name() string { return name }

// Description returns a short human-readable description.
func (s *Scanner) Description() string {
	return "Marks hosts compromised when their built-in Administrator credential is captured"
}

// Controls lists the checks this scanner covers; it has none.
func (s *Scanner) Controls() []string { return nil }

// Tags returns the scanner tags.
func (s *Scanner) Tags() []string { return []string{"default"} }

// Run marks every host whose RID-500 account has a usable credential.
func (s *Scanner) Run(db *cyberdb.CyberDB, _ *cyberdb.Emitter) error {
	seq, err := db.Request("windows_user", cyberdb.Eq("rid", adminRID))
	if err != nil {
		return err
	}

	for rec := range seq {
		if !hasCredential(rec) {
			continue
		}
		host := rec.String("host")
		if host == "" {
			continue
		}
		if _, err := db.Feed("host", cyberdb.Fields{"ip": host, "compromised": true}); err != nil {
			return err
		}
		db.Logger().Info("host %s compromised via local administrator", host)
	}
	return nil
}

func hasCredential(rec *cyberdb.Record) bool {
	if rec.String("password") != "" {
		return true
	}
	ntlm := rec.String("ntlm")
	return ntlm != "" && ntlm != ntlmBlank
}
