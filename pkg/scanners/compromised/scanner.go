// Package compromised reports AD accounts for which the assessment holds
// working credential material.
package compromised

import (
	"github.com/redopsio/cyberkb/pkg/cyberdb"
	"github.com/redopsio/cyberkb/pkg/shared/severity"
)

const name = "compromised"

const control = "compromised.ad_user"

const ntlmBlank = "31d6cfe0d16ae931b73c59d7e0c089c0"

// Scanner reports compromised AD accounts.
type Scanner struct{}

// New creates a compromised scanner.
func New() *Scanner { return &Scanner{} }

// Name returns the scanner name.
func (s *Scanner) Name() string { return name }

// Description returns a short human-readable description.
func (s *Scanner) Description() string {
	return "Reports AD accounts with captured password or NTLM material"
}

// Controls lists the checks this scanner covers.
func (s *Scanner) Controls() []string { return []string{control} }

// Tags returns the scanner tags.
func (s *Scanner) Tags() []string { return []string{"default"} }

// Run alerts on every AD account holding a usable secret.
func (s *Scanner) Run(db *cyberdb.CyberDB, e *cyberdb.Emitter) error {
	if !e.Enabled(control) {
		return nil
	}

	seq, err := db.Request("ad_user")
	if err != nil {
		return err
	}
	for rec := range seq {
		password := rec.String("password")
		ntlm := rec.String("ntlm")
		if ntlm == ntlmBlank {
			ntlm = ""
		}
		if password == "" && ntlm == "" {
			continue
		}

		details := cyberdb.Details{
			"user":   rec.String("name"),
			"domain": rec.String("domain"),
		}
		if password != "" {
			details["password"] = password
		}
		if ntlm != "" {
			details["ntlm"] = ntlm
		}
		if lm := rec.String("lm"); lm != "" {
			details["lm"] = lm
		}

		err := e.Alert(control, details,
			cyberdb.WithSeverity(severity.High), cyberdb.WithConfidence(severity.Certain))
		if err != nil {
			return err
		}
	}
	return nil
}
