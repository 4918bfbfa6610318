// Package auth evaluates credential hygiene across AD and local Windows
// accounts: LM hash usage, shared credentials, and accounts reusing the
// same secret across domains or hosts.
package auth

import (
	"sort"
	"strings"

	"github.com/redopsio/cyberkb/pkg/cyberdb"
	"github.com/redopsio/cyberkb/pkg/shared/severity"
)

const name = "auth"

// Blank hash constants. A blank hash means "no secret stored"; it is
// never treated as credential material.
const (
	LMBlank   = "aad3b435b51404eeaad3b435b51404ee"
	NTLMBlank = "31d6cfe0d16ae931b73c59d7e0c089c0"
)

const (
	controlLMHashAD      = "windows.lm_hash_used.ad_user"
	controlLMHashWindows = "windows.lm_hash_used.windows_user"
	controlPasswordReuse = "password.reuse"
	controlHashReuse     = "hash.reuse"
	controlCrossAD       = "auth.reuse.cross.ad"
	controlCrossWindows  = "auth.reuse.cross.windows"
)

// Scanner evaluates the authentication controls.
type Scanner struct{}

// New creates an auth scanner.
func New() *Scanner { return &Scanner{} }

// Name returns the scanner name.
func (s *Scanner) Name() string { return name }

// Description returns a short human-readable description.
func (s *Scanner) Description() string {
	return "Detects LM hash usage and credential reuse across accounts, domains and hosts"
}

// Controls lists the checks this scanner covers.
func (s *Scanner) Controls() []string {
	return []string{
		controlLMHashAD,
		controlLMHashWindows,
		controlPasswordReuse,
		controlHashReuse,
		controlCrossAD,
		controlCrossWindows,
	}
}

// Tags returns the scanner tags.
func (s *Scanner) Tags() []string { return []string{"default"} }

// Run evaluates all authentication controls.
func (s *Scanner) Run(db *cyberdb.CyberDB, e *cyberdb.Emitter) error {
	if err := s.lmHashes(db, e); err != nil {
		return err
	}
	if err := s.sharedSecrets(db, e); err != nil {
		return err
	}
	if err := s.crossAD(db, e); err != nil {
		return err
	}
	return s.crossWindows(db, e)
}

// lmHashes flags accounts still storing a real LM hash.
func (s *Scanner) lmHashes(db *cyberdb.CyberDB, e *cyberdb.Emitter) error {
	if e.Enabled(controlLMHashAD) {
		seq, err := db.Request("ad_user", cyberdb.NotNull("lm"), cyberdb.NotEq("lm", ""), cyberdb.NotEq("lm", LMBlank))
		if err != nil {
			return err
		}
		for rec := range seq {
			err := e.Alert(controlLMHashAD, cyberdb.Details{
				"user":   rec.String("name"),
				"domain": rec.String("domain"),
				"lm":     rec.String("lm"),
			}, cyberdb.WithSeverity(severity.High), cyberdb.WithConfidence(severity.Certain))
			if err != nil {
				return err
			}
		}
	}

	if e.Enabled(controlLMHashWindows) {
		seq, err := db.Request("windows_user", cyberdb.NotNull("lm"), cyberdb.NotEq("lm", ""), cyberdb.NotEq("lm", LMBlank))
		if err != nil {
			return err
		}
		for rec := range seq {
			err := e.Alert(controlLMHashWindows, cyberdb.Details{
				"user": rec.String("user"),
				"host": rec.String("host"),
				"lm":   rec.String("lm"),
			}, cyberdb.WithSeverity(severity.High), cyberdb.WithConfidence(severity.Certain))
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// sharedSecrets flags one secret held by several AD accounts, ignoring
// the domain. Passwords and NTLM and LM hashes each pool separately.
func (s *Scanner) sharedSecrets(db *cyberdb.CyberDB, e *cyberdb.Emitter) error {
	passwords := make(map[string][]string)
	ntlmHashes := make(map[string][]string)
	lmHashes := make(map[string][]string)

	seq, err := db.Request("ad_user")
	if err != nil {
		return err
	}
	for rec := range seq {
		who := rec.String("domain") + `\` + rec.String("name")
		if pw := rec.String("password"); pw != "" {
			passwords[pw] = append(passwords[pw], who)
		}
		if h := rec.String("ntlm"); h != "" && h != NTLMBlank {
			ntlmHashes[h] = append(ntlmHashes[h], who)
		}
		if h := rec.String("lm"); h != "" && h != LMBlank {
			lmHashes[h] = append(lmHashes[h], who)
		}
	}

	if e.Enabled(controlPasswordReuse) {
		if err := emitShared(e, controlPasswordReuse, "password", "", passwords); err != nil {
			return err
		}
	}
	if e.Enabled(controlHashReuse) {
		if err := emitShared(e, controlHashReuse, "hash", "ntlm", ntlmHashes); err != nil {
			return err
		}
		if err := emitShared(e, controlHashReuse, "hash", "lm", lmHashes); err != nil {
			return err
		}
	}
	return nil
}

func emitShared(e *cyberdb.Emitter, control, key, hashType string, pool map[string][]string) error {
	for value, users := range pool {
		users = dedupeSorted(users)
		if len(users) < 2 {
			continue
		}
		details := cyberdb.Details{
			key:     value,
			"users": users,
			"count": len(users),
		}
		if hashType != "" {
			details["hash_type"] = hashType
		}
		err := e.Alert(control, details,
			cyberdb.WithSeverity(severity.Medium), cyberdb.WithConfidence(severity.Certain))
		if err != nil {
			return err
		}
	}
	return nil
}

// crossAD flags one account name reusing the same secret in several
// domains.
func (s *Scanner) crossAD(db *cyberdb.CyberDB, e *cyberdb.Emitter) error {
	if !e.Enabled(controlCrossAD) {
		return nil
	}

	// name -> secret -> domains
	byName := make(map[string]map[secret][]string)
	seq, err := db.Request("ad_user")
	if err != nil {
		return err
	}
	for rec := range seq {
		for _, sec := range secretsOf(rec) {
			if byName[rec.String("name")] == nil {
				byName[rec.String("name")] = make(map[secret][]string)
			}
			byName[rec.String("name")][sec] = append(byName[rec.String("name")][sec], rec.String("domain"))
		}
	}

	for _, user := range sortedKeys(byName) {
		for _, sec := range sortedSecrets(byName[user]) {
			domains := dedupeSorted(byName[user][sec])
			if len(domains) < 2 {
				continue
			}
			err := e.Alert(controlCrossAD, cyberdb.Details{
				"user":             user,
				"credential_type":  sec.kind,
				"credential_value": sec.value,
				"domains":          domains,
			}, cyberdb.WithSeverity(severity.High), cyberdb.WithConfidence(severity.Certain))
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// crossWindows flags one local account name reusing the same secret on
// several hosts.
func (s *Scanner) crossWindows(db *cyberdb.CyberDB, e *cyberdb.Emitter) error {
	if !e.Enabled(controlCrossWindows) {
		return nil
	}

	byName := make(map[string]map[secret][]string)
	seq, err := db.Request("windows_user")
	if err != nil {
		return err
	}
	for rec := range seq {
		for _, sec := range secretsOf(rec) {
			if byName[rec.String("user")] == nil {
				byName[rec.String("user")] = make(map[secret][]string)
			}
			byName[rec.String("user")][sec] = append(byName[rec.String("user")][sec], rec.String("host"))
		}
	}

	for _, user := range sortedKeys(byName) {
		for _, sec := range sortedSecrets(byName[user]) {
			hosts := dedupeSorted(byName[user][sec])
			if len(hosts) < 2 {
				continue
			}
			err := e.Alert(controlCrossWindows, cyberdb.Details{
				"user":             user,
				"credential_type":  sec.kind,
				"credential_value": sec.value,
				"hosts":            hosts,
			}, cyberdb.WithSeverity(severity.High), cyberdb.WithConfidence(severity.Certain))
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// secret is one usable credential of a record.
type secret struct {
	kind  string // password, ntlm or lm
	value string
}

// secretsOf returns the usable secrets of a credential record. Blank
// hashes are not secrets.
func secretsOf(rec *cyberdb.Record) []secret {
	var secrets []secret
	if pw := rec.String("password"); pw != "" {
		secrets = append(secrets, secret{kind: "password", value: pw})
	}
	if h := rec.String("ntlm"); h != "" && h != NTLMBlank {
		secrets = append(secrets, secret{kind: "ntlm", value: h})
	}
	if h := rec.String("lm"); h != "" && h != LMBlank {
		secrets = append(secrets, secret{kind: "lm", value: h})
	}
	return secrets
}

func sortedSecrets(m map[secret][]string) []secret {
	keys := make([]secret, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].kind != keys[j].kind {
			return keys[i].kind < keys[j].kind
		}
		return keys[i].value < keys[j].value
	})
	return keys
}

func dedupeSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
