// Package weakpassword rates recovered passwords by charset entropy and
// flags passwords derived from account context (name, domain).
package weakpassword

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/redopsio/cyberkb/pkg/cyberdb"
	"github.com/redopsio/cyberkb/pkg/shared/severity"
)

const name = "weakpassword"

const control = "auth.password.weak"

// Rating thresholds in entropy bits. Below weakThreshold the password is
// a finding; the lower bands raise the severity.
const (
	minLength         = 12
	highThreshold     = 40
	mediumThreshold   = 60
	weakThreshold     = 80
	specialPoolSize   = 32
	lowercasePoolSize = 26
	uppercasePoolSize = 26
	digitPoolSize     = 10
)

// Failure reasons, reported together in the control details.
const (
	ReasonShort      = "short"
	ReasonNoLower    = "no_lower"
	ReasonNoUpper    = "no_upper"
	ReasonNoDigit    = "no_digit"
	ReasonNoSpecial  = "no_special"
	ReasonLowEntropy = "low_entropy"
	ReasonKnownWord  = "known_word"
)

const specials = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

var wordRe = regexp.MustCompile(`\w+`)

// verdict is the full rating of one password.
type verdict struct {
	entropy  float64
	reasons  []string
	severity severity.Level
	weak     bool
}

// Scanner evaluates password strength over every stored credential.
type Scanner struct{}

// New creates a weakpassword scanner.
func New() *Scanner { return &Scanner{} }

// Name returns the scanner name.
func (s *Scanner) Name() string { return name }

// Description returns a short human-readable description.
func (s *Scanner) Description() string {
	return "Rates recovered passwords by charset entropy and flags context-derived passwords"
}

// Controls lists the checks this scanner covers.
func (s *Scanner) Controls() []string { return []string{control} }

// Tags returns the scanner tags.
func (s *Scanner) Tags() []string { return []string{"default"} }

// Run rates every password on ad_user, windows_user and password records.
func (s *Scanner) Run(db *cyberdb.CyberDB, e *cyberdb.Emitter) error {
	if !e.Enabled(control) {
		return nil
	}

	type source struct {
		entity     string
		userField  string
		placeField string
		tokenOf    func(*cyberdb.Record) []string
	}
	sources := []source{
		{
			entity: "ad_user", userField: "name", placeField: "domain",
			tokenOf: func(r *cyberdb.Record) []string {
				return []string{r.String("name"), r.String("domain")}
			},
		},
		{
			entity: "windows_user", userField: "user", placeField: "host",
			tokenOf: func(r *cyberdb.Record) []string {
				return []string{r.String("user")}
			},
		},
	}

	for _, src := range sources {
		seq, err := db.Request(src.entity, cyberdb.NotNull("password"), cyberdb.NotEq("password", ""))
		if err != nil {
			return err
		}
		for rec := range seq {
			location := fmt.Sprintf("%s - %s", rec.String(src.userField), rec.String(src.placeField))
			if err := s.rate(e, rec.String("password"), location, src.tokenOf(rec)); err != nil {
				return err
			}
		}
	}

	// Bare cracked passwords have no account context.
	seq, err := db.Request("password", cyberdb.NotEq("value", ""))
	if err != nil {
		return err
	}
	for rec := range seq {
		if err := s.rate(e, rec.String("value"), "", nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) rate(e *cyberdb.Emitter, password, location string, contextFields []string) error {
	v := analyze(password, contextFields)

	reasons := v.reasons
	if reasons == nil {
		reasons = []string{}
	}
	details := cyberdb.Details{
		"password": password,
		"entropy":  math.Round(v.entropy*100) / 100,
		"length":   len(password),
		"reasons":  reasons,
	}
	if location != "" {
		details["location"] = location
	}

	opts := []cyberdb.EmitOption{cyberdb.WithConfidence(severity.Certain)}
	if v.weak {
		opts = append(opts, cyberdb.WithSeverity(v.severity))
	}
	return e.Control(control, !v.weak, details, opts...)
}

// analyze rates a password. contextFields are field values of the owning
// record; any word from them appearing inside the password marks it as
// derived from context.
func analyze(password string, contextFields []string) verdict {
	var v verdict

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(specials, r):
			hasSpecial = true
		}
	}

	pool := 0
	if hasLower {
		pool += lowercasePoolSize
	}
	if hasUpper {
		pool += uppercasePoolSize
	}
	if hasDigit {
		pool += digitPoolSize
	}
	if hasSpecial {
		pool += specialPoolSize
	}
	if pool > 0 {
		v.entropy = math.Log2(float64(pool)) * float64(len(password))
	}

	if len(password) < minLength {
		v.reasons = append(v.reasons, ReasonShort)
	}
	if !hasLower {
		v.reasons = append(v.reasons, ReasonNoLower)
	}
	if !hasUpper {
		v.reasons = append(v.reasons, ReasonNoUpper)
	}
	if !hasDigit {
		v.reasons = append(v.reasons, ReasonNoDigit)
	}
	if !hasSpecial {
		v.reasons = append(v.reasons, ReasonNoSpecial)
	}

	switch {
	case v.entropy < highThreshold:
		v.severity = severity.High
	case v.entropy < mediumThreshold:
		v.severity = severity.Medium
	case v.entropy < weakThreshold:
		v.severity = severity.Low
	}
	if v.entropy < weakThreshold {
		v.reasons = append(v.reasons, ReasonLowEntropy)
		v.weak = true
	}

	if knownWord(password, contextFields) {
		v.reasons = append(v.reasons, ReasonKnownWord)
		v.weak = true
		if v.severity == "" {
			v.severity = severity.Medium
		}
	}
	return v
}

// knownWord reports whether any word of the context fields occurs inside
// the password, case-insensitively.
func knownWord(password string, contextFields []string) bool {
	lowered := strings.ToLower(password)
	for _, field := range contextFields {
		for _, word := range wordRe.FindAllString(strings.ToLower(field), -1) {
			if strings.Contains(lowered, word) {
				return true
			}
		}
	}
	return false
}
