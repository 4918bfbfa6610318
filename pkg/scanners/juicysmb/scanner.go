// Package juicysmb hunts crawled SMB shares for files worth a manual
// look: key material, credential stores, machine images, config dumps.
package juicysmb

import (
	"fmt"
	"path"
	"strings"

	"github.com/redopsio/cyberkb/pkg/cyberdb"
	"github.com/redopsio/cyberkb/pkg/shared/severity"
)

const name = "juicysmb"

const control = "smb.juicy_file"

// Rule kinds, recorded on each juicy_search hit.
const (
	RuleSuffix   = "suffix"
	RuleName     = "name"
	RuleContains = "name-in"
)

// juicySuffixes match on the file extension.
var juicySuffixes = map[string]string{
	".kdbx":   "password-store",
	".psafe3": "password-store",
	".key":    "key-material",
	".pem":    "key-material",
	".ppk":    "key-material",
	".pfx":    "key-material",
	".p12":    "key-material",
	".keytab": "key-material",
	".vmdk":   "machine-image",
	".vhd":    "machine-image",
	".vhdx":   "machine-image",
	".ova":    "machine-image",
	".rdp":    "remote-access",
	".dtsx":   "config",
	".config": "config",
	".sqlite": "database",
	".kirbi":  "ticket",
	".ccache": "ticket",
}

// juicyNames match on the exact normalized file name.
var juicyNames = map[string]string{
	"id_rsa":       "key-material",
	"id_dsa":       "key-material",
	"id_ecdsa":     "key-material",
	"id_ed25519":   "key-material",
	"shadow":       "credential-dump",
	"sam":          "credential-dump",
	"ntds.dit":     "credential-dump",
	"unattend.xml": "config",
	"web.config":   "config",
	"sysprep.inf":  "config",
}

// skipSuffixes exempt a file from the fragment rules: images, binaries
// and hash digests named "passwords.jpg" are noise, not loot.
var skipSuffixes = map[string]bool{
	".adml":   true,
	".admx":   true,
	".md5":    true,
	".sha1":   true,
	".sha512": true,
	".dsx":    true,
	".dll":    true,
	".jpg":    true,
	".png":    true,
	".gif":    true,
	".bmp":    true,
	".tiff":   true,
	".ico":    true,
	".webp":   true,
}

// juicyFragments match anywhere inside the normalized file name.
var juicyFragments = map[string]string{
	"password":   "credential-hint",
	"passwort":   "credential-hint",
	"motdepasse": "credential-hint",
	"credential": "credential-hint",
	"secret":     "credential-hint",
}

// hit is a matched rule.
type hit struct {
	rule     string
	value    string
	category string
}

// Scanner hunts for juicy files in crawled shares.
type Scanner struct{}

// New creates a juicysmb scanner.
func New() *Scanner { return &Scanner{} }

// Name returns the scanner name.
func (s *Scanner) Name() string { return name }

// Description returns a short human-readable description.
func (s *Scanner) Description() string {
	return "Flags crawled SMB files that look like key material, credential stores or sensitive configs"
}

// Controls lists the checks this scanner covers.
func (s *Scanner) Controls() []string { return []string{control} }

// Tags returns the scanner tags.
func (s *Scanner) Tags() []string { return []string{"default"} }

// Run streams smb_file records through the rules. Scan.MaxSMBFiles caps
// how many records are examined; 0 means no cap.
func (s *Scanner) Run(db *cyberdb.CyberDB, e *cyberdb.Emitter) error {
	if !e.Enabled(control) {
		return nil
	}

	maxFiles := db.Config().Scan.MaxSMBFiles
	seq, err := db.Request("smb_file", cyberdb.Eq("is_directory", false))
	if err != nil {
		return err
	}

	seen := 0
	for rec := range seq {
		if maxFiles > 0 && seen >= maxFiles {
			db.Logger().Warn("smb_file cap of %d reached, remaining files not scanned", maxFiles)
			break
		}
		seen++

		h, ok := match(rec.String("file"))
		if !ok {
			continue
		}

		location := fmt.Sprintf(`\\%s\%s\%s\%s`,
			rec.String("host"), rec.String("share"), rec.String("directory"), rec.String("file"))

		if _, err := db.Feed("juicy_search", cyberdb.Fields{
			"id":         rec.ID(),
			"rule_name":  h.rule,
			"rule_value": h.value,
			"value":      location,
			"category":   h.category,
			"details":    cyberdb.Details{"size": rec.Int("size")},
		}); err != nil {
			return err
		}

		err := e.Alert(control, cyberdb.Details{
			"file":     location,
			"rule":     h.rule,
			"category": h.category,
			"size":     rec.Int("size"),
		}, cyberdb.WithSeverity(severity.Medium), cyberdb.WithConfidence(severity.Probable))
		if err != nil {
			return err
		}
	}
	return nil
}

// match runs the rules against one file name. Names are compared
// lowercased with spaces collapsed to underscores.
func match(file string) (hit, bool) {
	normalized := strings.ReplaceAll(strings.ToLower(file), " ", "_")

	if category, ok := juicyNames[normalized]; ok {
		return hit{rule: RuleName, value: normalized, category: category}, true
	}
	if ext := path.Ext(normalized); ext != "" {
		if category, ok := juicySuffixes[ext]; ok {
			return hit{rule: RuleSuffix, value: ext, category: category}, true
		}
		if skipSuffixes[ext] {
			return hit{}, false
		}
	}
	for fragment, category := range juicyFragments {
		if strings.Contains(normalized, fragment) {
			return hit{rule: RuleContains, value: fragment, category: category}, true
		}
	}
	return hit{}, false
}
