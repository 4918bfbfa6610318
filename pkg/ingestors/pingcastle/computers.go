package pingcastle

import (
	"strings"

	"github.com/redopsio/cyberkb/pkg/cyberdb"
)

const computersName = "pingcastle_computers"

// Computers ingests a PingCastle computer export (ad_computer_list TSV).
type Computers struct{}

// NewComputers creates the pingcastle computer ingestor.
func NewComputers() *Computers { return &Computers{} }

// Name returns the ingestor name.
func (i *Computers) Name() string { return computersName }

// Description returns a short human-readable description.
func (i *Computers) Description() string {
	return "Parses a PingCastle computer TSV export into AD computers"
}

// Autodetect reports that PingCastle exports are not autodetected.
func (i *Computers) Autodetect() cyberdb.Autodetect { return cyberdb.AutodetectNone }

// Match always reports false; the ingestor is invoked by name.
func (i *Computers) Match(string) bool { return false }

// Run ingests the TSV at path. The machine-account "$" suffix is stripped
// from the record name.
func (i *Computers) Run(db *cyberdb.CyberDB, path string) error {
	const op = "pingcastle.Computers.Run"

	return eachRow(path, op, func(r row) error {
		sam := r.get("sAMAccountName")
		if sam == "" {
			skipRow(db, computersName, "missing sAMAccountName")
			return nil
		}
		dn := r.get("DistinguishedName")
		domain := domainFromDN(dn)
		if domain == "" {
			skipRow(db, computersName, "no domain components in DN")
			return nil
		}

		fields := cyberdb.Fields{
			"name":             strings.ToLower(strings.TrimSuffix(sam, "$")),
			"domain":           domain,
			"sam_account_name": sam,
		}
		if dn != "" {
			fields["distinguished_name"] = dn
		}
		if os := r.get("OperatingSystem"); os != "" {
			fields["os"] = os
		}
		if v := r.get("OperatingSystemVersion"); v != "" {
			fields["os_version"] = v
		}
		if v, ok := parseBool(r.get("Enabled")); ok {
			fields["enabled"] = v
		}
		if t, ok := parseTime(r.get("PwdLastSet")); ok {
			fields["pwd_last_set"] = t
		}
		if t, ok := parseTime(r.get("WhenCreated")); ok {
			fields["when_created"] = t
		}
		if t, ok := parseTime(r.get("LastLogonTimestamp")); ok {
			fields["last_logon"] = t
		}

		_, err := db.Feed("ad_computer", fields)
		return err
	})
}
