package pingcastle

import (
	"strings"

	"github.com/redopsio/cyberkb/pkg/cyberdb"
)

const usersName = "pingcastle_users"

// Users ingests a PingCastle user export (ad_user_list TSV).
type Users struct{}

// NewUsers creates the pingcastle user ingestor.
func NewUsers() *Users { return &Users{} }

// Name returns the ingestor name.
func (i *Users) Name() string { return usersName }

// Description returns a short human-readable description.
func (i *Users) Description() string {
	return "Parses a PingCastle user TSV export into AD users"
}

// Autodetect reports that PingCastle exports are not autodetected; they
// are plain .txt files with no reliable signature.
func (i *Users) Autodetect() cyberdb.Autodetect { return cyberdb.AutodetectNone }

// Match always reports false; the ingestor is invoked by name.
func (i *Users) Match(string) bool { return false }

// Run ingests the TSV at path. Rows without a sAMAccountName or a
// distinguished name to derive the domain from are skipped.
func (i *Users) Run(db *cyberdb.CyberDB, path string) error {
	const op = "pingcastle.Users.Run"

	return eachRow(path, op, func(r row) error {
		sam := r.get("sAMAccountName")
		if sam == "" {
			skipRow(db, usersName, "missing sAMAccountName")
			return nil
		}
		dn := r.get("DistinguishedName")
		domain := domainFromDN(dn)
		if domain == "" {
			skipRow(db, usersName, "no domain components in DN")
			return nil
		}

		fields := cyberdb.Fields{
			"name":             strings.ToLower(sam),
			"domain":           domain,
			"sam_account_name": sam,
		}
		if dn != "" {
			fields["distinguished_name"] = dn
		}
		if v, ok := parseBool(r.get("Enabled")); ok {
			fields["enabled"] = v
		}
		if v, ok := parseBool(r.get("PwdNeverExpires")); ok {
			fields["pwd_never_expires"] = v
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

		_, err := db.Feed("ad_user", fields)
		return err
	})
}
