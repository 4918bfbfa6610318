// Package bloodhound ingests SharpHound JSON export directories into AD
// users and computers.
package bloodhound

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/redopsio/cyberkb/pkg/cyberdb"
	kberrors "github.com/redopsio/cyberkb/pkg/errors"
	"github.com/redopsio/cyberkb/pkg/metrics"
)

const name = "bloodhound"

// maxDirEntries bounds directory detection: a SharpHound export holds a
// handful of JSON files, so a huge directory is never claimed by content
// probing alone.
const maxDirEntries = 64

// export is the top-level shape of a SharpHound JSON file.
type export struct {
	Data []object `json:"data"`
}

type object struct {
	Properties       map[string]any `json:"Properties"`
	ObjectIdentifier string         `json:"ObjectIdentifier"`
}

// Ingestor parses SharpHound export directories.
type Ingestor struct{}

// New creates a bloodhound ingestor.
func New() *Ingestor { return &Ingestor{} }

// Name returns the ingestor name.
func (i *Ingestor) Name() string { return name }

// Description returns a short human-readable description.
func (i *Ingestor) Description() string {
	return "Parses SharpHound JSON exports into AD users and computers; other object kinds (groups, GPOs, OUs) are accepted but not persisted"
}

// Autodetect reports that SharpHound exports are detected on directories.
func (i *Ingestor) Autodetect() cyberdb.Autodetect { return cyberdb.AutodetectDir }

// Match recognizes a SharpHound export directory by the presence of a
// *_users.json or *_computers.json file among its immediate children.
func (i *Ingestor) Match(path string) bool {
	entries, err := os.ReadDir(path)
	if err != nil || len(entries) > maxDirEntries {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if strings.HasSuffix(n, "_users.json") || strings.HasSuffix(n, "_computers.json") {
			return true
		}
	}
	return false
}

// Run ingests the export directory at path. SharpHound prefixes its files
// with a collection timestamp, so when several collections coexist only
// the lexicographically-latest file of each kind is read.
func (i *Ingestor) Run(db *cyberdb.CyberDB, path string) error {
	const op = "bloodhound.Ingestor.Run"

	kinds := []struct {
		kind string
		feed func(*cyberdb.CyberDB, object) error
	}{
		{"users", feedUser},
		{"computers", feedComputer},
	}

	matched := false
	for _, k := range kinds {
		file, err := latestExport(path, k.kind)
		if err != nil {
			return kberrors.Wrap(kberrors.KindInvalidInput, op, "list exports", err)
		}
		if file == "" {
			db.Logger().Warn("no *_%s.json under %s", k.kind, path)
			continue
		}
		matched = true
		if err := i.ingestFile(db, file, k.feed); err != nil {
			return err
		}
	}
	if !matched {
		return kberrors.Newf(kberrors.KindInvalidInput, op, "no SharpHound exports under %q", path)
	}
	return nil
}

func (i *Ingestor) ingestFile(db *cyberdb.CyberDB, file string, feed func(*cyberdb.CyberDB, object) error) error {
	const op = "bloodhound.Ingestor.ingestFile"

	f, err := os.Open(file)
	if err != nil {
		return kberrors.Wrap(kberrors.KindInvalidInput, op, "open export", err)
	}
	defer f.Close()

	var ex export
	if err := json.NewDecoder(f).Decode(&ex); err != nil {
		return kberrors.Wrap(kberrors.KindInvalidInput, op, "decode export", err)
	}

	log := db.Logger()
	for _, obj := range ex.Data {
		if err := feed(db, obj); err != nil {
			if kberrors.IsInvalidInput(err) {
				metrics.RowsSkipped.WithLabelValues(name).Inc()
				log.Debug("skipping object in %s: %v", file, err)
				continue
			}
			return err
		}
	}
	return nil
}

// latestExport returns the lexicographically-latest *_<kind>.json file
// under dir, or "" when none exists.
func latestExport(dir, kind string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*_"+kind+".json"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

func feedUser(db *cyberdb.CyberDB, obj object) error {
	const op = "bloodhound.feedUser"

	account, domain, ok := splitPrincipal(propString(obj.Properties, "name"))
	if !ok {
		return kberrors.Newf(kberrors.KindInvalidInput, op, "object has no name@domain")
	}

	fields := cyberdb.Fields{
		"name":   account,
		"domain": domain,
		"sid":    strings.ToLower(obj.ObjectIdentifier),
	}
	setString(fields, "email", obj.Properties, "email")
	setString(fields, "full_name", obj.Properties, "displayname")
	setString(fields, "description", obj.Properties, "description")
	setString(fields, "distinguished_name", obj.Properties, "distinguishedname")
	setString(fields, "sam_account_name", obj.Properties, "samaccountname")
	setBool(fields, "enabled", obj.Properties, "enabled")
	setBool(fields, "pwd_never_expires", obj.Properties, "pwdneverexpires")
	setBool(fields, "admin_count", obj.Properties, "admincount")
	setEpoch(fields, "pwd_last_set", obj.Properties, "pwdlastset")
	setEpoch(fields, "when_created", obj.Properties, "whencreated")
	setEpoch(fields, "last_logon", obj.Properties, "lastlogon")

	_, err := db.Feed("ad_user", fields)
	return err
}

func feedComputer(db *cyberdb.CyberDB, obj object) error {
	const op = "bloodhound.feedComputer"

	account, domain, ok := splitPrincipal(propString(obj.Properties, "name"))
	if !ok {
		return kberrors.Newf(kberrors.KindInvalidInput, op, "object has no name@domain")
	}

	fields := cyberdb.Fields{
		"name":   account,
		"domain": domain,
		"sid":    strings.ToLower(obj.ObjectIdentifier),
	}
	setString(fields, "os", obj.Properties, "operatingsystem")
	setString(fields, "description", obj.Properties, "description")
	setString(fields, "distinguished_name", obj.Properties, "distinguishedname")
	setString(fields, "sam_account_name", obj.Properties, "samaccountname")
	setString(fields, "primary_group_sid", obj.Properties, "primarygroupsid")
	setBool(fields, "enabled", obj.Properties, "enabled")
	setEpoch(fields, "pwd_last_set", obj.Properties, "pwdlastset")
	setEpoch(fields, "when_created", obj.Properties, "whencreated")
	setEpoch(fields, "last_logon", obj.Properties, "lastlogon")

	_, err := db.Feed("ad_computer", fields)
	return err
}

// splitPrincipal splits a BloodHound principal name "ACCOUNT@DOMAIN.TLD"
// into lowercased account and domain.
func splitPrincipal(principal string) (account, domain string, ok bool) {
	account, domain, ok = strings.Cut(strings.ToLower(principal), "@")
	if !ok || account == "" || domain == "" {
		return "", "", false
	}
	return account, domain, true
}

func propString(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func setString(fields cyberdb.Fields, field string, props map[string]any, key string) {
	if s, ok := props[key].(string); ok && s != "" {
		fields[field] = s
	}
}

func setBool(fields cyberdb.Fields, field string, props map[string]any, key string) {
	if b, ok := props[key].(bool); ok {
		fields[field] = b
	}
}

// setEpoch converts a BloodHound unix-seconds timestamp. SharpHound uses
// -1 and 0 for "never", which stay unset.
func setEpoch(fields cyberdb.Fields, field string, props map[string]any, key string) {
	f, ok := props[key].(float64)
	if !ok || f <= 0 {
		return
	}
	fields[field] = time.Unix(int64(f), 0).UTC()
}
