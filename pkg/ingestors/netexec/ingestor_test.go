package netexec

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/redopsio/cyberkb/pkg/cyberdb"

	_ "modernc.org/sqlite"
)

func createSMBDB(t *testing.T, path string) {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer sqlDB.Close()

	stmts := []string{
		`CREATE TABLE hosts (id INTEGER PRIMARY KEY, ip TEXT, hostname TEXT, domain TEXT, os TEXT, smbv1 BOOLEAN, signing BOOLEAN)`,
		`CREATE TABLE users (id INTEGER PRIMARY KEY, domain TEXT, username TEXT, password TEXT, credtype TEXT)`,
		`INSERT INTO hosts (ip, hostname, domain, os, smbv1, signing) VALUES
			('10.0.0.5', 'WS01', 'CORP', 'Windows 10 Build 19041', 0, 1),
			('10.0.0.6', 'FS02', char(0), 'Windows Server 2019', 1, 0)`,
		`INSERT INTO users (domain, username, password, credtype) VALUES
			('CORP', 'jdoe', 'Summer2024!', 'plaintext'),
			('WS01', 'localadmin', 'aad3b435b51404eeaad3b435b51404ee:8846F7EAEE8FB117AD06BDD830B7586C', 'hash'),
			(char(0), 'ghost', 'x', 'plaintext'),
			('.', 'dupe', 'x', 'plaintext')`,
	}
	for _, s := range stmts {
		if _, err := sqlDB.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
}

func createFTPDB(t *testing.T, path string) {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer sqlDB.Close()

	stmts := []string{
		`CREATE TABLE hosts (id INTEGER PRIMARY KEY, host TEXT, port INTEGER, banner TEXT)`,
		`INSERT INTO hosts (host, port, banner) VALUES ('10.0.0.9', 21, 'vsFTPd 3.0.3')`,
	}
	for _, s := range stmts {
		if _, err := sqlDB.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
}

// createHome lays out an nxc home directory: workspaces/default/*.db and
// logs/*.sam.
func createHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	ws := filepath.Join(home, "workspaces", "default")
	logs := filepath.Join(home, "logs")
	for _, dir := range []string{ws, logs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	createSMBDB(t, filepath.Join(ws, "smb.db"))
	createFTPDB(t, filepath.Join(ws, "ftp.db"))

	sam := "Administrator:500:aad3b435b51404eeaad3b435b51404ee:0cb6948805f797bf2a82807973b89537:::\n"
	if err := os.WriteFile(filepath.Join(logs, "CORP_10.0.0.5_2024.sam"), []byte(sam), 0o644); err != nil {
		t.Fatal(err)
	}
	return home
}

func TestMatch(t *testing.T) {
	ing := New()
	home := createHome(t)
	if !ing.Match(home) {
		t.Error("nxc home should match")
	}
	if !ing.Match(filepath.Join(home, "workspaces", "default")) {
		t.Error("workspace directory should match")
	}
	if ing.Match(t.TempDir()) {
		t.Error("empty directory should not match")
	}
}

func TestRunHome(t *testing.T) {
	db := cyberdb.New(cyberdb.NewMemStore())
	if err := New().Run(db, createHome(t)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	host, err := db.First("host", cyberdb.Eq("ip", "10.0.0.5"))
	if err != nil {
		t.Fatal(err)
	}
	if host == nil {
		t.Fatal("smb host not ingested")
	}
	if got := host.String("hostname"); got != "ws01" {
		t.Errorf("hostname = %q, want ws01", got)
	}
	if got := host.String("domain"); got != "corp" {
		t.Errorf("domain = %q, want corp", got)
	}
	if got := host.String("os_family"); got != "windows" {
		t.Errorf("os_family = %q, want windows", got)
	}

	// The \x00 sentinel never becomes a domain value.
	host, err = db.First("host", cyberdb.Eq("ip", "10.0.0.6"))
	if err != nil {
		t.Fatal(err)
	}
	if host == nil {
		t.Fatal("second smb host not ingested")
	}
	if host.Has("domain") {
		t.Errorf("domain = %q, want unset", host.String("domain"))
	}

	smb, err := db.First("service_smb", cyberdb.Eq("host", "10.0.0.6"))
	if err != nil {
		t.Fatal(err)
	}
	if smb == nil || !smb.Bool("smbv1") || smb.Bool("signing") {
		t.Error("smb flags not carried over")
	}

	// Domain credential stays a domain credential.
	jdoe, err := db.First("ad_user", cyberdb.Eq("name", "jdoe"))
	if err != nil {
		t.Fatal(err)
	}
	if jdoe == nil {
		t.Fatal("domain user not ingested")
	}
	if got := jdoe.String("password"); got != "Summer2024!" {
		t.Errorf("password = %q", got)
	}

	// A "domain" equal to a known hostname is a local account on that host.
	local, err := db.First("windows_user", cyberdb.Eq("user", "localadmin"))
	if err != nil {
		t.Fatal(err)
	}
	if local == nil {
		t.Fatal("local account was not reclassified")
	}
	if got := local.String("host"); got != "10.0.0.5" {
		t.Errorf("host = %q, want 10.0.0.5", got)
	}
	if got := local.String("ntlm"); got != "8846f7eaee8fb117ad06bdd830b7586c" {
		t.Errorf("ntlm = %q, not lowercased", got)
	}

	// Unattributable rows are discarded, never guessed.
	for _, absent := range []string{"ghost", "dupe"} {
		if rec, _ := db.First("ad_user", cyberdb.Eq("name", absent)); rec != nil {
			t.Errorf("%s should be discarded", absent)
		}
	}

	ftp, err := db.First("service", cyberdb.Eq("type", "ftp"))
	if err != nil {
		t.Fatal(err)
	}
	if ftp == nil {
		t.Fatal("ftp service not ingested")
	}
	if got := ftp.String("banner"); got != "vsFTPd 3.0.3" {
		t.Errorf("banner = %q", got)
	}

	// SAM dump: dns record plus local administrator with RID.
	dns, err := db.First("dns", cyberdb.Eq("domain_name", "corp"))
	if err != nil {
		t.Fatal(err)
	}
	if dns == nil || dns.String("ip") != "10.0.0.5" {
		t.Error("dns record from sam file name missing")
	}
	admin, err := db.First("windows_user", cyberdb.Eq("user", "administrator"))
	if err != nil {
		t.Fatal(err)
	}
	if admin == nil {
		t.Fatal("sam administrator not ingested")
	}
	if got := admin.Int("rid"); got != 500 {
		t.Errorf("rid = %d, want 500", got)
	}
}

func TestRunUnknownFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	db := cyberdb.New(cyberdb.NewMemStore())
	if err := New().Run(db, path); err == nil {
		t.Fatal("expected unsupported-format error")
	}
}

func TestRunSAMBadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "CORP_10.0.0.5_x.sam")
	if err := os.WriteFile(path, []byte("not a sam line\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	db := cyberdb.New(cyberdb.NewMemStore())
	if err := New().Run(db, path); err == nil {
		t.Fatal("expected invalid-input error")
	}
}
