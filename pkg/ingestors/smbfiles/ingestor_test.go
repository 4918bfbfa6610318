package smbfiles

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/redopsio/cyberkb/pkg/cyberdb"
)

const jsonlExport = `{"target":"10.0.0.5","share":"IT","directory":"backups","file":"passwords.xlsx","size":2048,"is_directory":false}
{"target":"10.0.0.5","share":"IT","directory":"","file":"scripts","size":0,"is_directory":1}
not json at all
{"target":"","share":"IT","directory":"","file":"orphan.txt","size":1,"is_directory":false}
`

func write(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMatch(t *testing.T) {
	ing := New()

	plain := write(t, "crawl.jsonl", []byte(jsonlExport))
	if !ing.Match(plain) {
		t.Error("jsonl export should match")
	}

	other := write(t, "report.json", []byte(`{"vulnerabilities": []}`))
	if ing.Match(other) {
		t.Error("unrelated json should not match")
	}

	if !ing.Match("/loot/crawl.jsonl.gz") {
		t.Error("compressed export should match on extension")
	}
	if ing.Match("/loot/crawl.txt") {
		t.Error("txt should not match")
	}
}

func TestRunJSONL(t *testing.T) {
	path := write(t, "crawl.jsonl", []byte(jsonlExport))
	db := cyberdb.New(cyberdb.NewMemStore())
	if err := New().Run(db, path); err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertCrawl(t, db)
}

func TestRunGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(jsonlExport)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	path := write(t, "crawl.jsonl.gz", buf.Bytes())

	db := cyberdb.New(cyberdb.NewMemStore())
	if err := New().Run(db, path); err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertCrawl(t, db)
}

func TestRunJSONArray(t *testing.T) {
	content := `[{"target":"10.0.0.7","share":"C$","directory":"Windows","file":"notes.txt","size":10,"is_directory":false}]`
	path := write(t, "crawl.json", []byte(content))

	db := cyberdb.New(cyberdb.NewMemStore())
	if err := New().Run(db, path); err != nil {
		t.Fatalf("Run: %v", err)
	}
	rec, err := db.First("smb_file", cyberdb.Eq("host", "10.0.0.7"))
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Fatal("array entry not ingested")
	}
}

func assertCrawl(t *testing.T, db *cyberdb.CyberDB) {
	t.Helper()

	file, err := db.First("smb_file", cyberdb.Eq("file", "passwords.xlsx"))
	if err != nil {
		t.Fatal(err)
	}
	if file == nil {
		t.Fatal("file entry not ingested")
	}
	if got := file.Int("size"); got != 2048 {
		t.Errorf("size = %d, want 2048", got)
	}
	if file.Bool("is_directory") {
		t.Error("file flagged as directory")
	}

	// is_directory given as the number 1 still parses.
	dir, err := db.First("smb_file", cyberdb.Eq("file", "scripts"))
	if err != nil {
		t.Fatal(err)
	}
	if dir == nil || !dir.Bool("is_directory") {
		t.Error("numeric is_directory not parsed")
	}

	host, err := db.First("host", cyberdb.Eq("ip", "10.0.0.5"))
	if err != nil {
		t.Fatal(err)
	}
	if host == nil {
		t.Error("crawl target host missing")
	}

	// Malformed and target-less lines are skipped, not fatal.
	var files int
	seq, err := db.Request("smb_file")
	if err != nil {
		t.Fatal(err)
	}
	for range seq {
		files++
	}
	if files != 2 {
		t.Errorf("smb_file count = %d, want 2", files)
	}
}
