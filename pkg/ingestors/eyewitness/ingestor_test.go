package eyewitness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/redopsio/cyberkb/pkg/cyberdb"
)

func writeOutputDir(t *testing.T, requests string) string {
	t.Helper()
	dir := t.TempDir()
	if requests != "" {
		if err := os.WriteFile(filepath.Join(dir, "Requests.csv"), []byte(requests), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

const requestsCSV = `Protocol,Port,Domain,Request Status,Screenshot Path,Source Path
http,8080,10.0.0.5,Successful,screens/a.png,source/a.txt
https,443,10.0.0.5,Successful,screens/b.png,source/b.txt
http,80,intranet.corp.local,Successful,screens/c.png,source/c.txt
http,notaport,10.0.0.9,Successful,,
`

func TestMatch(t *testing.T) {
	ing := New()
	if !ing.Match(writeOutputDir(t, requestsCSV)) {
		t.Error("output directory should match")
	}
	if ing.Match(writeOutputDir(t, "")) {
		t.Error("directory without Requests.csv should not match")
	}
}

func TestRun(t *testing.T) {
	db := cyberdb.New(cyberdb.NewMemStore())
	if err := New().Run(db, writeOutputDir(t, requestsCSV)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	svc, err := db.First("service", cyberdb.Eq("port", 8080))
	if err != nil {
		t.Fatal(err)
	}
	if svc == nil {
		t.Fatal("http service not ingested")
	}
	if got := svc.String("type"); got != "http" {
		t.Errorf("type = %q, want http", got)
	}

	tls, err := db.First("service", cyberdb.Eq("port", 443))
	if err != nil {
		t.Fatal(err)
	}
	if tls == nil || tls.String("type") != "https" {
		t.Error("https service not ingested")
	}

	// Hostname targets and bad ports are skipped.
	var services int
	seq, err := db.Request("service")
	if err != nil {
		t.Fatal(err)
	}
	for range seq {
		services++
	}
	if services != 2 {
		t.Errorf("service count = %d, want 2", services)
	}
}

func TestRunMissingRequests(t *testing.T) {
	db := cyberdb.New(cyberdb.NewMemStore())
	if err := New().Run(db, writeOutputDir(t, "")); err == nil {
		t.Fatal("expected error for missing Requests.csv")
	}
}
