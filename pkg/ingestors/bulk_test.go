package ingestors

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/redopsio/cyberkb/pkg/cyberdb"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	if _, ok := reg.Lookup("all"); !ok {
		t.Error("bulk walker not registered")
	}
	for _, want := range []string{"masscan", "ntds", "hashcat", "bloodhound", "netexec", "pingcastle_users", "pingcastle_computers", "smbfiles", "eyewitness"} {
		if _, ok := reg.Lookup(want); !ok {
			t.Errorf("ingestor %s not registered", want)
		}
	}

	// Probe order is the registration order.
	names := reg.Names()
	if names[0] != "masscan" || names[len(names)-1] != "all" {
		t.Errorf("unexpected order: %v", names)
	}
}

func TestRegistryReplace(t *testing.T) {
	reg := NewRegistry()
	before := len(reg.All())
	reg.Register(NewBulk(reg))
	if got := len(reg.All()); got != before {
		t.Errorf("re-registering should replace, got %d ingestors, want %d", got, before)
	}
}

// writeEngagement builds a loot tree exercising file detection, directory
// detection and error containment:
//
//	loot/
//	  masscan.txt            file match
//	  notes.txt              matches nothing
//	  bloodhound/            dir match, pruned after the match
//	    20240601_users.json
//	    decoy_masscan.txt    must NOT be ingested (subtree pruned)
func writeEngagement(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"masscan.txt":                    "Discovered open port 445/tcp on 10.0.0.1\n",
		"notes.txt":                      "nothing to see here\n",
		"bloodhound/20240601_users.json": `{"data":[{"ObjectIdentifier":"S-1-5-21-1","Properties":{"name":"JDOE@CORP.LOCAL"}}]}`,
		"bloodhound/decoy_masscan.txt":   "Discovered open port 22/tcp on 172.16.0.1\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestBulkRun(t *testing.T) {
	reg := NewRegistry()
	db := cyberdb.New(cyberdb.NewMemStore(), cyberdb.WithIngestors(reg))

	if err := db.Ingest("all", writeEngagement(t)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	// File match ran.
	host, err := db.First("host", cyberdb.Eq("ip", "10.0.0.1"))
	if err != nil {
		t.Fatal(err)
	}
	if host == nil {
		t.Error("masscan.txt was not ingested")
	}

	// Directory match ran.
	user, err := db.First("ad_user", cyberdb.Eq("name", "jdoe"))
	if err != nil {
		t.Fatal(err)
	}
	if user == nil {
		t.Error("bloodhound directory was not ingested")
	}

	// The claimed directory was pruned: the decoy inside it must not
	// have been probed as a standalone file.
	decoy, err := db.First("host", cyberdb.Eq("ip", "172.16.0.1"))
	if err != nil {
		t.Fatal(err)
	}
	if decoy != nil {
		t.Error("file inside a claimed directory was ingested")
	}
}

func TestBulkRunMissingRoot(t *testing.T) {
	reg := NewRegistry()
	db := cyberdb.New(cyberdb.NewMemStore(), cyberdb.WithIngestors(reg))
	if err := db.Ingest("all", filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing root")
	}
}

// TestBulkErrorContainment feeds the walker a tree whose only match is an
// ingestor that fails; the walk itself must still succeed.
func TestBulkErrorContainment(t *testing.T) {
	root := t.TempDir()
	// A directory claimed by bloodhound whose export is not valid JSON.
	bh := filepath.Join(root, "bloodhound")
	if err := os.MkdirAll(bh, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bh, "x_users.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "masscan.txt"), []byte("Discovered open port 80/tcp on 10.1.1.1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry()
	db := cyberdb.New(cyberdb.NewMemStore(), cyberdb.WithIngestors(reg))
	if err := db.Ingest("all", root); err != nil {
		t.Fatalf("broken input aborted the walk: %v", err)
	}

	// The sibling file was still ingested.
	host, err := db.First("host", cyberdb.Eq("ip", "10.1.1.1"))
	if err != nil {
		t.Fatal(err)
	}
	if host == nil {
		t.Error("walk did not continue past the failing ingestor")
	}
}
