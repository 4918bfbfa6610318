package masscan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/redopsio/cyberkb/pkg/cyberdb"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    bool
	}{
		{"conventional name", "masscan.txt", "whatever", true},
		{"banner", "scan.out", "Discovered open port 445/tcp on 10.0.0.1\n", true},
		{"neither", "scan.out", "Nmap scan report for 10.0.0.1\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			if got := New().Match(path); got != tt.want {
				t.Errorf("Match(%s) = %v, want %v", tt.file, got, tt.want)
			}
		})
	}
}

func TestRun(t *testing.T) {
	content := "Discovered open port 445/tcp on 10.0.0.1\n" +
		"Discovered open port 53/udp on 10.0.0.2\n" +
		"Discovered open port 0/icmp on 10.0.0.3\n" +
		"this line is garbage\n" +
		"Discovered open port 445/tcp on 10.0.0.1\n"
	path := writeFile(t, "masscan.txt", content)

	db := cyberdb.New(cyberdb.NewMemStore())
	if err := New().Run(db, path); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var hosts int
	seq, err := db.Request("host")
	if err != nil {
		t.Fatal(err)
	}
	for range seq {
		hosts++
	}
	if hosts != 3 {
		t.Errorf("hosts = %d, want 3", hosts)
	}

	// The duplicate 445/tcp line must merge into one service.
	var services int
	seq, err = db.Request("service")
	if err != nil {
		t.Fatal(err)
	}
	for range seq {
		services++
	}
	if services != 2 {
		t.Errorf("services = %d, want 2", services)
	}

	svc, err := db.First("service", cyberdb.Eq("host", "10.0.0.2"))
	if err != nil {
		t.Fatal(err)
	}
	if svc == nil {
		t.Fatal("udp service not found")
	}
	if got := svc.Int("port"); got != 53 {
		t.Errorf("port = %d, want 53", got)
	}
	if got := svc.String("protocol"); got != "udp" {
		t.Errorf("protocol = %q, want udp", got)
	}

	// ICMP discovery records the host only.
	svc, err = db.First("service", cyberdb.Eq("host", "10.0.0.3"))
	if err != nil {
		t.Fatal(err)
	}
	if svc != nil {
		t.Error("icmp line should not create a service")
	}
}

func TestRunMissingFile(t *testing.T) {
	db := cyberdb.New(cyberdb.NewMemStore())
	if err := New().Run(db, filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
