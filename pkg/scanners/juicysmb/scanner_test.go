package juicysmb

import (
	"fmt"
	"testing"

	"github.com/redopsio/cyberkb/pkg/cyberdb"
)

func feedFile(t *testing.T, db *cyberdb.CyberDB, file string, isDir bool) {
	t.Helper()
	_, err := db.Feed("smb_file", cyberdb.Fields{
		"host":         "10.0.0.5",
		"share":        "IT",
		"directory":    "stuff",
		"file":         file,
		"size":         100,
		"is_directory": isDir,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		file string
		rule string
		want bool
	}{
		{"vault.kdbx", RuleSuffix, true},
		{"id_rsa", RuleName, true},
		{"Unattend.xml", RuleName, true},
		{"Domain Passwords 2024.xlsx", RuleContains, true},
		{"geheime secrets.txt", RuleContains, true},
		{"quarterly-report.docx", "", false},
		{"readme.md", "", false},
		// Skip extensions override the fragment rules.
		{"password.jpg", "", false},
		{"secrets.dll", "", false},
		{"passwords.md5", "", false},
	}
	for _, tt := range tests {
		h, ok := match(tt.file)
		if ok != tt.want {
			t.Errorf("match(%q) = %v, want %v", tt.file, ok, tt.want)
			continue
		}
		if ok && h.rule != tt.rule {
			t.Errorf("match(%q).rule = %q, want %q", tt.file, h.rule, tt.rule)
		}
	}
}

func TestRun(t *testing.T) {
	db := cyberdb.New(cyberdb.NewMemStore())
	feedFile(t, db, "vault.kdbx", false)
	feedFile(t, db, "boring.txt", false)
	// A directory named like a hit is not a file hit.
	feedFile(t, db, "passwords", true)

	if err := New().Run(db, db.Emitter(name)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	obs, err := db.GetObservations(control)
	if err != nil {
		t.Fatal(err)
	}
	if len(obs) != 1 {
		t.Fatalf("observations = %d, want 1", len(obs))
	}
	if got := obs[0].Details("details")["file"]; got != `\\10.0.0.5\IT\stuff\vault.kdbx` {
		t.Errorf("file = %v", got)
	}

	hit, err := db.First("juicy_search", cyberdb.Eq("rule_name", RuleSuffix))
	if err != nil {
		t.Fatal(err)
	}
	if hit == nil {
		t.Fatal("juicy_search record missing")
	}
	if got := hit.String("rule_value"); got != ".kdbx" {
		t.Errorf("rule_value = %q", got)
	}
}

func TestRunCap(t *testing.T) {
	db := cyberdb.New(cyberdb.NewMemStore())
	db.Config().Scan.MaxSMBFiles = 5
	for i := 0; i < 20; i++ {
		feedFile(t, db, fmt.Sprintf("secret_%02d.txt", i), false)
	}

	if err := New().Run(db, db.Emitter(name)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	obs, err := db.GetObservations(control)
	if err != nil {
		t.Fatal(err)
	}
	if len(obs) != 5 {
		t.Errorf("observations = %d, want 5 (cap)", len(obs))
	}
}
