package compromised

import (
	"testing"

	"github.com/redopsio/cyberkb/pkg/cyberdb"
)

func TestRun(t *testing.T) {
	db := cyberdb.New(cyberdb.NewMemStore())
	seed := []cyberdb.Fields{
		{"name": "jdoe", "domain": "corp", "password": "Summer2024!"},
		{"name": "svc", "domain": "corp", "ntlm": "8846f7eaee8fb117ad06bdd830b7586c"},
		// Blank hash is not credential material.
		{"name": "empty", "domain": "corp", "ntlm": ntlmBlank},
		{"name": "clean", "domain": "corp"},
	}
	for _, fields := range seed {
		if _, err := db.Feed("ad_user", fields); err != nil {
			t.Fatal(err)
		}
	}

	if err := New().Run(db, db.Emitter(name)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	obs, err := db.GetObservations(control)
	if err != nil {
		t.Fatal(err)
	}
	if len(obs) != 2 {
		t.Fatalf("observations = %d, want 2", len(obs))
	}

	users := make(map[any]bool)
	for _, rec := range obs {
		users[rec.Details("details")["user"]] = true
		if got := rec.String("severity"); got != "high" {
			t.Errorf("severity = %q, want high", got)
		}
	}
	if !users["jdoe"] || !users["svc"] {
		t.Errorf("users = %v, want jdoe and svc", users)
	}
}
