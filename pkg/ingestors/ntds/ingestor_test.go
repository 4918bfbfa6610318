package ntds

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/redopsio/cyberkb/pkg/cyberdb"
)

const sampleDump = `Impacket v0.11.0 - Copyright 2023 Fortra

[*] Target system bootKey: 0x8fd9c0a3
[*] Dumping local SAM hashes (uid:rid:lmhash:nthash)
CORP\Administrator:500:aad3b435b51404eeaad3b435b51404ee:8846F7EAEE8FB117AD06BDD830B7586C:::
CORP\svc_backup:1105:aad3b435b51404eeaad3b435b51404ee:31d6cfe0d16ae931b73c59d7e0c089c0:::
CORP\WS01$:1001:aad3b435b51404eeaad3b435b51404ee:c1c635aa12ae60b7fe39e28456a7bac6:::
orphanuser:1200:aad3b435b51404eeaad3b435b51404ee:0cb6948805f797bf2a82807973b89537:::
CORP\broken:1300:aad3b435b51404eeaad3b435b51404ee:tooshort:::
[*] Dumping cached domain logon information (domain/username:hash)
CORP\jdoe:CLEARTEXT:Summer2024!
CORP.LOCAL\krbtgt:aes256-cts-hmac-sha1-96:3f1a9c
dpapi_machinekey:0xdeadbeef
NL$KM
0000   AA BB CC DD EE FF 00 11
`

func writeDump(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secretsdump.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMatch(t *testing.T) {
	good := writeDump(t, sampleDump)
	if !New().Match(good) {
		t.Error("expected secretsdump output to match")
	}
	bad := writeDump(t, "Discovered open port 445/tcp on 10.0.0.1\n")
	if New().Match(bad) {
		t.Error("masscan output should not match")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		line string
		want lineKind
	}{
		{"banner", "[*] Dumping local SAM hashes (uid:rid:lmhash:nthash)", lineSkip},
		{"hash line", `CORP\bob:1104:aad3b435b51404eeaad3b435b51404ee:8846f7eaee8fb117ad06bdd830b7586c:::`, lineSecret},
		{"cleartext", `CORP\bob:CLEARTEXT:hunter2`, lineCleartext},
		{"machine account", `CORP\WS01$:1001:aad3b435b51404eeaad3b435b51404ee:8846f7eaee8fb117ad06bdd830b7586c:::`, lineSkip},
		{"no domain", `bob:1104:aad3b435b51404eeaad3b435b51404ee:8846f7eaee8fb117ad06bdd830b7586c:::`, lineSkip},
		{"bad ntlm length", `CORP\bob:1104:aad3b435b51404eeaad3b435b51404ee:short:::`, lineMalformed},
		{"bad rid", `CORP\bob:notanint:aad3b435b51404eeaad3b435b51404ee:8846f7eaee8fb117ad06bdd830b7586c:::`, lineMalformed},
		{"kerberos key", `CORP.LOCAL\krbtgt:aes256-cts-hmac-sha1-96:3f1a9c`, lineSkip},
		{"plain password hex", `CORP.LOCAL\svc:plain_password_hex:41424344`, lineSkip},
		{"dpapi", "dpapi_userkey:0x1122", lineSkip},
		{"hexdump", "0000   AA BB CC DD EE FF 00 11", lineSkip},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, got := classify(tt.line); got != tt.want {
				t.Errorf("classify(%q) = %d, want %d", tt.line, got, tt.want)
			}
		})
	}
}

func TestRun(t *testing.T) {
	db := cyberdb.New(cyberdb.NewMemStore())
	if err := New().Run(db, writeDump(t, sampleDump)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	admin, err := db.First("ad_user", cyberdb.Eq("name", "administrator"))
	if err != nil {
		t.Fatal(err)
	}
	if admin == nil {
		t.Fatal("administrator not ingested")
	}
	if got := admin.String("domain"); got != "corp" {
		t.Errorf("domain = %q, want corp", got)
	}
	if got := admin.Int("rid"); got != 500 {
		t.Errorf("rid = %d, want 500", got)
	}
	if got := admin.String("ntlm"); got != "8846f7eaee8fb117ad06bdd830b7586c" {
		t.Errorf("ntlm = %q, not lowercased", got)
	}

	jdoe, err := db.First("ad_user", cyberdb.Eq("name", "jdoe"))
	if err != nil {
		t.Fatal(err)
	}
	if jdoe == nil {
		t.Fatal("cleartext user not ingested")
	}
	if got := jdoe.String("password"); got != "Summer2024!" {
		t.Errorf("password = %q", got)
	}

	// Machine account, orphan user and the malformed NTLM row stay out.
	for _, absent := range []string{"ws01$", "orphanuser", "broken"} {
		rec, err := db.First("ad_user", cyberdb.Eq("name", absent))
		if err != nil {
			t.Fatal(err)
		}
		if rec != nil {
			t.Errorf("%s should not be ingested", absent)
		}
	}
}
