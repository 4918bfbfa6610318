// Package netexec ingests NetExec (nxc) home directories: per-protocol
// sqlite databases under workspaces/ and .sam dumps under logs/.
package netexec

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/redopsio/cyberkb/pkg/cyberdb"
	kberrors "github.com/redopsio/cyberkb/pkg/errors"
)

const name = "netexec"

// knownProtocols are the database stems NetExec writes. Only smb and ftp
// carry data the knowledge base models; the rest are recognized so the
// walker does not flag them as foreign files.
var knownProtocols = map[string]bool{
	"ftp":   true,
	"ldap":  true,
	"mssql": true,
	"nfs":   true,
	"rdp":   true,
	"smb":   true,
	"ssh":   true,
	"vnc":   true,
	"winrm": true,
	"wmi":   true,
}

// Ingestor parses NetExec output directories and files.
type Ingestor struct{}

// New creates a netexec ingestor.
func New() *Ingestor { return &Ingestor{} }

// Name returns the ingestor name.
func (i *Ingestor) Name() string { return name }

// Description returns a short human-readable description.
func (i *Ingestor) Description() string {
	return "Parses NetExec sqlite workspaces and .sam dumps into hosts, services and credentials"
}

// Autodetect reports that NetExec output is detected on directories.
func (i *Ingestor) Autodetect() cyberdb.Autodetect { return cyberdb.AutodetectDir }

// Match recognizes either the nxc home directory (contains workspaces/)
// or a single workspace directory (contains <protocol>.db files).
func (i *Ingestor) Match(path string) bool {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() && e.Name() == "workspaces" {
			return true
		}
		if !e.IsDir() && knownProtocols[strings.TrimSuffix(e.Name(), ".db")] &&
			strings.HasSuffix(e.Name(), ".db") {
			return true
		}
	}
	return false
}

// Run ingests path, which may be an nxc home directory, a workspace
// directory, a single protocol database or a .sam dump.
func (i *Ingestor) Run(db *cyberdb.CyberDB, path string) error {
	const op = "netexec.Ingestor.Run"

	st, err := os.Stat(path)
	if err != nil {
		return kberrors.Wrap(kberrors.KindNotFound, op, "stat input", err)
	}

	if !st.IsDir() {
		switch {
		case strings.HasSuffix(path, ".db"):
			return i.ingestDatabase(db, path)
		case strings.HasSuffix(path, ".sam"):
			return i.ingestSAM(db, path)
		default:
			return kberrors.Newf(kberrors.KindUnsupportedFormat, op, "unrecognized netexec file %q", path)
		}
	}

	if _, err := os.Stat(filepath.Join(path, "workspaces")); err == nil {
		return i.ingestHome(db, path)
	}
	return i.ingestWorkspace(db, path)
}

// ingestHome reads every workspace database and every logs/*.sam dump of
// an nxc home directory. A broken database is logged and skipped.
func (i *Ingestor) ingestHome(db *cyberdb.CyberDB, home string) error {
	log := db.Logger()

	workspaces, err := filepath.Glob(filepath.Join(home, "workspaces", "*"))
	if err != nil {
		return err
	}
	for _, ws := range workspaces {
		if st, err := os.Stat(ws); err != nil || !st.IsDir() {
			continue
		}
		if err := i.ingestWorkspace(db, ws); err != nil {
			log.Error("workspace %s: %v", ws, err)
		}
	}

	sams, err := filepath.Glob(filepath.Join(home, "logs", "*.sam"))
	if err != nil {
		return err
	}
	for _, sam := range sams {
		if err := i.ingestSAM(db, sam); err != nil {
			log.Error("sam dump %s: %v", sam, err)
		}
	}
	return nil
}

func (i *Ingestor) ingestWorkspace(db *cyberdb.CyberDB, dir string) error {
	const op = "netexec.Ingestor.ingestWorkspace"

	dbs, err := filepath.Glob(filepath.Join(dir, "*.db"))
	if err != nil {
		return err
	}
	if len(dbs) == 0 {
		return kberrors.Newf(kberrors.KindInvalidInput, op, "no protocol databases under %q", dir)
	}

	log := db.Logger()
	for _, dbPath := range dbs {
		if err := i.ingestDatabase(db, dbPath); err != nil {
			if kberrors.IsUnsupportedFormat(err) {
				log.Debug("skipping %s: %v", dbPath, err)
				continue
			}
			log.Error("database %s: %v", dbPath, err)
		}
	}
	return nil
}

// ingestDatabase routes a protocol database to its parser. Protocols the
// knowledge base has no entities for are recognized but skipped.
func (i *Ingestor) ingestDatabase(db *cyberdb.CyberDB, path string) error {
	const op = "netexec.Ingestor.ingestDatabase"

	protocol := strings.TrimSuffix(filepath.Base(path), ".db")
	switch protocol {
	case "smb":
		return i.parseSMB(db, path)
	case "ftp":
		return i.parseFTP(db, path)
	default:
		if knownProtocols[protocol] {
			db.Logger().Info("protocol %s not modeled, skipping %s", protocol, path)
			return nil
		}
		return kberrors.Newf(kberrors.KindUnsupportedFormat, op, "unknown protocol database %q", path)
	}
}
