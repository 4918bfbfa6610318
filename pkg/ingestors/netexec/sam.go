package netexec

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/redopsio/cyberkb/pkg/core"
	"github.com/redopsio/cyberkb/pkg/cyberdb"
	kberrors "github.com/redopsio/cyberkb/pkg/errors"
)

// ingestSAM parses a pillaged SAM dump. The file name encodes its origin
// as DOMAIN_IP_<timestamp>.sam; lines are user:rid:lmhash:nthash. A line
// that does not fit means the file is not a SAM dump, which is fatal.
func (i *Ingestor) ingestSAM(db *cyberdb.CyberDB, path string) error {
	const op = "netexec.Ingestor.ingestSAM"

	parts := strings.SplitN(filepath.Base(path), "_", 3)
	if len(parts) < 3 {
		return kberrors.Newf(kberrors.KindInvalidInput, op, "sam file name %q does not encode domain and ip", filepath.Base(path))
	}
	domain := strings.ToLower(parts[0])
	ip := parts[1]

	if _, err := db.Feed("dns", cyberdb.Fields{"ip": ip, "domain_name": domain}); err != nil {
		return err
	}

	r, err := core.OpenInput(path)
	if err != nil {
		return kberrors.Wrap(kberrors.KindInvalidInput, op, "open input", err)
	}
	defer r.Close()

	for line := range core.Lines(r) {
		fields := strings.Split(line, ":")
		if len(fields) < 4 {
			return kberrors.Newf(kberrors.KindInvalidInput, op, "invalid sam line %q", line)
		}

		rec := cyberdb.Fields{
			"host": ip,
			"user": strings.ToLower(fields[0]),
			"lm":   strings.ToLower(fields[2]),
			"ntlm": strings.ToLower(fields[3]),
		}
		if rid, err := strconv.Atoi(fields[1]); err == nil {
			rec["rid"] = rid
		}
		if _, err := db.Feed("windows_user", rec); err != nil {
			return err
		}
	}
	return nil
}
