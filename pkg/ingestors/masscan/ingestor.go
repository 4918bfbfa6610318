// Package masscan ingests masscan list-format output ("Discovered open
// port ..." lines) into hosts and services.
package masscan

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/redopsio/cyberkb/pkg/core"
	"github.com/redopsio/cyberkb/pkg/cyberdb"
	kberrors "github.com/redopsio/cyberkb/pkg/errors"
	"github.com/redopsio/cyberkb/pkg/metrics"
)

const name = "masscan"

// discoveredRe matches the first line of masscan -oL style output.
var discoveredRe = regexp.MustCompile(`^Discovered open port \d+`)

// Ingestor parses masscan text output.
type Ingestor struct{}

// New creates a masscan ingestor.
func New() *Ingestor { return &Ingestor{} }

// Name returns the ingestor name.
func (i *Ingestor) Name() string { return name }

// Description returns a short human-readable description.
func (i *Ingestor) Description() string {
	return "Parses masscan 'Discovered open port' output into hosts and services"
}

// Autodetect reports that masscan output is detected on files.
func (i *Ingestor) Autodetect() cyberdb.Autodetect { return cyberdb.AutodetectFile }

// Match recognizes masscan output either by the conventional file name or
// by the leading "Discovered open port" banner.
func (i *Ingestor) Match(path string) bool {
	if strings.HasSuffix(path, "masscan.txt") {
		return true
	}
	return discoveredRe.MatchString(core.SniffPrefix(path, 500))
}

// Run ingests the file at path. Malformed lines are skipped and counted;
// they never abort the rest of the file.
func (i *Ingestor) Run(db *cyberdb.CyberDB, path string) error {
	const op = "masscan.Ingestor.Run"

	r, err := core.OpenInput(path)
	if err != nil {
		return kberrors.Wrap(kberrors.KindInvalidInput, op, "open input", err)
	}
	defer r.Close()

	log := db.Logger()
	for line := range core.Lines(r) {
		if strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		// Discovered open port 445/tcp on 10.0.0.1
		if len(fields) != 6 || fields[0] != "Discovered" {
			metrics.RowsSkipped.WithLabelValues(name).Inc()
			log.Debug("skipping malformed line: %q", line)
			continue
		}

		portProto := strings.SplitN(fields[3], "/", 2)
		if len(portProto) != 2 {
			metrics.RowsSkipped.WithLabelValues(name).Inc()
			log.Debug("skipping malformed port/protocol: %q", fields[3])
			continue
		}
		ip := fields[5]

		if portProto[1] == "icmp" {
			if _, err := db.Feed("host", cyberdb.Fields{"ip": ip}); err != nil {
				return err
			}
			continue
		}

		port, err := strconv.Atoi(portProto[0])
		if err != nil {
			metrics.RowsSkipped.WithLabelValues(name).Inc()
			log.Debug("skipping non-numeric port: %q", portProto[0])
			continue
		}

		if _, err := db.Feed("host", cyberdb.Fields{"ip": ip}); err != nil {
			return err
		}
		if _, err := db.Feed("service", cyberdb.Fields{
			"host":     ip,
			"port":     port,
			"protocol": portProto[1],
		}); err != nil {
			return err
		}
	}
	return nil
}
