package netexec

import (
	"database/sql"
	"strings"

	"github.com/redopsio/cyberkb/pkg/cyberdb"
	kberrors "github.com/redopsio/cyberkb/pkg/errors"
	"github.com/redopsio/cyberkb/pkg/metrics"

	_ "modernc.org/sqlite"
)

// unknownSentinel is what nxc stores when a target did not reveal its
// domain. It is treated as absent, never as a domain name.
const unknownSentinel = "\x00"

func openDatabase(path string) (*sql.DB, error) {
	const op = "netexec.openDatabase"
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, kberrors.Wrap(kberrors.KindInvalidInput, op, "open sqlite database", err)
	}
	return sqlDB, nil
}

// parseSMB ingests an smb.db: hosts become host + service + service_smb
// records, users become ad_user or windows_user records. Rows stream
// through the cursor; nothing is materialized beyond the hostname index.
func (i *Ingestor) parseSMB(db *cyberdb.CyberDB, path string) error {
	const op = "netexec.Ingestor.parseSMB"

	sqlDB, err := openDatabase(path)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	// hostname -> ip, for reclassifying "domain" values that are really
	// machine names.
	hostnames := make(map[string]string)

	rows, err := sqlDB.Query(`SELECT ip, hostname, domain, os, smbv1, signing FROM hosts`)
	if err != nil {
		return kberrors.Wrap(kberrors.KindInvalidInput, op, "query hosts", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ip, hostname, domain, osName sql.NullString
		var smbv1, signing sql.NullBool
		if err := rows.Scan(&ip, &hostname, &domain, &osName, &smbv1, &signing); err != nil {
			return kberrors.Wrap(kberrors.KindInvalidInput, op, "scan hosts row", err)
		}
		if !ip.Valid || ip.String == "" {
			metrics.RowsSkipped.WithLabelValues(name).Inc()
			continue
		}

		hostFields := cyberdb.Fields{"ip": ip.String}
		if hostname.Valid && hostname.String != "" {
			lower := strings.ToLower(hostname.String)
			hostnames[lower] = ip.String
			hostFields["hostname"] = lower
		}
		if domain.Valid && domain.String != "" && domain.String != unknownSentinel {
			hostFields["domain"] = strings.ToLower(domain.String)
		}
		if osName.Valid && strings.Contains(strings.ToLower(osName.String), "windows") {
			hostFields["os_family"] = "windows"
		}
		if _, err := db.Feed("host", hostFields); err != nil {
			return err
		}

		svcFields := cyberdb.Fields{
			"host":     ip.String,
			"port":     445,
			"protocol": "tcp",
			"type":     "smb",
		}
		if osName.Valid && osName.String != "" {
			svcFields["banner"] = osName.String
		}
		if _, err := db.Feed("service", svcFields); err != nil {
			return err
		}

		smbFields := cyberdb.Fields{"host": ip.String, "port": 445}
		if smbv1.Valid {
			smbFields["smbv1"] = smbv1.Bool
		}
		if signing.Valid {
			smbFields["signing"] = signing.Bool
		}
		if _, err := db.Feed("service_smb", smbFields); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return kberrors.Wrap(kberrors.KindInvalidInput, op, "iterate hosts", err)
	}

	return i.parseSMBUsers(db, sqlDB, hostnames)
}

// parseSMBUsers classifies the users table. A row whose domain is empty
// or the unknown sentinel is unattributable and discarded; "." rows
// duplicate local accounts already present under their hostname; a
// domain equal to a known hostname marks a local account.
func (i *Ingestor) parseSMBUsers(db *cyberdb.CyberDB, sqlDB *sql.DB, hostnames map[string]string) error {
	const op = "netexec.Ingestor.parseSMBUsers"

	rows, err := sqlDB.Query(`SELECT domain, username, password, credtype FROM users`)
	if err != nil {
		return kberrors.Wrap(kberrors.KindInvalidInput, op, "query users", err)
	}
	defer rows.Close()

	log := db.Logger()
	for rows.Next() {
		var domain, username, password, credtype sql.NullString
		if err := rows.Scan(&domain, &username, &password, &credtype); err != nil {
			return kberrors.Wrap(kberrors.KindInvalidInput, op, "scan users row", err)
		}
		if !username.Valid || username.String == "" {
			metrics.RowsSkipped.WithLabelValues(name).Inc()
			continue
		}

		dom := strings.ToLower(strings.TrimSpace(domain.String))
		switch dom {
		case "", unknownSentinel, ".":
			metrics.RowsSkipped.WithLabelValues(name).Inc()
			log.Debug("discarding unattributable credential for %q", username.String)
			continue
		}

		fields := cyberdb.Fields{}
		switch credtype.String {
		case "plaintext":
			fields["password"] = password.String
		case "hash":
			lm, ntlm, found := strings.Cut(password.String, ":")
			if found {
				fields["lm"] = strings.ToLower(lm)
				fields["ntlm"] = strings.ToLower(ntlm)
			} else {
				fields["ntlm"] = strings.ToLower(password.String)
			}
		}

		user := strings.ToLower(username.String)
		if ip, local := hostnames[dom]; local {
			fields["host"] = ip
			fields["user"] = user
			if _, err := db.Feed("windows_user", fields); err != nil {
				return err
			}
			continue
		}

		fields["name"] = user
		fields["domain"] = dom
		if _, err := db.Feed("ad_user", fields); err != nil {
			return err
		}
	}
	return rows.Err()
}

// parseFTP ingests an ftp.db hosts table into ftp services.
func (i *Ingestor) parseFTP(db *cyberdb.CyberDB, path string) error {
	const op = "netexec.Ingestor.parseFTP"

	sqlDB, err := openDatabase(path)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	rows, err := sqlDB.Query(`SELECT host, port, banner FROM hosts`)
	if err != nil {
		return kberrors.Wrap(kberrors.KindInvalidInput, op, "query hosts", err)
	}
	defer rows.Close()

	for rows.Next() {
		var host, banner sql.NullString
		var port sql.NullInt64
		if err := rows.Scan(&host, &port, &banner); err != nil {
			return kberrors.Wrap(kberrors.KindInvalidInput, op, "scan hosts row", err)
		}
		if !host.Valid || host.String == "" || !port.Valid {
			metrics.RowsSkipped.WithLabelValues(name).Inc()
			continue
		}

		if _, err := db.Feed("host", cyberdb.Fields{"ip": host.String}); err != nil {
			return err
		}
		fields := cyberdb.Fields{
			"host":     host.String,
			"port":     port.Int64,
			"protocol": "tcp",
			"type":     "ftp",
		}
		if banner.Valid && banner.String != "" {
			fields["banner"] = banner.String
		}
		if _, err := db.Feed("service", fields); err != nil {
			return err
		}
	}
	return rows.Err()
}
