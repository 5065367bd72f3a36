package transaction

import (
	"context"
	"database/sql"
)

// SQLInstalledQuery answers InstalledQuery against a SQL-backed
// installed-package database (the shape of RPM's rpmdb or Zypp's
// solv cache once fronted by database/sql), the concrete collaborator
// a spawn-backed or native backend wires in place of a fixture.
type SQLInstalledQuery struct {
	DB *sql.DB

	// Table/Columns let a backend point this at whatever schema its
	// installed-DB actually uses; defaulted to a plausible rpmdb-style
	// shape if left zero.
	Table      string
	NameCol    string
	ArchCol    string
	VersionCol string
}

func (q SQLInstalledQuery) table() string      { return defaultString(q.Table, "installed_packages") }
func (q SQLInstalledQuery) nameCol() string    { return defaultString(q.NameCol, "name") }
func (q SQLInstalledQuery) archCol() string    { return defaultString(q.ArchCol, "arch") }
func (q SQLInstalledQuery) versionCol() string { return defaultString(q.VersionCol, "version") }

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// InstalledVersion implements InstalledQuery by selecting the single
// version column for (name, arch). A missing row (sql.ErrNoRows) means
// "not installed", not an error.
func (q SQLInstalledQuery) InstalledVersion(ctx context.Context, name, arch string) (string, bool) {
	if q.DB == nil {
		return "", false
	}
	query := "SELECT " + q.versionCol() + " FROM " + q.table() +
		" WHERE " + q.nameCol() + " = ? AND " + q.archCol() + " = ?"
	row := q.DB.QueryRowContext(ctx, query, name, arch)
	var version string
	if err := row.Scan(&version); err != nil {
		return "", false
	}
	return version, true
}
