// Package sqlite opens the catalog databases that back catalog-imported
// books. Two drivers are supported:
//
//   - Default (CGO_ENABLED=0): pure Go modernc.org/sqlite
//   - CGO mode (-tags cgo_sqlite): mattn/go-sqlite3
//
// Use Open or OpenReadOnly instead of sql.Open so the driver name always
// matches the linked implementation.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"

	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
)

// DriverName returns the SQL driver name to use.
func DriverName() string {
	return driverName
}

// DriverType returns a string identifying the underlying implementation.
// Returns "cgo" for mattn/go-sqlite3, "purego" for modernc.org/sqlite.
func DriverType() string {
	return driverType
}

// IsCGO returns true if the CGO implementation is being used.
func IsCGO() bool {
	return driverType == "cgo"
}

// Open opens a SQLite database using the appropriate driver.
func Open(dataSourceName string) (*sql.DB, error) {
	return sql.Open(driverName, dataSourceName)
}

// OpenReadOnly opens an existing database in read-only mode and checks the
// connection.
func OpenReadOnly(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, bserrors.NewIO("open catalog", path, err)
	}
	db, err := Open("file:" + path + "?mode=ro")
	if err != nil {
		return nil, bserrors.NewIO("open catalog", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, bserrors.NewIO("open catalog", path, err)
	}
	return db, nil
}

// MustOpen opens a SQLite database and panics on error. It is intended for
// tests and fixtures.
func MustOpen(dataSourceName string) *sql.DB {
	db, err := Open(dataSourceName)
	if err != nil {
		panic(fmt.Sprintf("sqlite: failed to open %s: %v", dataSourceName, err))
	}
	return db
}

// Info contains information about the SQLite driver configuration.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo returns information about the current SQLite configuration.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		IsCGO:      IsCGO(),
		Package:    driverPackage,
	}
}
