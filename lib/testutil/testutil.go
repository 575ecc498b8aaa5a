package testutil

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"

	devenv "courtwatch/dev/env"
	"courtwatch/lib/telemetry"

	_ "modernc.org/sqlite"
)

type ServiceParams struct {
	Name string
	// if unspecified, it will skip setting up a db
	DbSchema string
	// if unspecified, it will use `:memory:`
	DbPath string
}

type ServiceResult struct {
	DB *sql.DB
}

// SetupService installs test telemetry and opens a sqlite database with
// the given schema. The database is closed on cleanup.
func SetupService(t testing.TB, params ServiceParams) ServiceResult {
	t.Cleanup(telemetry.SetupForTesting(t, fmt.Sprintf("test:%s", params.Name)))
	if params.DbSchema == "" {
		return ServiceResult{}
	}

	dbpath := ":memory:"
	if params.DbPath != "" && params.DbPath != ":memory:" {
		var err error
		dbpath, err = devenv.ResolvePath(params.DbPath)
		if err != nil {
			t.Fatal(err)
		}
	}
	sqlite, err := sql.Open("sqlite", dbpath)
	if err != nil {
		t.Fatal(err)
	}
	// every connection to :memory: is a separate database
	sqlite.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlite.Close() })

	_, err = sqlite.Exec(params.DbSchema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		t.Fatal(err)
	}
	return ServiceResult{DB: sqlite}
}
