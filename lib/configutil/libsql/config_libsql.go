package configlibsql

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	devenv "courtwatch/dev/env"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Struct selects where a database lives. Url (a remote libsql server)
// wins over File (a local sqlite file, "<dev_state>" prefixes allowed).
// File may be ":memory:".
type Struct struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func (config Struct) OpenDB() (*sql.DB, error) {
	if config.Url != "" {
		values := url.Values{}
		if config.AuthToken != "" {
			values.Add("authToken", config.AuthToken)
		}
		return sql.Open("libsql", config.Url+"?"+values.Encode())
	}
	if config.File == "" {
		return nil, fmt.Errorf("neither a url nor a file was specified")
	}

	dbpath := config.File
	if dbpath != ":memory:" {
		var err error
		dbpath, err = devenv.ResolvePath(config.File)
		if err != nil {
			return nil, err
		}
		err = os.MkdirAll(filepath.Dir(dbpath), 0777)
		if err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbpath)
	if err != nil {
		return nil, err
	}
	// sqlite only tolerates one writer, WAL lets readers proceed alongside it
	db.SetMaxOpenConns(1)
	if dbpath != ":memory:" {
		_, err = db.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

// OpenWithSchema opens the database and applies a schema made of
// idempotent (CREATE ... IF NOT EXISTS) statements.
func (config Struct) OpenWithSchema(schema string) (*sql.DB, error) {
	db, err := config.OpenDB()
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(schema)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
