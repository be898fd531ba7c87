package configsqlite

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Struct describes where the price database lives. A `file` opens a
// local sqlite database (parent directories are created on demand),
// a `url` connects to a remote libsql instance instead.
type Struct struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func (config Struct) OpenDB() (*sql.DB, error) {
	if config.Url == "" {
		if config.File == "" {
			return nil, fmt.Errorf("database config: neither file nor url specified")
		}
		dir := filepath.Dir(config.File)
		if dir != "." {
			err := os.MkdirAll(dir, 0755)
			if err != nil {
				return nil, err
			}
		}
		return sql.Open("sqlite", config.File)
	}

	link, err := url.Parse(config.Url)
	if err != nil {
		return nil, err
	}
	if config.AuthToken != "" {
		query := link.Query()
		query.Set("authToken", config.AuthToken)
		link.RawQuery = query.Encode()
	}
	return sql.Open("libsql", link.String())
}
