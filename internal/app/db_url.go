package app

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

var defaultSQLitePragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"foreign_keys(1)",
}

// normalizeSQLiteDSN turns DB_URL into a modernc DSN. Plain paths gain the
// "file:" prefix and the default pragmas are added unless the URL sets its own.
func normalizeSQLiteDSN(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "sqlite://")
	if !strings.HasPrefix(raw, "file:") {
		raw = "file:" + raw
	}

	path, rawQuery, _ := strings.Cut(raw, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return raw
	}
	if _, ok := query["_pragma"]; !ok {
		for _, pragma := range defaultSQLitePragmas {
			query.Add("_pragma", pragma)
		}
	}

	encoded := query.Encode()
	if encoded == "" {
		return path
	}
	return path + "?" + encoded
}

// sqliteFilePath extracts the on-disk path of a sqlite DSN, or "" for
// in-memory databases.
func sqliteFilePath(dsn string) string {
	path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	path = strings.TrimSpace(path)
	if path == "" || path == ":memory:" || strings.HasPrefix(path, ":memory:") {
		return ""
	}
	return path
}

func ensureSQLiteDir(dsn string) error {
	path := sqliteFilePath(dsn)
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func dbNameFromURL(driver, raw string) string {
	trimmed := strings.TrimSpace(raw)
	if driver == "sqlite" {
		path := sqliteFilePath(normalizeSQLiteDSN(trimmed))
		if path == "" {
			return "memory"
		}
		return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	parsed, err := url.Parse(trimmed)
	if err == nil && parsed != nil && parsed.Scheme != "" {
		name := strings.TrimSpace(strings.TrimPrefix(parsed.Path, "/"))
		if name != "" {
			return name
		}
	}

	for _, token := range strings.Fields(trimmed) {
		if !strings.HasPrefix(token, "dbname=") {
			continue
		}
		name := strings.TrimSpace(strings.TrimPrefix(token, "dbname="))
		name = strings.Trim(name, `"'`)
		if name != "" {
			return name
		}
	}

	return ""
}
