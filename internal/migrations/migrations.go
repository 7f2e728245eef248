// Package migrations holds the numbered schema files for each ledger driver
// and the logic shared by the migrate command and the SQLite store.
package migrations

import (
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

//go:embed sqlite/*.sql bigquery/*.sql
var Files embed.FS

// Directories inside Files.
const (
	DirSQLite   = "sqlite"
	DirBigQuery = "bigquery"
)

// Pattern matches migration files: 0001_name.sql
var Pattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// Load reads every migration in dir, sorted by version. Placeholders such as
// {{DATASET_ID}} are replaced in the SQL; the checksum covers the file as
// written so that it does not depend on the target.
func Load(fsys fs.FS, dir string, replacements map[string]string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var out []Migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := Pattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		version, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		content, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", e.Name(), err)
		}

		sql := string(content)
		for k, v := range replacements {
			sql = strings.ReplaceAll(sql, "{{"+k+"}}", v)
		}

		out = append(out, Migration{
			Version:  version,
			Name:     m[2],
			Filename: e.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Pending returns the migrations whose version is not in applied. A changed
// checksum for an applied version is an error.
func Pending(all []Migration, applied map[int]string) ([]Migration, error) {
	var out []Migration
	for _, m := range all {
		sum, ok := applied[m.Version]
		if !ok {
			out = append(out, m)
			continue
		}
		if sum != "" && sum != m.Checksum {
			return nil, fmt.Errorf("migration %04d_%s was modified after being applied", m.Version, m.Name)
		}
	}
	return out, nil
}
