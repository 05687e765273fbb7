package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

var migrationName = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// ValidateDir checks every .sql file in dir: the name carries a unique
// 14-digit version and the body has both goose markers. All problems are
// reported together.
func ValidateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var errs error
	versions := map[string]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".sql" {
			continue
		}
		match := migrationName.FindStringSubmatch(name)
		if match == nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: name must look like YYYYMMDDHHMMSS_name.sql", name))
			continue
		}
		if other, dup := versions[match[1]]; dup {
			errs = multierr.Append(errs, fmt.Errorf("%s: version %s already used by %s", name, match[1], other))
		}
		versions[match[1]] = name
		errs = multierr.Append(errs, checkMarkers(filepath.Join(dir, name)))
	}
	if errs == nil && len(versions) == 0 {
		return fmt.Errorf("no migrations in %s", dir)
	}
	return errs
}

func checkMarkers(path string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var errs error
	for _, marker := range []string{upMarker, downMarker} {
		if !strings.Contains(string(body), marker) {
			errs = multierr.Append(errs, fmt.Errorf("%s: missing %q", filepath.Base(path), marker))
		}
	}
	return errs
}
