package strategy

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// MigrationFunc migrates a document from one schema version to the next.
type MigrationFunc func(*Document) error

// Migration represents a single schema migration.
type Migration struct {
	FromVersion string
	ToVersion   string
	Name        string
	Migrate     MigrationFunc
}

var registeredMigrations []Migration

// migrations maps source version to migration function, built from
// registeredMigrations; Migrate ranges over it.
var migrations = map[string]MigrationFunc{}

func init() {
	registerMigrations()
}

// registerMigrations sets up all known migrations, oldest first. Adding a
// new one means appending a Migration here, implementing its function, and
// bumping SchemaVersion.
func registerMigrations() {
	registeredMigrations = []Migration{
		{
			FromVersion: "0.9",
			ToVersion:   "1.0",
			Name:        "Add document metadata wrapper",
			Migrate:     migrateFrom09To10,
		},
	}

	for _, m := range registeredMigrations {
		if _, err := semver.NewVersion(m.FromVersion); err != nil {
			panic(fmt.Sprintf("invalid FromVersion %q in migration %q: %v", m.FromVersion, m.Name, err))
		}
		if _, err := semver.NewVersion(m.ToVersion); err != nil {
			panic(fmt.Sprintf("invalid ToVersion %q in migration %q: %v", m.ToVersion, m.Name, err))
		}
	}

	if len(registeredMigrations) > 1 {
		for i := 1; i < len(registeredMigrations); i++ {
			prevTo := registeredMigrations[i-1].ToVersion
			currFrom := registeredMigrations[i].FromVersion
			if prevTo != currFrom {
				panic(fmt.Sprintf("migration gap detected: %q ends at %s but %q starts at %s",
					registeredMigrations[i-1].Name, prevTo, registeredMigrations[i].Name, currFrom))
			}
		}
	}

	for _, m := range registeredMigrations {
		migrations[m.FromVersion] = m.Migrate
	}
}

// migrateFrom09To10 backfills the document metadata wrapper and strategy
// param floors introduced in 1.0.
func migrateFrom09To10(d *Document) error {
	if d.Metadata.Source == "" {
		d.Metadata.Source = "migrated"
	}

	if d.Strategy.Params.MaxNotionalUsd == nil || *d.Strategy.Params.MaxNotionalUsd <= 0 {
		d.Strategy.Params.MaxNotionalUsd = f64(10000)
	}
	if d.Strategy.Params.BaseFillProb == nil {
		d.Strategy.Params.BaseFillProb = f64(0.9)
	}

	return nil
}

// GetMigrationPath returns the migrations needed to upgrade from one
// version to another, in application order.
func GetMigrationPath(fromVersion, toVersion string) ([]Migration, error) {
	from, err := parseVersion(fromVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid from version: %s", fromVersion)
	}

	to, err := parseVersion(toVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid to version: %s", toVersion)
	}

	if from.GreaterThan(to) || from.Equal(to) {
		return nil, nil
	}

	var path []Migration
	for _, m := range registeredMigrations {
		migFrom := semver.MustParse(m.FromVersion)
		migTo := semver.MustParse(m.ToVersion)

		startsAtOrAfterSource := migFrom.GreaterThan(from) || migFrom.Equal(from)
		endsAtOrBeforeTarget := migTo.LessThan(to) || migTo.Equal(to)
		if startsAtOrAfterSource && endsAtOrBeforeTarget {
			path = append(path, m)
		}
	}

	sort.Slice(path, func(i, j int) bool {
		vi := semver.MustParse(path[i].FromVersion)
		vj := semver.MustParse(path[j].FromVersion)
		return vi.LessThan(vj)
	})

	return path, nil
}

func parseVersion(v string) (*semver.Version, error) {
	parsed, err := semver.NewVersion(v)
	if err != nil {
		return semver.NewVersion(v + ".0")
	}
	return parsed, nil
}

// Migrate upgrades a document to the current schema version in place.
func Migrate(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.Metadata.SchemaVersion == SchemaVersion {
		return nil
	}

	current, err := parseVersion(d.Metadata.SchemaVersion)
	if err != nil {
		return fmt.Errorf("invalid schema version: %s", d.Metadata.SchemaVersion)
	}

	target, err := semver.NewVersion(SchemaVersion)
	if err != nil {
		return fmt.Errorf("invalid target schema version: %s", SchemaVersion)
	}

	if current.GreaterThan(target) {
		return fmt.Errorf("document schema version %s is newer than supported version %s", d.Metadata.SchemaVersion, SchemaVersion)
	}

	for version, migrate := range migrations {
		migrationVersion := semver.MustParse(version)
		if !current.GreaterThan(migrationVersion) {
			if err := migrate(d); err != nil {
				return fmt.Errorf("migration from %s failed: %w", version, err)
			}
		}
	}

	d.Metadata.SchemaVersion = SchemaVersion

	return nil
}

// CheckCompatibility checks whether a document can be migrated to the
// current schema version.
func CheckCompatibility(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.Metadata.SchemaVersion == "" {
		return fmt.Errorf("missing schema version")
	}

	current, err := parseVersion(d.Metadata.SchemaVersion)
	if err != nil {
		return fmt.Errorf("invalid schema version: %s", d.Metadata.SchemaVersion)
	}

	target, err := semver.NewVersion(SchemaVersion)
	if err != nil {
		return fmt.Errorf("invalid target schema version: %s", SchemaVersion)
	}

	if current.GreaterThan(target) {
		return fmt.Errorf("document requires schema version %s, but only %s is supported", d.Metadata.SchemaVersion, SchemaVersion)
	}

	if current.LessThan(target) && current.Major() != target.Major() {
		return fmt.Errorf("no migration path from version %s to %s", d.Metadata.SchemaVersion, SchemaVersion)
	}

	return nil
}

// GetSchemaVersion returns the current document schema version.
func GetSchemaVersion() string {
	return SchemaVersion
}

// CompareVersions compares two version strings.
// Returns -1 if a < b, 0 if a == b, 1 if a > b.
func CompareVersions(a, b string) (int, error) {
	va, err := parseVersion(a)
	if err != nil {
		return 0, fmt.Errorf("invalid version: %s", a)
	}
	vb, err := parseVersion(b)
	if err != nil {
		return 0, fmt.Errorf("invalid version: %s", b)
	}
	return va.Compare(vb), nil
}

// IsVersionSupported checks if a schema version is supported, matching on
// major.minor so patch releases of a supported line are accepted.
func IsVersionSupported(version string) bool {
	for _, v := range SupportedSchemaVersions {
		if v == version {
			return true
		}
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}

	for _, supported := range SupportedSchemaVersions {
		sv, err := semver.NewVersion(supported)
		if err != nil {
			continue
		}
		if v.Major() == sv.Major() && v.Minor() == sv.Minor() {
			return true
		}
	}

	return false
}

// VersionInfo reports a document's schema-version compatibility.
type VersionInfo struct {
	SchemaVersion     string `json:"schema_version"`
	IsCompatible      bool   `json:"is_compatible"`
	RequiresMigration bool   `json:"requires_migration"`
	MigrationPath     string `json:"migration_path,omitempty"`
}

// GetVersionInfo returns version information for a document.
func GetVersionInfo(d *Document) (*VersionInfo, error) {
	if d == nil {
		return nil, fmt.Errorf("document cannot be nil")
	}

	info := &VersionInfo{
		SchemaVersion: d.Metadata.SchemaVersion,
	}

	info.IsCompatible = CheckCompatibility(d) == nil

	if d.Metadata.SchemaVersion != SchemaVersion {
		cmp, err := CompareVersions(d.Metadata.SchemaVersion, SchemaVersion)
		if err == nil && cmp < 0 {
			info.RequiresMigration = true
			info.MigrationPath = fmt.Sprintf("%s -> %s", d.Metadata.SchemaVersion, SchemaVersion)
		}
	}

	return info, nil
}
