// Command migrate applies the BigQuery schema migrations under
// migrations/bigquery. Applied versions are tracked in a
// schema_migrations table so re-runs only apply what is new.
package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/moneta-app/moneta/internal/logger"
)

var migrationFilePattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

type migration struct {
	Version  int
	Name     string
	SQL      string
	Checksum string
}

func main() {
	var (
		projectID = flag.String("project", os.Getenv("BQ_PROJECT"), "GCP project ID (required)")
		datasetID = flag.String("dataset", envOr("BQ_DATASET", "finance"), "BigQuery dataset ID")
		dir       = flag.String("migrations", "migrations/bigquery", "migrations directory")
	)
	flag.Parse()

	log := logger.New("migrate")
	if *projectID == "" {
		log.Fatal().Msg("-project is required")
	}

	ctx := context.Background()
	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create BigQuery client")
	}
	defer client.Close()

	migrations, err := loadMigrations(*dir, *projectID, *datasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load migrations")
	}
	log.Info().Int("count", len(migrations)).Str("dataset", *datasetID).Msg("migrations loaded")

	if err := ensureVersionTable(ctx, client, *projectID, *datasetID); err != nil {
		log.Fatal().Err(err).Msg("failed to prepare schema_migrations table")
	}

	applied, err := appliedVersions(ctx, client, *projectID, *datasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read applied migrations")
	}

	ran := 0
	for _, m := range migrations {
		if applied[m.Version] {
			log.Debug().Int("version", m.Version).Str("name", m.Name).Msg("already applied")
			continue
		}
		if err := runDDL(ctx, client, m.SQL, nil); err != nil {
			log.Fatal().Err(err).Int("version", m.Version).Str("name", m.Name).Msg("migration failed")
		}
		if err := recordVersion(ctx, client, *projectID, *datasetID, m); err != nil {
			log.Fatal().Err(err).Int("version", m.Version).Msg("failed to record migration")
		}
		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("applied")
		ran++
	}

	if ran == 0 {
		log.Info().Msg("schema is up to date")
	}
}

// parseMigrationFilename splits "0003_add_index.sql" into version and name.
func parseMigrationFilename(filename string) (version int, name string, ok bool) {
	m := migrationFilePattern.FindStringSubmatch(filename)
	if m == nil {
		return 0, "", false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return v, m[2], true
}

// loadMigrations reads every numbered SQL file in dir, sorted by version.
// {{PROJECT_ID}} and {{DATASET_ID}} placeholders are substituted; the
// checksum is taken over the original content so it is stable across
// environments.
func loadMigrations(dir, projectID, datasetID string) ([]migration, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []migration
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		version, name, ok := parseMigrationFilename(f.Name())
		if !ok {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, f.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", datasetID)

		migrations = append(migrations, migration{
			Version:  version,
			Name:     name,
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func ensureVersionTable(ctx context.Context, client *bigquery.Client, projectID, datasetID string) error {
	sql := fmt.Sprintf("CREATE TABLE IF NOT EXISTS `%s.%s.schema_migrations` ("+
		"version INT64 NOT NULL, name STRING NOT NULL, applied_ts TIMESTAMP NOT NULL, checksum STRING)",
		projectID, datasetID)
	return runDDL(ctx, client, sql, nil)
}

func appliedVersions(ctx context.Context, client *bigquery.Client, projectID, datasetID string) (map[int]bool, error) {
	sql := fmt.Sprintf("SELECT version FROM `%s.%s.schema_migrations`", projectID, datasetID)

	it, err := client.Query(sql).Read(ctx)
	if err != nil {
		// First run against a fresh dataset.
		if strings.Contains(err.Error(), "Not found") {
			return map[int]bool{}, nil
		}
		return nil, fmt.Errorf("reading applied versions: %w", err)
	}

	applied := make(map[int]bool)
	for {
		var row struct {
			Version int64
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating applied versions: %w", err)
		}
		applied[int(row.Version)] = true
	}
	return applied, nil
}

func recordVersion(ctx context.Context, client *bigquery.Client, projectID, datasetID string, m migration) error {
	sql := fmt.Sprintf("INSERT INTO `%s.%s.schema_migrations` (version, name, applied_ts, checksum) "+
		"VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum)", projectID, datasetID)
	return runDDL(ctx, client, sql, []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum},
	})
}

func runDDL(ctx context.Context, client *bigquery.Client, sql string, params []bigquery.QueryParameter) error {
	q := client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
