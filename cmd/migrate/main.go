package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-import/internal/config"
	"github.com/dvloznov/statement-import/internal/infra/sqlite"
	"github.com/dvloznov/statement-import/internal/logger"
	"github.com/dvloznov/statement-import/internal/migrations"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

func main() {
	cfg, warnings := config.Load()
	log := logger.NewWithLevel(cfg.LogLevel)
	for _, w := range warnings {
		log.Warn().Msg(w)
	}

	driver := flag.String("driver", cfg.LedgerDriver, "Ledger driver: sqlite or bigquery")
	sqlitePath := flag.String("sqlite", cfg.SQLitePath, "Path to the SQLite ledger file")
	projectID := flag.String("project", cfg.BigQueryProject, "GCP project ID (bigquery driver)")
	datasetID := flag.String("dataset", cfg.BigQueryDataset, "BigQuery dataset ID")
	appliedBy := flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir := flag.String("migrations", "", "Directory of BigQuery migrations (default: embedded)")
	flag.Parse()

	ctx := logger.WithContext(context.Background(), log)

	switch strings.ToLower(*driver) {
	case "sqlite":
		store, err := sqlite.Open(ctx, *sqlitePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *sqlitePath).Msg("Failed to migrate SQLite ledger")
		}
		store.Close()
		log.Info().Str("path", *sqlitePath).Msg("SQLite ledger is up to date")

	case "bigquery":
		if *projectID == "" {
			log.Fatal().Msg("Error: -project flag is required. Please specify your GCP project ID.")
		}
		fsys, dir := fs.FS(migrations.Files), migrations.DirBigQuery
		if *migrationsDir != "" {
			fsys, dir = os.DirFS(*migrationsDir), "."
		}
		r := &bigQueryRunner{projectID: *projectID, datasetID: *datasetID, appliedBy: *appliedBy, log: log}
		if err := r.run(ctx, fsys, dir); err != nil {
			log.Fatal().Err(err).Msg("Migration failed")
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown driver: %s\n", *driver)
		os.Exit(2)
	}
}

type bigQueryRunner struct {
	projectID string
	datasetID string
	appliedBy string
	log       zerolog.Logger
}

func (r *bigQueryRunner) run(ctx context.Context, fsys fs.FS, dir string) error {
	client, err := bigquery.NewClient(ctx, r.projectID)
	if err != nil {
		return fmt.Errorf("creating BigQuery client: %w", err)
	}
	defer client.Close()

	r.log.Info().Str("project", r.projectID).Str("dataset", r.datasetID).Msg("Connected to BigQuery")

	if err := r.ensureSchemaMigrationsTable(ctx, client); err != nil {
		return fmt.Errorf("ensuring schema_migrations table: %w", err)
	}

	all, err := migrations.Load(fsys, dir, map[string]string{
		"PROJECT_ID": r.projectID,
		"DATASET_ID": r.datasetID,
	})
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	r.log.Info().Int("count", len(all)).Msg("Found migration files")

	applied, err := r.getAppliedMigrations(ctx, client)
	if err != nil {
		return fmt.Errorf("getting applied migrations: %w", err)
	}
	r.log.Info().Int("count", len(applied)).Msg("Found already applied migrations")

	checksums := make(map[int]string, len(applied))
	for _, am := range applied {
		checksums[am.Version] = am.Checksum
	}

	pending, err := migrations.Pending(all, checksums)
	if err != nil {
		return err
	}

	for _, m := range pending {
		r.log.Info().Msgf("  [RUN]  %04d_%s", m.Version, m.Name)

		if err := r.execute(ctx, client, m.SQL, nil); err != nil {
			return fmt.Errorf("executing migration %04d_%s: %w", m.Version, m.Name, err)
		}
		if err := r.recordMigration(ctx, client, m); err != nil {
			return fmt.Errorf("recording migration %04d_%s: %w", m.Version, m.Name, err)
		}

		r.log.Info().Msgf("  [OK]   %04d_%s", m.Version, m.Name)
	}

	if len(pending) == 0 {
		r.log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		r.log.Info().Int("count", len(pending)).Msg("Successfully applied migrations")
	}
	return nil
}

func (r *bigQueryRunner) table() string {
	return fmt.Sprintf("`%s.%s.schema_migrations`", r.projectID, r.datasetID)
}

// ensureSchemaMigrationsTable creates the schema_migrations table if it doesn't exist
func (r *bigQueryRunner) ensureSchemaMigrationsTable(ctx context.Context, client *bigquery.Client) error {
	return r.execute(ctx, client, `
		CREATE TABLE IF NOT EXISTS `+r.table()+` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, nil)
}

// getAppliedMigrations retrieves the list of already applied migrations
func (r *bigQueryRunner) getAppliedMigrations(ctx context.Context, client *bigquery.Client) ([]AppliedMigration, error) {
	query := client.Query(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM ` + r.table() + `
		ORDER BY version ASC
	`)
	it, err := query.Read(ctx)
	if err != nil {
		// If table doesn't exist yet, return empty list
		if strings.Contains(err.Error(), "Not found") {
			return []AppliedMigration{}, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}

	return applied, nil
}

// recordMigration records a successfully applied migration in schema_migrations
func (r *bigQueryRunner) recordMigration(ctx context.Context, client *bigquery.Client, m migrations.Migration) error {
	return r.execute(ctx, client, `
		INSERT INTO `+r.table()+`
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: r.appliedBy},
	})
}

func (r *bigQueryRunner) execute(ctx context.Context, client *bigquery.Client, sql string, params []bigquery.QueryParameter) error {
	query := client.Query(sql)
	query.Parameters = params

	job, err := query.Run(ctx)
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
