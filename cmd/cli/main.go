package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/statement-import/internal/commit"
	"github.com/dvloznov/statement-import/internal/config"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/gcsuploader"
	"github.com/dvloznov/statement-import/internal/infra/ledgerdb"
	"github.com/dvloznov/statement-import/internal/ledger"
	"github.com/dvloznov/statement-import/internal/logger"
	"github.com/dvloznov/statement-import/internal/pipeline"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultOwner = "local"

func main() {
	cfg, warnings := config.Load()
	log := logger.NewWithLevel(cfg.LogLevel)
	for _, w := range warnings {
		log.Warn().Msg(w)
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "import":
		runImport(cfg, log)
	case "import-gcs":
		runImportGCS(cfg, log)
	case "accounts":
		runAccounts(cfg, log)
	case "account-add":
		runAccountAdd(cfg, log)
	case "upload":
		runUpload(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Statement Import CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  import       Import a local statement file into the ledger")
	fmt.Println("  import-gcs   Import a statement stored in GCS")
	fmt.Println("  accounts     List the owner's accounts")
	fmt.Println("  account-add  Create an account")
	fmt.Println("  upload       Upload a statement file to GCS")
	fmt.Println("  help         Show this help message")
	fmt.Println("\nProviders: wechat, alipay, cmb, boc, manual")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) ledgerdb.Store {
	store, err := ledgerdb.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger")
	}
	return store
}

func newImporter(ctx context.Context, cfg *config.Config, store ledger.Store, log zerolog.Logger) *pipeline.Importer {
	im, err := pipeline.NewFromConfig(ctx, cfg, store, commit.NewRegistry(cfg.UndoRetention))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build importer")
	}
	return im
}

func runImport(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to the statement (.csv, .xlsx or .pdf)")
	providerName := fs.String("provider", "", "Statement provider")
	owner := fs.String("owner", defaultOwner, "Owner ID")
	password := fs.String("password", "", "Password for encrypted statements")
	accountID := fs.String("account", "", "Import into this account instead of resolving one")
	dryRun := fs.Bool("dry-run", false, "Parse and deduplicate without writing")
	noPrompt := fs.Bool("no-undo-prompt", false, "Do not offer undo after committing")
	fs.Parse(os.Args[2:])

	if *filePath == "" || *providerName == "" {
		log.Fatal().Msg("Usage: cli import -file PATH -provider NAME")
	}
	provider, err := domain.ParseProvider(*providerName)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid provider")
	}
	kind, err := domain.KindFromFilename(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid file")
	}
	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read file")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store := openStore(ctx, cfg, log)
	defer store.Close()

	report, err := newImporter(ctx, cfg, store, log).Import(ctx, pipeline.Request{
		OwnerID:  *owner,
		Provider: provider,
		Document: domain.RawDocument{Filename: filepath.Base(*filePath), Kind: kind, Data: data, Password: *password},
		Options:  pipeline.Options{DryRun: *dryRun, AccountID: *accountID},
	})
	if report != nil {
		printReport(report)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed [%s]: %v\n", domain.Code(err), err)
		if report != nil && report.Undo != nil {
			offerUndo(ctx, report, cfg.UndoRetention, log)
		}
		os.Exit(1)
	}

	if report.Undo != nil && report.Committed > 0 && !*noPrompt {
		offerUndo(ctx, report, report.UndoWindow, log)
	}
}

func runImportGCS(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("import-gcs", flag.ExitOnError)
	gcsURI := fs.String("gcs-uri", "", "GCS URI of the statement")
	providerName := fs.String("provider", "", "Statement provider")
	owner := fs.String("owner", defaultOwner, "Owner ID")
	password := fs.String("password", "", "Password for encrypted statements")
	dryRun := fs.Bool("dry-run", false, "Parse and deduplicate without writing")
	fs.Parse(os.Args[2:])

	if *gcsURI == "" || *providerName == "" {
		log.Fatal().Msg("Usage: cli import-gcs -gcs-uri URI -provider NAME")
	}
	provider, err := domain.ParseProvider(*providerName)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid provider")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	storage, err := gcsuploader.NewService(ctx, cfg.GCSBucket)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer storage.Close()

	store := openStore(ctx, cfg, log)
	defer store.Close()

	log.Info().Str("gcs_uri", *gcsURI).Msg("Starting import")

	report, err := newImporter(ctx, cfg, store, log).ImportFromGCS(ctx, storage, pipeline.GCSRequest{
		OwnerID:  *owner,
		Provider: provider,
		GCSURI:   *gcsURI,
		Password: *password,
		Options:  pipeline.Options{DryRun: *dryRun},
	})
	if report != nil {
		printReport(report)
	}
	if err != nil {
		log.Fatal().Err(err).Str("code", domain.Code(err)).Msg("Import failed")
	}
}

func runAccounts(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("accounts", flag.ExitOnError)
	owner := fs.String("owner", defaultOwner, "Owner ID")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)
	store := openStore(ctx, cfg, log)
	defer store.Close()

	accounts, err := store.FindAccountsByOwner(ctx, *owner)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list accounts")
	}

	fmt.Printf("\n=== Accounts (%d) ===\n", len(accounts))
	for _, a := range accounts {
		fmt.Printf("%s  %-10s %-20s %12s\n", a.AccountID, a.Type, a.Name, a.Balance.StringFixed(2))
	}
	fmt.Println()
}

func runAccountAdd(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("account-add", flag.ExitOnError)
	owner := fs.String("owner", defaultOwner, "Owner ID")
	name := fs.String("name", "", "Account name")
	accType := fs.String("type", ledger.AccountCash, "Account type: wechat, alipay, bank, cash or credit")
	balance := fs.String("balance", "0", "Opening balance")
	fs.Parse(os.Args[2:])

	if *name == "" {
		log.Fatal().Msg("Usage: cli account-add -name NAME [-type TYPE] [-balance N]")
	}
	opening, err := decimal.NewFromString(*balance)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid balance")
	}

	ctx := logger.WithContext(context.Background(), log)
	store := openStore(ctx, cfg, log)
	defer store.Close()

	id, err := store.CreateAccount(ctx, &ledger.Account{
		OwnerID: *owner,
		Name:    *name,
		Type:    strings.ToLower(*accType),
		Balance: opening,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create account")
	}
	fmt.Printf("Created account %s\n", id)
}

func runUpload(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", cfg.GCSBucket, "GCS bucket name")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local statement file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}

	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := logger.WithContext(context.Background(), log)

	storage, err := gcsuploader.NewService(ctx, *bucketName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer storage.Close()

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	uri, err := storage.UploadFile(ctx, *bucketName, *objectName, *filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, uri)
}

func printReport(r *pipeline.Report) {
	fmt.Println("\n=== Import Report ===")
	fmt.Printf("Import:       %s\n", r.ImportID)
	fmt.Printf("File:         %s (%s)\n", r.File, r.Provider)
	fmt.Printf("Account:      %s\n", r.AccountID)
	fmt.Printf("State:        %s\n", r.State)
	fmt.Printf("Parsed:       %d\n", r.Parsed)
	fmt.Printf("Skipped:      %d\n", r.Skipped)
	fmt.Printf("Deduplicated: %d\n", r.Deduplicated)
	if r.DryRun {
		fmt.Printf("Would commit: %d\n", r.Committed)
	} else {
		fmt.Printf("Committed:    %d\n", r.Committed)
		if r.Failed > 0 {
			fmt.Printf("Failed:       %d\n", r.Failed)
		}
		fmt.Printf("Delta:        %s\n", r.Delta.StringFixed(2))
	}
	fmt.Println()
}

// offerUndo asks on stdin whether to undo, waiting at most window.
func offerUndo(ctx context.Context, r *pipeline.Report, window time.Duration, log zerolog.Logger) {
	fmt.Printf("Undo this import? [y/N] (%s) ", window.Round(time.Second))

	answer := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		answer <- strings.ToLower(strings.TrimSpace(line))
	}()

	select {
	case a := <-answer:
		if a != "y" && a != "yes" {
			return
		}
	case <-time.After(window):
		fmt.Println("\nUndo window closed.")
		return
	}

	if err := r.Undo(ctx); err != nil {
		log.Fatal().Err(err).Msg("Undo failed")
	}
	fmt.Println("Import undone.")
}
