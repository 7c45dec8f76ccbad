// Command importcsv reconciles the stored domain associations with a CSV
// file, the same way the admin upload does.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"catdomains/internal/config"
	"catdomains/internal/database"
	"catdomains/internal/logger"
	"catdomains/internal/services"

	"github.com/rs/zerolog/log"
)

func main() {
	file := flag.String("file", "", "CSV file with domain_name;idnumber lines")
	dryRun := flag.Bool("dry-run", false, "only validate the file")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: importcsv -file domains.csv [-dry-run]")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Initialize(cfg.LogLevel, cfg.LogPretty)

	content, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("failed to read file")
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("failed to init DB")
	}

	ctx := context.Background()
	svc := services.NewImportService(db, cfg.Allowlist)

	if *dryRun {
		rows, err := svc.ValidateCSV(ctx, content)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid file")
		}
		fmt.Printf("%d valid lines\n", len(rows))
		return
	}

	report, err := svc.ImportCSV(ctx, content)
	if err != nil {
		log.Fatal().Err(err).Msg("import failed")
	}
	fmt.Printf("inserted=%d reactivated=%d unchanged=%d disabled=%d\n",
		report.Inserted, report.Reactivated, report.Unchanged, report.Disabled)
}
