package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/fakturo/invoicestack/config"
	"github.com/fakturo/invoicestack/internal/database"
	"github.com/fakturo/invoicestack/internal/repository"
	"github.com/fakturo/invoicestack/runner"
)

func main() {
	app := &cli.App{
		Name:           "invoicestack",
		Usage:          "Pull invoices out of an IMAP mailbox into a local ledger",
		DefaultCommand: "run",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Process the unread backlog once and exit",
				Action: runOnce,
			},
			{
				Name:   "watch",
				Usage:  "Keep processing the mailbox on a schedule",
				Action: runWatch,
			},
			{
				Name:   "migrate",
				Usage:  "Run database migrations and exit",
				Action: runMigrate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("invoicestack failed: %v", err)
	}
}

func bootstrap() (*config.Config, *gorm.DB, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, nil, err
	}

	// Setup the database
	invoiceDB, err := database.InitInvoiceDatabase(&database.DatabaseConfig{
		DBPath: cfg.DatabaseConfig.DBPath,
		LogSQL: cfg.DatabaseConfig.LogSQL,
	})
	if err != nil {
		return nil, nil, err
	}

	// The schema is a single table, migrating on every start keeps first runs
	// working against an empty DB_PATH
	if err := repository.MigrateDB(invoiceDB); err != nil {
		return nil, nil, err
	}

	return cfg, invoiceDB, nil
}

func runOnce(c *cli.Context) error {
	cfg, invoiceDB, err := bootstrap()
	if err != nil {
		return err
	}

	r, err := runner.NewRunner(cfg, invoiceDB)
	if err != nil {
		return err
	}

	if cfg.AppConfig.WatchMode {
		return r.RunWatch()
	}

	summary, err := r.RunOnce(c.Context)
	if err != nil {
		return err
	}

	log.Printf("Run complete: %s", summary.String())
	return nil
}

func runWatch(c *cli.Context) error {
	cfg, invoiceDB, err := bootstrap()
	if err != nil {
		return err
	}

	r, err := runner.NewRunner(cfg, invoiceDB)
	if err != nil {
		return err
	}

	return r.RunWatch()
}

func runMigrate(c *cli.Context) error {
	if _, _, err := bootstrap(); err != nil {
		return err
	}

	log.Println("Database migration completed successfully")
	return nil
}
