package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"gitlab.com/dirk.krummacker/relations-service/internal/config"
	"gitlab.com/dirk.krummacker/relations-service/internal/docstore"
	"gitlab.com/dirk.krummacker/relations-service/internal/logging"
)

// Usage example on the command line:
// > DBHOST=localhost DBUSER=dirk DBPWD=bullo92 go run main.go
// > DBHOST=localhost DBUSER=dirk DBPWD=bullo92 go run main.go --file=schema.sql
// > STORE_DRIVER=sqlite SQLITE_PATH=relations.db go run main.go
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var file string
	cmd := &cobra.Command{
		Use:          "migration",
		Short:        "Create the tables of the document store",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			log, closeLog, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer closeLog()
			if err := cfg.ValidateStore(); err != nil {
				return err
			}

			var db *sqlx.DB
			switch cfg.Store.Driver {
			case docstore.DriverMySQL:
				sqlDB, err := docstore.OpenMySQL(cfg.Store)
				if err != nil {
					return err
				}
				db = sqlx.NewDb(sqlDB, "mysql")
			case docstore.DriverSQLite:
				sqlDB, err := docstore.OpenSQLite(cfg.Store.Path)
				if err != nil {
					return err
				}
				db = sqlx.NewDb(sqlDB, "sqlite3")
			default:
				return fmt.Errorf("the %s store has no schema", cfg.Store.Driver)
			}
			defer db.Close()

			var script io.Reader
			source := file
			if file == "" {
				schema, err := docstore.Schema(cfg.Store.Driver)
				if err != nil {
					return err
				}
				script = strings.NewReader(schema)
				source = "built-in " + cfg.Store.Driver + " schema"
			} else {
				readFile, err := os.Open(file) // nosemgrep
				if err != nil {
					return err
				}
				defer readFile.Close()
				script = readFile
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			if err := docstore.ApplySchema(ctx, db, script); err != nil {
				return err
			}
			log.Info().Str("source", source).Msg("schema applied")
			return nil
		},
	}
	config.AddFlags(cmd, v)
	cmd.Flags().StringVar(&file, "file", "", "The sql file to execute (defaults to the built-in schema).")
	return cmd
}
