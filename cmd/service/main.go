package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gitlab.com/dirk.krummacker/relations-service/internal/config"
	"gitlab.com/dirk.krummacker/relations-service/internal/crm"
	"gitlab.com/dirk.krummacker/relations-service/internal/docstore"
	"gitlab.com/dirk.krummacker/relations-service/internal/identity"
	"gitlab.com/dirk.krummacker/relations-service/internal/logging"
	"gitlab.com/dirk.krummacker/relations-service/internal/service"
)

// Usage example on the command line:
// > PORT=8080 DBUSER=dirk DBPWD=bullo92 AUTH_SECRET=changeme GIN_MODE=release GIN_LOGGING=OFF go run main.go
// > STORE_DRIVER=sqlite SQLITE_PATH=relations.db AUTH_SECRET=changeme go run main.go serve
// > STORE_DRIVER=sqlite SQLITE_PATH=relations.db go run main.go recount --user dirk
// > AUTH_SECRET=changeme go run main.go token --user dirk
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	serve := newServeCmd(v)
	root := &cobra.Command{
		Use:          "relations-service",
		Short:        "REST service for contacts and interactions",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	config.AddFlags(root, v)
	root.AddCommand(serve, newRecountCmd(v), newTokenCmd(v))
	return root
}

// setup resolves the configuration and builds the logger.
func setup(v *viper.Viper) (config.Config, zerolog.Logger, func() error, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return config.Config{}, zerolog.Nop(), nil, err
	}
	log, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return config.Config{}, zerolog.Nop(), nil, err
	}
	return cfg, log, closeLog, nil
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, closeLog, err := setup(v)
			if err != nil {
				return err
			}
			defer closeLog()
			if err := cfg.ValidateServer(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := docstore.Open(ctx, cfg.Store)
			if err != nil {
				return fmt.Errorf("could not open %s store: %w", cfg.Store.Driver, err)
			}
			defer store.Close()
			verifier, err := identity.NewVerifier(cfg.Auth.Secret, cfg.Auth.Issuer)
			if err != nil {
				return err
			}

			router := service.SetupHttpRouter(service.Options{
				Repository: crm.New(store, log),
				Store:      store,
				Verifier:   verifier,
				Logger:     log,
				GinLogging: cfg.GinLogging,
			})
			server := &http.Server{
				Addr:              ":" + strconv.Itoa(cfg.Port),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("shutdown failed")
				}
			}()

			log.Info().Int("port", cfg.Port).Str("store", cfg.Store.Driver).Msg("relations service listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			log.Info().Msg("relations service stopped")
			return nil
		},
	}
	cmd.Flags().Int("port", 0, "HTTP port (defaults to PORT or 8080).")
	config.BindFlag(v, config.KeyPort, cmd, "port")
	return cmd
}

func newRecountCmd(v *viper.Viper) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "recount [contact id...]",
		Short: "Repair the interaction counts of a user's contacts",
		Long: "Counts the interactions of every given contact, or of all contacts of the user,\n" +
			"and stores the result as the contact's interaction count.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, closeLog, err := setup(v)
			if err != nil {
				return err
			}
			defer closeLog()
			if err := cfg.ValidateStore(); err != nil {
				return err
			}
			owner := identity.Identity{UserID: user}
			if !owner.Valid() {
				return errors.New("--user is required")
			}

			ctx := cmd.Context()
			store, err := docstore.Open(ctx, cfg.Store)
			if err != nil {
				return fmt.Errorf("could not open %s store: %w", cfg.Store.Driver, err)
			}
			defer store.Close()
			repo := crm.New(store, log)

			ids := args
			if len(ids) == 0 {
				contacts, err := repo.GetContacts(ctx, owner)
				if err != nil {
					return err
				}
				for _, c := range contacts {
					ids = append(ids, c.Id)
				}
			}
			for _, id := range ids {
				n, err := repo.RecountInteractions(ctx, owner, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", id, n)
			}
			log.Info().Int("contacts", len(ids)).Str("user", owner.UserID).Msg("interaction counts repaired")
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User who owns the contacts.")
	return cmd
}

func newTokenCmd(v *viper.Viper) *cobra.Command {
	var user string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for a user, signed with AUTH_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			verifier, err := identity.NewVerifier(cfg.Auth.Secret, cfg.Auth.Issuer)
			if err != nil {
				return err
			}
			token, err := verifier.Issue(user, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User the token is issued for.")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Validity of the token.")
	return cmd
}
