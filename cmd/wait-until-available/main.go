package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"gitlab.com/dirk.krummacker/relations-service/internal/config"
	"gitlab.com/dirk.krummacker/relations-service/internal/logging"
)

// Usage example on the command line:
// > go run main.go
// > SERVICE_URL=http://relations:8080 go run main.go --interval=2s --timeout=1m
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var interval, timeout time.Duration
	cmd := &cobra.Command{
		Use:          "wait-until-available",
		Short:        "Wait until the health check of the service succeeds",
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

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			return waitUntilAvailable(ctx, log, cfg.ServiceURL+"/healthz", interval)
		},
	}
	config.AddFlags(cmd, v)
	cmd.Flags().String("url", "", "Base URL of the service (defaults to SERVICE_URL).")
	config.BindFlag(v, config.KeyServiceURL, cmd, "url")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "Time between two attempts.")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up after this time; 0 waits forever.")
	return cmd
}

// waitUntilAvailable polls url until it answers with status OK or ctx ends.
func waitUntilAvailable(ctx context.Context, log zerolog.Logger, url string, interval time.Duration) error {
	client := &http.Client{Timeout: interval}
	var totalWaitTime time.Duration
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		res, err := client.Do(req)
		if err == nil {
			res.Body.Close()
			if res.StatusCode == http.StatusOK {
				log.Info().Str("url", url).Dur("waited", totalWaitTime).Msg("service is available")
				return nil
			}
			log.Info().Str("url", url).Int("status", res.StatusCode).Msg("service not ready")
		} else {
			log.Info().Err(err).Str("url", url).Msg("service not reachable")
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("service at %s not available after %s: %w", url, totalWaitTime, ctx.Err())
		case <-time.After(interval):
		}
		totalWaitTime += interval
		log.Info().Msgf("Waiting %d seconds", int(totalWaitTime.Seconds()))
	}
}
