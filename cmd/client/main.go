package main

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"gitlab.com/dirk.krummacker/relations-service/internal/config"
	"gitlab.com/dirk.krummacker/relations-service/internal/identity"
	"gitlab.com/dirk.krummacker/relations-service/internal/randomgen"
	api "gitlab.com/dirk.krummacker/relations-service/pkg/model"
)

// Usage example on the command line:
// > AUTH_SECRET=changeme go run main.go
// > AUTH_SECRET=changeme SERVICE_URL=http://localhost:9090 go run main.go --sizes=100,1000
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// client sends authenticated requests to the service and measures how long they take.
type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var sizes []int
	var seed int64
	cmd := &cobra.Command{
		Use:          "client",
		Short:        "Measure the average duration of REST calls against a running service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			verifier, err := identity.NewVerifier(cfg.Auth.Secret, cfg.Auth.Issuer)
			if err != nil {
				return err
			}
			token, err := verifier.Issue(cfg.Auth.Subject, 24*time.Hour)
			if err != nil {
				return err
			}
			c := &client{baseURL: cfg.ServiceURL, token: token, http: &http.Client{Timeout: 30 * time.Second}}
			return c.benchmark(cmd.OutOrStdout(), sizes, randomgen.New(seed))
		},
	}
	config.AddFlags(cmd, v)
	cmd.Flags().String("url", "", "Base URL of the service (defaults to SERVICE_URL).")
	config.BindFlag(v, config.KeyServiceURL, cmd, "url")
	cmd.Flags().IntSliceVar(&sizes, "sizes", []int{1000, 5000, 10000}, "Numbers of contacts per round.")
	cmd.Flags().Int64Var(&seed, "seed", 1, "Seed of the random data.")
	return cmd
}

// benchmark prints the average duration in microseconds of each kind of call for every
// round size.
func (c *client) benchmark(out io.Writer, sizes []int, gen *randomgen.Generator) error {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  Elements      POST       PUT       GET  INTERACT    DELETE ")
	fmt.Fprintln(out, "-------------------------------------------------------------")
	for _, loops := range sizes {
		if loops < 1 {
			continue
		}
		fmt.Fprintf(out, "%10d", loops)

		// POST requests
		ids := make([]string, 0, loops)
		var duration time.Duration
		for i := 0; i < loops; i++ {
			var contact api.Contact
			d, err := c.send(http.MethodPost, "/contacts", gen.Contact(), &contact)
			if err != nil {
				return err
			}
			ids = append(ids, contact.Id)
			duration += d
		}
		fmt.Fprintf(out, "%10d", average(duration, loops))

		// PUT requests
		if err := c.callInLoop(out, ids, func(id string) (time.Duration, error) {
			return c.send(http.MethodPut, "/contacts/"+id, gen.Contact(), nil)
		}); err != nil {
			return err
		}

		// GET requests
		if err := c.callInLoop(out, ids, func(id string) (time.Duration, error) {
			return c.send(http.MethodGet, "/contacts/"+id, nil, nil)
		}); err != nil {
			return err
		}

		// POST requests for interactions, which also update the contacts
		now := time.Now()
		if err := c.callInLoop(out, ids, func(id string) (time.Duration, error) {
			return c.send(http.MethodPost, "/interactions", gen.Interaction(id, now), nil)
		}); err != nil {
			return err
		}

		// DELETE requests
		if err := c.callInLoop(out, ids, func(id string) (time.Duration, error) {
			return c.send(http.MethodDelete, "/contacts/"+id+"?confirm=true", nil, nil)
		}); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}
	return nil
}

func (c *client) callInLoop(out io.Writer, ids []string, f func(id string) (time.Duration, error)) error {
	shuffled := append([]string(nil), ids...)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	var duration time.Duration
	for _, id := range shuffled {
		d, err := f(id)
		if err != nil {
			return err
		}
		duration += d
	}
	fmt.Fprintf(out, "%10d", average(duration, len(ids)))
	return nil
}

func average(total time.Duration, n int) int64 {
	return total.Microseconds() / int64(n)
}

// send executes one request and decodes the response into result, if given. Only the round
// trip is measured.
func (c *client) send(method string, path string, body any, result any) (time.Duration, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("could not marshal JSON: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	before := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error making http request: %w", err)
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, fmt.Errorf("could not read response body: %w", err)
	}
	duration := time.Since(before)

	if res.StatusCode >= http.StatusBadRequest {
		return 0, fmt.Errorf("%s %s: %s: %s", method, path, res.Status, bytes.TrimSpace(resBody))
	}
	if result != nil {
		if err := json.Unmarshal(resBody, result); err != nil {
			return 0, fmt.Errorf("could not unmarshal JSON: %w", err)
		}
	}
	return duration, nil
}
