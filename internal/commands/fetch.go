// Package commands implements the ratefetch command line.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/gaborage/go-ratefetch/config"
	"github.com/gaborage/go-ratefetch/http"
	"github.com/gaborage/go-ratefetch/logger"
	"github.com/gaborage/go-ratefetch/observability"
)

const meterName = "github.com/gaborage/go-ratefetch"

// FetchOptions holds options for the fetch command
type FetchOptions struct {
	ConfigFile  string
	Method      string
	Headers     []string
	Body        string
	Concurrency int
	ShowBody    bool
}

type fetchResult struct {
	url  string
	resp *http.Response
	err  error
}

// NewFetchCommand creates the fetch command
func NewFetchCommand() *cobra.Command {
	opts := &FetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch URL [URL...]",
		Short: "Fetch URLs, retrying throttled responses",
		Long: `Sends one logical request per URL. Responses with status 429, 500 or 503 are
retried with exponential backoff or after the server's Retry-After delay, as
configured in the fetch section of the configuration file.`,
		Example: `  # Fetch a single URL
  ratefetch fetch https://api.example.com/items

  # POST a JSON body with a custom header
  ratefetch fetch -X POST -H "Authorization: Bearer $TOKEN" -d '{"name":"a"}' https://api.example.com/items

  # Fetch several URLs, at most 4 at a time
  ratefetch fetch -j 4 https://api.example.com/a https://api.example.com/b`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd.Context(), opts, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", config.DefaultFile, "Configuration file path")
	cmd.Flags().StringVarP(&opts.Method, "method", "X", "GET", "HTTP method")
	cmd.Flags().StringArrayVarP(&opts.Headers, "header", "H", nil, `Request header as "Key: Value" (repeatable)`)
	cmd.Flags().StringVarP(&opts.Body, "data", "d", "", "Request body")
	cmd.Flags().IntVarP(&opts.Concurrency, "concurrency", "j", 1, "Maximum concurrent fetches")
	cmd.Flags().BoolVar(&opts.ShowBody, "body", false, "Print response bodies")

	return cmd
}

func runFetch(ctx context.Context, opts *FetchOptions, urls []string, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", opts.Concurrency)
	}
	headers, err := parseHeaders(opts.Headers)
	if err != nil {
		return err
	}

	cfg, err := config.LoadFile(opts.ConfigFile)
	if err != nil {
		return err
	}

	log := logger.NewWithWriter(errOut, cfg.Log.Level, cfg.Log.Pretty, nil)

	provider, err := observability.NewProvider(&cfg.Observability, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := observability.Shutdown(provider, observability.DefaultShutdownTimeout); err != nil {
			log.Warn().Err(err).Msg("Observability shutdown failed")
		}
	}()

	stats, err := http.NewMetricsStats(provider.MeterProvider().Meter(meterName),
		attribute.String("service.name", cfg.App.Name))
	if err != nil {
		return err
	}

	client, err := cfg.ClientBuilder(log).
		WithStatsRecorder(stats).
		WithTracerProvider(provider.TracerProvider()).
		Build()
	if err != nil {
		return err
	}

	var body []byte
	if opts.Body != "" {
		body = []byte(opts.Body)
	}

	results := make([]fetchResult, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, url := range urls {
		g.Go(func() error {
			resp, err := client.Fetch(gctx, &http.Request{
				Method:  strings.ToUpper(opts.Method),
				URL:     url,
				Headers: headers,
				Body:    body,
			})
			// Failures are reported per URL; the other fetches keep going.
			results[i] = fetchResult{url: url, resp: resp, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.err != nil {
			fmt.Fprintf(out, "%s\terror\t%v\n", r.url, r.err)
			errs = append(errs, fmt.Errorf("%s: %w", r.url, r.err))
			continue
		}
		fmt.Fprintf(out, "%s\t%d\tattempts=%d\telapsed=%s\n",
			r.url, r.resp.StatusCode, r.resp.Stats.Attempts, r.resp.Stats.ElapsedTime.Round(time.Millisecond))
		if opts.ShowBody {
			fmt.Fprintf(out, "%s\n", r.resp.Body)
		}
	}

	s := stats.Stats()
	fmt.Fprintf(out, "attempts=%d retries=%d retry_delay=%s\n",
		s.FetchAttemptCount, s.FetchRetryCount, s.TotalFetchRetryDelay.Round(time.Millisecond))

	return errors.Join(errs...)
}

// parseHeaders turns "Key: Value" pairs into a header map
func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		key, value, ok := strings.Cut(h, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q, expected \"Key: Value\"", h)
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers, nil
}
