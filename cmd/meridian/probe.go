package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/meridian"
	httpadapter "github.com/arloliu/meridian/adapter/http"
	"github.com/arloliu/meridian/contrib/logging/zaplog"
	"github.com/arloliu/meridian/contrib/metrics/prom"
	"github.com/arloliu/meridian/topology"
	"github.com/arloliu/meridian/types"
)

func newProbeCmd(v *viper.Viper) *cobra.Command {
	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Send requests through a router and report node health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProbe(cmd, v)
		},
	}

	probeFlags := pflag.NewFlagSet("", pflag.ContinueOnError)
	probeFlags.String("path", "/health", "the request path sent to each node")
	probeFlags.String("method", http.MethodGet, "the request method")
	probeFlags.IntP("requests", "n", 10, "the number of requests per round")
	probeFlags.IntP("concurrency", "c", 4, "the number of concurrent requests")
	probeFlags.Duration("timeout", 2*time.Second, "the per-attempt timeout")
	probeFlags.Duration("interval", 0, "repeat rounds at this interval until interrupted (0 runs once)")
	probeFlags.String("metrics-address", "", "serve /metrics, /health and /topology on this address")
	probeFlags.Bool("watch-config", false, "reload the topology when the config file changes")
	probeFlags.String("nats-url", "", "watch the topology from a NATS KV bucket at this server")
	probeFlags.String("nats-bucket", "meridian", "the NATS KV bucket holding the topology")
	probeFlags.String("nats-key", "meridian.topology", "the NATS KV key holding the topology")
	probeCmd.Flags().AddFlagSet(probeFlags)

	_ = v.BindPFlags(probeFlags)

	return probeCmd
}

func runProbe(cmd *cobra.Command, v *viper.Viper) error {
	s, err := loadSettings(v)
	if err != nil {
		return err
	}

	logger, err := getLogger(v.GetString("log-level"))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	collector, err := prom.New(prom.WithRegisterer(registry))
	if err != nil {
		return err
	}

	opts := []meridian.Option{
		meridian.WithLogger(zaplog.New(logger)),
		meridian.WithMetrics(collector),
	}

	source, closeSource, err := topologySource(ctx, v, logger)
	if err != nil {
		return err
	}
	defer closeSource()
	if source != nil {
		opts = append(opts, meridian.WithTopologySource(source))
	}

	router, err := s.NewRouter(opts...)
	if err != nil {
		return err
	}
	defer router.Close()

	if addr := v.GetString("metrics-address"); addr != "" {
		srv := &http.Server{
			Handler:      newWebHandler(registry, router),
			Addr:         addr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("failed to listen and serve web server", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	dispatcher := httpadapter.New(&http.Client{}, httpadapter.WithAttemptTimeout(v.GetDuration("timeout")))
	p := &prober{
		router:      router,
		dispatcher:  dispatcher,
		request:     &httpadapter.Request{Method: v.GetString("method"), Path: v.GetString("path")},
		requests:    v.GetInt("requests"),
		concurrency: v.GetInt("concurrency"),
	}

	interval := v.GetDuration("interval")
	for {
		summary := p.round(ctx)
		summary.write(cmd.OutOrStdout(), router)

		if interval <= 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// topologySource returns the configured discovery feed, or nil when the
// topology is static.
func topologySource(ctx context.Context, v *viper.Viper, logger *zap.Logger) (meridian.TopologySource, func(), error) {
	natsURL := v.GetString("nats-url")
	watchConfig := v.GetBool("watch-config")
	noop := func() {}

	switch {
	case natsURL != "" && watchConfig:
		return nil, noop, errors.New("--nats-url and --watch-config are mutually exclusive")
	case natsURL != "":
		nc, err := nats.Connect(natsURL)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to connect to nats: %w", err)
		}
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, noop, err
		}
		kv, err := js.KeyValue(ctx, v.GetString("nats-bucket"))
		if err != nil {
			nc.Close()
			return nil, noop, fmt.Errorf("failed to open nats bucket: %w", err)
		}
		src, err := topology.NewNATS(kv,
			topology.WithKey(v.GetString("nats-key")),
			topology.WithLogger(zaplog.New(logger).Named("topology")),
		)
		if err != nil {
			nc.Close()
			return nil, noop, err
		}

		return src, func() {
			_ = src.Close()
			nc.Close()
		}, nil
	case watchConfig:
		cfgFile := v.GetString("config")
		if cfgFile == "" {
			return nil, noop, errors.New("--watch-config requires --config")
		}
		src, err := topology.NewFile(cfgFile, topology.WithLogger(zaplog.New(logger).Named("topology")))
		if err != nil {
			return nil, noop, err
		}

		return src, func() { _ = src.Close() }, nil
	default:
		return nil, noop, nil
	}
}

type prober struct {
	router      *meridian.Router
	dispatcher  *httpadapter.Dispatcher
	request     *httpadapter.Request
	requests    int
	concurrency int
}

type probeSummary struct {
	requests  int
	succeeded int64
	failures  map[string]int
}

func (p *prober) round(ctx context.Context) *probeSummary {
	summary := &probeSummary{failures: make(map[string]int)}

	var (
		succeeded atomic.Int64
		mu        sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.concurrency, 1))

	for range p.requests {
		if gctx.Err() != nil {
			break
		}
		summary.requests++

		g.Go(func() error {
			_, err := meridian.Send[*httpadapter.Request, *httpadapter.Response](gctx, p.router, p.dispatcher, p.request)
			if err == nil {
				succeeded.Add(1)
				return nil
			}

			label := types.KindOf(err).String()
			if types.IsContextError(err) {
				label = "cancelled"
			}
			mu.Lock()
			summary.failures[label]++
			mu.Unlock()

			return nil
		})
	}
	_ = g.Wait()

	summary.succeeded = succeeded.Load()

	return summary
}

func (s *probeSummary) write(out io.Writer, router *meridian.Router) {
	fmt.Fprintf(out, "requests: %d  succeeded: %d  failed: %d\n",
		s.requests, s.succeeded, int64(s.requests)-s.succeeded)

	kinds := make([]string, 0, len(s.failures))
	for kind := range s.failures {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(out, "  %s: %d\n", kind, s.failures[kind])
	}

	snap := router.Topology()
	health := router.HealthSnapshot()
	fmt.Fprintf(out, "active: %s\n", snap.Active())

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATACENTER\tNODE\tAVAILABLE\tFAILURES\tLAST FAILURE")
	for _, dc := range snap.Datacenters() {
		for _, node := range dc.Nodes {
			rec, ok := health[node.Address]
			if !ok {
				rec = types.HealthRecord{Available: true}
			}

			last := "-"
			if !rec.LastFailureAt.IsZero() {
				last = rec.LastFailureAt.Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%s\t%s\t%t\t%d\t%s\n", dc.Name, node.Address, rec.Available, rec.ConsecutiveFailures, last)
		}
	}
	_ = tw.Flush()
}
