package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/quorumlog/proposer/internal/config"
	"github.com/quorumlog/proposer/internal/driver"
	"github.com/quorumlog/proposer/internal/paxos"
	"github.com/quorumlog/proposer/internal/transport"
)

func newServeCmd() *cobra.Command {
	v := viper.New()
	config.BindDefaults(v)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the proposer daemon against a real TCP acceptor cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(v)
		},
	}

	flags := cmd.Flags()
	flags.Int("proposer-id", 0, "this proposer's id, in [0, max-proposers)")
	flags.Int("max-proposers", 3, "number of proposers in the cluster")
	flags.Int("n-of-acceptors", 3, "number of acceptors in the cluster")
	flags.Int("proposer-array-size", 1024, "instance table ring capacity")
	flags.Int("preexec-win-size", 8, "pre-execution pipeline depth")
	flags.Int("max-value-size", 1<<20, "maximum accepted client value size in bytes")
	flags.String("listen-addr", ":7000", "address to accept client connections on")
	flags.StringSlice("acceptor-addrs", nil, "host:port for every acceptor, in acceptor-id order")
	flags.String("metrics-addr", ":9100", "address to serve /metrics and /healthz on")
	flags.Int("tick-interval-ms", 20, "how often to re-check the pipeline absent new acks")

	_ = v.BindPFlag("proposer_id", flags.Lookup("proposer-id"))
	_ = v.BindPFlag("max_proposers", flags.Lookup("max-proposers"))
	_ = v.BindPFlag("n_of_acceptors", flags.Lookup("n-of-acceptors"))
	_ = v.BindPFlag("proposer_array_size", flags.Lookup("proposer-array-size"))
	_ = v.BindPFlag("preexec_win_size", flags.Lookup("preexec-win-size"))
	_ = v.BindPFlag("max_value_size", flags.Lookup("max-value-size"))
	_ = v.BindPFlag("listen_addr", flags.Lookup("listen-addr"))
	_ = v.BindPFlag("acceptor_addrs", flags.Lookup("acceptor-addrs"))
	_ = v.BindPFlag("metrics_addr", flags.Lookup("metrics-addr"))
	_ = v.BindPFlag("tick_interval_ms", flags.Lookup("tick-interval-ms"))

	v.SetEnvPrefix("proposerd")
	v.AutomaticEnv()

	return cmd
}

func runServe(v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return errors.Wrap(err, "serve: loading config")
	}

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "proposer_id", cfg.Limits.ProposerID)

	registry := prometheus.NewRegistry()
	metrics := paxos.NewMetrics(registry, cfg.Limits.ProposerID)

	var onChosen paxos.OnChosenFunc = func(iid paxos.InstanceID, value paxos.Value, ours bool) {
		level.Info(logger).Log("msg", "instance chosen", "iid", iid, "ours", ours, "value_len", len(value))
	}

	core, err := paxos.NewCore(cfg.Limits, logger, metrics, onChosen)
	if err != nil {
		return errors.Wrap(err, "serve: constructing proposer core")
	}

	tcp := transport.NewTCP(logger)
	for i, addr := range cfg.AcceptorAddrs {
		if err := tcp.Dial(uuid.NewString(), addr); err != nil {
			return errors.Wrapf(err, "serve: dialing acceptor %d", i)
		}
	}

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return errors.Wrap(err, "serve: listening for clients")
	}

	d := driver.New(core, tcp, logger, time.Duration(cfg.TickIntervalMS)*time.Millisecond)
	if err := d.Start(); err != nil {
		listener.Close()
		return errors.Wrap(err, "serve: starting driver")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		level.Info(logger).Log("msg", "shutting down")
		cancel()
	}()

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux(registry)}

	// errgroup supervises the listener and metrics server the way
	// prysm's beacon-chain command tree supervises its sibling services:
	// any one failing cancels ctx for the rest, and Wait reports the
	// first real error.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return acceptClients(gctx, listener, tcp, logger)
	})
	g.Go(func() error {
		return runMetricsServer(gctx, metricsSrv, logger)
	})

	level.Info(logger).Log("msg", "proposer serving", "listen_addr", cfg.ListenAddr, "acceptors", len(cfg.AcceptorAddrs))

	err = g.Wait()
	d.Stop()
	return err
}

// acceptClients accepts client connections until ctx is cancelled, at
// which point it closes the listener to unblock Accept. Every accepted
// connection is registered under a fresh correlation id rather than a
// sequential counter, so log lines for one client's session can be
// grepped out of a multi-client server unambiguously.
func acceptClients(ctx context.Context, listener net.Listener, tcp *transport.TCP, logger log.Logger) error {
	go func() {
		<-ctx.Done()
		listener.Close()
	}()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "serve: accepting client connection")
		}
		tcp.Accept(uuid.NewString(), conn)
	}
}

func metricsMux(registry *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func runMetricsServer(ctx context.Context, srv *http.Server, logger log.Logger) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			level.Error(logger).Log("msg", "metrics server exited", "err", err)
			return err
		}
		return nil
	}
}
