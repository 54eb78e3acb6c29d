package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	hostlink "github.com/ayo-electronics/t0ve-hostlink"
	"github.com/ayo-electronics/t0ve-hostlink/internal/obsmetrics"
	"github.com/ayo-electronics/t0ve-hostlink/port"
)

type runOptions struct {
	metricsAddr  string
	noColor      bool
	autoConnect  bool
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{metricsAddr: ":9090", autoConnect: true}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to a node and stream its debug console until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(cmd.Context(), root, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.metricsAddr, "metrics-addr", opts.metricsAddr, "address to serve Prometheus /metrics on; empty disables it")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored debug console output")
	flags.BoolVar(&opts.autoConnect, "auto-connect", true, "request a connection to the node immediately on startup")

	return cmd
}

func runNode(ctx context.Context, root *rootOptions, opts *runOptions) error {
	logger := root.buildLogger()

	registry := prometheus.NewRegistry()
	observer := obsmetrics.NewPrometheusObserver(registry)

	var metricsSrv *http.Server
	if opts.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: opts.metricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("serving metrics", "addr", opts.metricsAddr)
	}

	node, err := hostlink.NewNode(hostlink.NodeConfig{
		NodeIndex: root.nodeIndex,
		PortConfig: port.Config{
			SerialRegex:     root.serialRegex,
			Discoverer:      port.NewSysfsDiscoverer(),
		},
		SerdesConfig:      buildSerdesConfig(root),
		UITopicRoot:       root.uiTopicRoot,
		UIMaxPublishRateS: 100 * time.Millisecond,
		Logger:            logger,
		Observer:          observer,
	})
	if err != nil {
		return err
	}

	stopConsole := attachColorConsole(node, opts.noColor)
	defer stopConsole()

	if opts.autoConnect {
		node.Serdes.RequestConnect(true)
	}

	fmt.Printf("hostlinkctl: watching %s (serial-regex override: %q)\n", node.Index, root.serialRegex)
	fmt.Println("Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if err := node.Close(); err != nil {
		logger.Error("error closing node", "error", err)
	}
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return nil
}

// attachColorConsole subscribes every debug level topic on the node's
// Serdes directly (the same topics glue.Dispatcher's debug fan-out
// reads) and prints each line colored by level, returning a function
// that unsubscribes.
func attachColorConsole(node *hostlink.Node, noColor bool) func() {
	color.NoColor = noColor

	levels := map[string]*color.Color{
		"info":  color.New(color.FgCyan),
		"warn":  color.New(color.FgYellow),
		"error": color.New(color.FgRed, color.Bold),
	}

	stop := make(chan struct{})
	for level, c := range levels {
		topic := node.Serdes.Root() + ".debug." + level
		col := c
		node.Serdes.Broker().OnTopic(topic, stop, func(msg interface{}) {
			col.Printf("[%s] %v\n", strings.ToUpper(level), msg)
		})
	}

	return func() {
		select {
		case <-stop:
		default:
			close(stop)
		}
	}
}
