package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ayo-electronics/t0ve-hostlink/internal/logging"
	"github.com/ayo-electronics/t0ve-hostlink/serdes"
)

// rootOptions holds every persistent flag shared by hostlinkctl's
// subcommands, mirroring the teacher's DeviceParams/Options
// plain-struct pattern but fed by pflag instead of the bare flag
// package.
type rootOptions struct {
	nodeIndex   string
	serialRegex string

	pollInterval    time.Duration
	maxPollInterval time.Duration
	ackTimeout      time.Duration

	uiTopicRoot string
	verbose     bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "hostlinkctl",
		Short: "Operate and inspect a T0VE host-link node over USB serial",
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.nodeIndex, "node", "0", `node index: "0".."4", "15", or "Any"`)
	flags.StringVar(&opts.serialRegex, "serial-regex", "", "override the default per-node serial-number regex")
	flags.DurationVar(&opts.pollInterval, "poll-interval", 500*time.Millisecond, "default state poll interval")
	flags.DurationVar(&opts.maxPollInterval, "max-poll-interval", 100*time.Millisecond, "trigger-loop tick / status-publish interval")
	flags.DurationVar(&opts.ackTimeout, "ack-timeout", 5*time.Second, "time to wait for a state or file-chunk ack before recovering the port")
	flags.StringVar(&opts.uiTopicRoot, "ui-topic-root", "app.ui", "topic root the mirror/glue layer publishes UI-facing topics under")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug-level logging")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newFilesCommand(opts))
	cmd.AddCommand(newListNodesCommand())

	return cmd
}

func (o *rootOptions) buildLogger() *logging.Logger {
	cfg := logging.DefaultConfig()
	if o.verbose {
		cfg.Level = logging.LevelDebug
	}
	return logging.NewLogger(cfg)
}

// buildSerdesConfig translates the persistent timing flags into a
// serdes.Config; NodeIndex/PortConfig/Broker/Logger/Observer are filled
// in by hostlink.NewNode itself.
func buildSerdesConfig(o *rootOptions) serdes.Config {
	return serdes.Config{
		DefaultPollInterval: o.pollInterval,
		MaxPollInterval:     o.maxPollInterval,
		AckTimeout:          o.ackTimeout,
	}
}
