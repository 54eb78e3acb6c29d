package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayo-electronics/t0ve-hostlink/port"
	"github.com/ayo-electronics/t0ve-hostlink/serdes"
)

func newFilesCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "List or fetch files over the node's chunked file-transfer protocol",
	}
	cmd.AddCommand(newFilesListCommand(root))
	cmd.AddCommand(newFilesGetCommand(root))
	return cmd
}

func newFilesListCommand(root *rootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List files the node reports in its catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connectSerdes(cmd.Context(), root, timeout)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			catalog, err := s.ListFiles(ctx)
			if err != nil {
				return fmt.Errorf("list files: %w", err)
			}

			for _, entry := range catalog.Entries {
				fmt.Printf("%10d  %s\n", entry.Filesize, entry.Filename)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall time budget for connecting and listing")
	return cmd
}

func newFilesGetCommand(root *rootOptions) *cobra.Command {
	var (
		timeout time.Duration
		size    int
		out     string
	)

	cmd := &cobra.Command{
		Use:   "get <filename>",
		Short: "Download one file in MaxChunkSize-byte chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]

			s, err := connectSerdes(cmd.Context(), root, timeout)
			if err != nil {
				return err
			}
			defer s.Close()

			fileSize := size
			if fileSize <= 0 {
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				catalog, err := s.ListFiles(ctx)
				cancel()
				if err != nil {
					return fmt.Errorf("resolve file size: %w", err)
				}
				for _, entry := range catalog.Entries {
					if entry.Filename == filename {
						fileSize = int(entry.Filesize)
						break
					}
				}
				if fileSize <= 0 {
					return fmt.Errorf("file %q not found in catalog and no --size given", filename)
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			data, err := s.ReadFile(ctx, filename, fileSize)
			if err != nil {
				return fmt.Errorf("read file: %w", err)
			}

			dest := out
			if dest == "" {
				dest = filename
			}
			if err := os.WriteFile(dest, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", dest, err)
			}
			fmt.Printf("wrote %d bytes to %s\n", len(data), dest)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall time budget for the transfer")
	cmd.Flags().IntVar(&size, "size", 0, "file size in bytes, if known (skips the catalog lookup)")
	cmd.Flags().StringVar(&out, "out", "", "output path (defaults to the filename)")
	return cmd
}

// connectSerdes builds a standalone Serdes (no mirrors/glue — files
// subcommands don't need the UI layer), requests a connection, and
// waits for the port to come up before returning.
func connectSerdes(ctx context.Context, root *rootOptions, timeout time.Duration) (*serdes.Serdes, error) {
	logger := root.buildLogger()

	s, err := serdes.New(serdes.Config{
		NodeIndex:           root.nodeIndex,
		DefaultPollInterval: root.pollInterval,
		MaxPollInterval:     root.maxPollInterval,
		AckTimeout:          root.ackTimeout,
		PortConfig: port.Config{
			SerialRegex: root.serialRegex,
			Discoverer:  port.NewSysfsDiscoverer(),
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	s.RequestConnect(true)

	deadline := time.Now().Add(timeout)
	for !s.Status().Connected {
		if time.Now().After(deadline) {
			_ = s.Close()
			return nil, fmt.Errorf("timed out waiting for node %s to connect", root.nodeIndex)
		}
		select {
		case <-ctx.Done():
			_ = s.Close()
			return nil, ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
	return s, nil
}
