package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fiambond/attachments/internal/auth"
	"github.com/fiambond/attachments/internal/config"
	"github.com/fiambond/attachments/internal/maintenance"
	"github.com/fiambond/attachments/internal/storage"
)

// errInvalidConfig marks runner failures caused by configuration rather than
// by the object store.
var errInvalidConfig = errors.New("invalid configuration")

// runnerFunc builds the Runner for a command; it writes to the command's stdout.
type runnerFunc func(cmd *cobra.Command) (*maintenance.Runner, error)

// storageRunner validates cfg and connects a Runner to the configured store.
func storageRunner(cfg config.Config, log zerolog.Logger) runnerFunc {
	return func(cmd *cobra.Command) (*maintenance.Runner, error) {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", errInvalidConfig, err)
		}
		gw, err := storage.New(cfg.Storage)
		if err != nil {
			return nil, err
		}
		return maintenance.NewRunner(gw, cfg.Storage.Bucket, cfg.Storage.Region, cmd.OutOrStdout(), log), nil
	}
}

// newRootCmd assembles the command tree. A failed step prints a diagnostic and
// returns normally, so the process exit code stays 0.
func newRootCmd(seed config.Seed, jwtSecret string, newRunner runnerFunc) *cobra.Command {
	withRunner := func(fn func(cmd *cobra.Command, r *maintenance.Runner, args []string)) func(*cobra.Command, []string) {
		return func(cmd *cobra.Command, args []string) {
			r, err := newRunner(cmd)
			if errors.Is(err, errInvalidConfig) {
				fmt.Fprintf(cmd.OutOrStdout(), "Error: %v\n", err)
				return
			}
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Error: could not connect to object storage: %v\n", err)
				return
			}
			fn(cmd, r, args)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "bucketctl",
		Short: "Maintenance tool for the attachments bucket",
		Long: "Without a subcommand, bucketctl ensures the bucket exists, uploads the seed file\n" +
			"and lists the bucket contents, stopping at the first failed step.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		Run: withRunner(func(cmd *cobra.Command, r *maintenance.Runner, _ []string) {
			r.Run(cmd.Context(), seed.File, seed.Key)
		}),
	}

	ensureCmd := &cobra.Command{
		Use:   "ensure",
		Short: "Create the bucket if it does not exist",
		Args:  cobra.NoArgs,
		Run: withRunner(func(cmd *cobra.Command, r *maintenance.Runner, _ []string) {
			r.EnsureBucket(cmd.Context())
		}),
	}

	uploadCmd := &cobra.Command{
		Use:   "upload [path] [key]",
		Short: "Upload a local file into the bucket",
		Long:  fmt.Sprintf("Upload a local file. Defaults to %q as %q.", seed.File, seed.Key),
		Args:  cobra.MaximumNArgs(2),
		Run: withRunner(func(cmd *cobra.Command, r *maintenance.Runner, args []string) {
			path, key := seed.File, seed.Key
			if len(args) > 0 {
				path = args[0]
			}
			if len(args) > 1 {
				key = args[1]
			}
			r.UploadFile(cmd.Context(), path, key)
		}),
	}

	listCmd := &cobra.Command{
		Use:     "list",
		Short:   "List the objects in the bucket",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		Run: withRunner(func(cmd *cobra.Command, r *maintenance.Runner, _ []string) {
			r.ListFiles(cmd.Context())
		}),
	}

	bucketsCmd := &cobra.Command{
		Use:   "buckets",
		Short: "List every bucket visible to the configured credentials",
		Args:  cobra.NoArgs,
		Run: withRunner(func(cmd *cobra.Command, r *maintenance.Runner, _ []string) {
			r.ListBuckets(cmd.Context())
		}),
	}

	var ttl time.Duration
	tokenCmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Print a bearer token for the upload endpoint, signed with AUTH_JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.IssueToken(jwtSecret, args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	tokenCmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTTL, "token lifetime")

	rootCmd.AddCommand(ensureCmd, uploadCmd, listCmd, bucketsCmd, tokenCmd)
	return rootCmd
}
