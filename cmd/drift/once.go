package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/filedrift/drift/internal/syncer"
)

func init() {
	rootCmd.AddCommand(newOnceCmd())
}

func newOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single sync cycle and exit",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromViper()
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			_, engine, cleanup, err := buildEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			res := engine.Sync(cmd.Context())
			printResult(res)

			if res.Err != nil {
				return res.Err
			}
			if !res.Success {
				return errors.New("sync completed with errors")
			}
			return nil
		},
	}
}

func printResult(res *syncer.Result) {
	fmt.Printf("synced in %s: %d up (%s), %d down (%s), %d deleted remote, %d deleted local, %d renamed, %d conflicts, %d unchanged\n",
		res.Took.Round(time.Millisecond),
		res.Uploaded, humanize.IBytes(uint64(res.BytesUp)),
		res.Downloaded, humanize.IBytes(uint64(res.BytesDown)),
		res.DeletedRemote, res.DeletedLocal, res.Renamed, res.Conflicts, res.Unchanged,
	)
	for _, err := range res.Errors {
		fmt.Printf("  error: %v\n", err)
	}
}
