package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/filedrift/drift/internal/config"
)

func init() {
	rootCmd.AddCommand(newInitCmd())
}

func newInitCmd() *cobra.Command {
	var force bool

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			path, _ := cmd.Flags().GetString("config")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
			}

			dataDir, _ := cmd.Flags().GetString("datadir")
			cfg := &config.Config{
				DataDir:          dataDir,
				RemoteRoot:       "drift",
				ConflictStrategy: config.StrategyCopy,
				SyncAttachments:  true,
				S3: config.S3Config{
					Bucket: "your-bucket",
					Region: "us-east-1",
				},
			}
			if err := cfg.Save(path); err != nil {
				return err
			}

			fmt.Printf("wrote %s, fill in the s3 section before syncing\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config")
	return initCmd
}
