package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/filedrift/drift/internal/version"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.Detailed())
		},
	})
}
