// kgrag is a knowledge-graph-augmented tutoring agent for algorithm
// learners: course material is ingested into a property graph plus a
// chunk index, and questions are answered by a multi-agent retrieval
// loop over both.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/athenalab/kgrag/pkg/version"
)

func main() {
	root := &cobra.Command{
		Use:           version.AppName,
		Short:         "Knowledge-graph-augmented algorithms tutor",
		Version:       version.GitCommit,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"path to a .env file seeding the environment")

	root.AddCommand(
		buildServeCmd(),
		buildChatCmd(),
		buildIngestCmd(),
		buildIngestDirCmd(),
		buildMergeCmd(),
		buildRetagCmd(),
	)

	if err := root.Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
