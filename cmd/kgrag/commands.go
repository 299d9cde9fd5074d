package main

import (
	"github.com/spf13/cobra"
)

// envFile is shared by every subcommand via the root --env-file flag.
var envFile string

func buildServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), envFile)
		},
	}
}

func buildChatCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the tutor from the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), envFile, username)
		},
	}
	cmd.Flags().StringVarP(&username, "user", "u", "console",
		"username owning the terminal sessions")
	return cmd
}

func buildIngestCmd() *cobra.Command {
	var docID string
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest one document into the chunk index and knowledge graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), envFile, args[0], docID)
		},
	}
	cmd.Flags().StringVar(&docID, "doc-id", "",
		"document identifier (default: file name without extension)")
	return cmd
}

func buildIngestDirCmd() *cobra.Command {
	var glob string
	cmd := &cobra.Command{
		Use:   "ingest-dir <dir>",
		Short: "Ingest every matching file under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngestDir(cmd.Context(), envFile, args[0], glob)
		},
	}
	cmd.Flags().StringVar(&glob, "glob", "*.md", "file name pattern to ingest")
	return cmd
}

func buildMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Re-run entity deduplication over the stored graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd.Context(), envFile)
		},
	}
}

func buildRetagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retag",
		Short: "Recompute keyword tags for every indexed chunk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetag(cmd.Context(), envFile)
		},
	}
}
