package main

import (
	"strings"

	"github.com/spf13/cobra"
)

func buildIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Rebuild the collection from the documents directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd)
		},
	}
}

func buildQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <question>",
		Short: "Answer a question from the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, strings.Join(args, " "))
		},
	}
}

func buildSearchCmd() *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the passages most similar to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), k)
		},
	}
	cmd.Flags().IntVarP(&k, "top", "k", 0, "Number of passages (defaults to SEARCH_K)")
	return cmd
}

func buildFilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage the documents directory",
	}
	cmd.AddCommand(buildFilesListCmd(), buildFilesAddCmd(), buildFilesDeleteCmd())
	return cmd
}

func buildFilesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the supported documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilesList(cmd)
		},
	}
}

func buildFilesAddCmd() *cobra.Command {
	var noReindex bool
	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Copy a document into the documents directory and re-index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilesAdd(cmd, args[0], !noReindex)
		},
	}
	cmd.Flags().BoolVar(&noReindex, "no-reindex", false, "Skip re-indexing after the copy")
	return cmd
}

func buildFilesDeleteCmd() *cobra.Command {
	var noReindex bool
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a document and re-index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilesDelete(cmd, args[0], !noReindex)
		},
	}
	cmd.Flags().BoolVar(&noReindex, "no-reindex", false, "Skip re-indexing after the delete")
	return cmd
}

func buildUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage API users",
	}
	cmd.AddCommand(buildUsersInitCmd(), buildUsersAddCmd(), buildUsersPasswdCmd())
	return cmd
}

func buildUsersInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the default admin from ADMIN_EMAIL and ADMIN_PASSWORD if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsersInit(cmd)
		},
	}
}

func buildUsersAddCmd() *cobra.Command {
	var (
		password string
		admin    bool
	)
	cmd := &cobra.Command{
		Use:   "add <email>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsersAdd(cmd, args[0], password, admin)
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "Password for the new user")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant admin rights")
	cobra.CheckErr(cmd.MarkFlagRequired("password"))
	return cmd
}

func buildUsersPasswdCmd() *cobra.Command {
	var oldPassword, newPassword string
	cmd := &cobra.Command{
		Use:   "passwd <email>",
		Short: "Change a user's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsersPasswd(cmd, args[0], oldPassword, newPassword)
		},
	}
	cmd.Flags().StringVar(&oldPassword, "old", "", "Current password")
	cmd.Flags().StringVar(&newPassword, "new", "", "New password")
	cobra.CheckErr(cmd.MarkFlagRequired("old"))
	cobra.CheckErr(cmd.MarkFlagRequired("new"))
	return cmd
}

func buildStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the vector backend, collection and last ingestion run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd)
		},
	}
}

func buildMcpCmd() *cobra.Command {
	var httpAddr string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the ask, search and list_files tools over MCP",
		Long:  "Serves over stdio by default. With --http the streamable HTTP transport is used instead.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMcp(cmd, httpAddr)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "Listen address for the HTTP transport, e.g. :8090")
	return cmd
}
