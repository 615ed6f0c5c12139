package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/akolanti/docqa/internal/adapter"
	"github.com/akolanti/docqa/internal/adapter/utils"
	"github.com/akolanti/docqa/internal/app"
	"github.com/akolanti/docqa/internal/auth"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/jobModel"
	"github.com/akolanti/docqa/internal/mcpserver"
	"github.com/akolanti/docqa/internal/rag/ingest"
	"github.com/spf13/cobra"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func runIngest(cmd *cobra.Command) error {
	return withApp(cmd, func(a *app.App) error {
		report, err := a.Reindex(cmd.Context(), jobModel.TriggerManual, utils.GetNewUUID(), "")
		if err != nil {
			return fmt.Errorf("ingestion failed, the previous collection is kept: %w", err)
		}
		return printReport(cmd.OutOrStdout(), report)
	})
}

func printReport(w io.Writer, report ingest.Report) error {
	if jsonOutput {
		return printJSON(w, adapter.ToIngestResponse(report))
	}
	fmt.Fprintf(w, "run %s: %s, %d documents, %d chunks", report.RunId, report.Status, report.Documents, report.Chunks)
	if report.Version != "" {
		fmt.Fprintf(w, ", version %s", report.Version)
	}
	fmt.Fprintln(w)
	for _, f := range report.Failures {
		fmt.Fprintf(w, "  skipped %s\n", f.Error())
	}
	return nil
}

func runQuery(cmd *cobra.Command, question string) error {
	return withApp(cmd, func(a *app.App) error {
		answer := a.RAG.Query(cmd.Context(), question)
		w := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(w, adapter.ToChatResponse("", answer))
		}
		fmt.Fprintln(w, answer.Text)
		if len(answer.Results) > 0 && answer.UsedModel {
			fmt.Fprintln(w)
			printResults(w, answer.Results, false)
		}
		return nil
	})
}

func runSearch(cmd *cobra.Command, query string, k int) error {
	return withApp(cmd, func(a *app.App) error {
		if k <= 0 {
			k = a.RAG.K()
		}
		results := a.RAG.Search(cmd.Context(), query, k)
		w := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(w, adapter.ToSources(results))
		}
		if len(results) == 0 {
			fmt.Fprintln(w, "no results")
			return nil
		}
		printResults(w, results, true)
		return nil
	})
}

func printResults(w io.Writer, results []commonModels.SearchResult, withChunk bool) {
	for _, r := range results {
		label := r.Filename
		if r.Page != nil {
			label = fmt.Sprintf("%s (page %d)", r.Filename, *r.Page)
		}
		fmt.Fprintf(w, "[%d] %s  distance=%.4f\n", r.Index, label, r.Score)
		if withChunk {
			fmt.Fprintf(w, "%s\n\n", r.Chunk)
		}
	}
}

func runFilesList(cmd *cobra.Command) error {
	return withApp(cmd, func(a *app.App) error {
		list, err := a.Files.List()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(w, adapter.ToFileListResponse(a.Files.Dir(), list))
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED")
		for _, f := range list {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", f.Name, f.Size, f.ModTime.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	})
}

func runFilesAdd(cmd *cobra.Command, path string, reindex bool) error {
	return withApp(cmd, func(a *app.App) error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		info, err := a.Files.Save(filepath.Base(path), f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%d bytes)\n", info.Name, info.Size)
		if !reindex {
			return nil
		}
		report, err := a.Reindex(cmd.Context(), jobModel.TriggerUpload, utils.GetNewUUID(), "")
		if err != nil {
			return fmt.Errorf("file saved but re-index failed: %w", err)
		}
		return printReport(cmd.OutOrStdout(), report)
	})
}

func runFilesDelete(cmd *cobra.Command, name string, reindex bool) error {
	return withApp(cmd, func(a *app.App) error {
		if err := a.Files.Delete(name); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", name)
		if !reindex {
			return nil
		}
		report, err := a.Reindex(cmd.Context(), jobModel.TriggerDelete, utils.GetNewUUID(), "")
		if err != nil {
			return fmt.Errorf("file deleted but re-index failed: %w", err)
		}
		return printReport(cmd.OutOrStdout(), report)
	})
}

func openUsers() (*auth.UserStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return auth.NewUserStore(auth.Options{
		File:          cfg.Auth.File,
		AdminEmail:    cfg.Auth.AdminEmail,
		AdminPassword: cfg.Auth.AdminPassword,
	}), nil
}

func runUsersInit(cmd *cobra.Command) error {
	users, err := openUsers()
	if err != nil {
		return err
	}
	if err := users.CreateDefaultIdentity(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "default user ready")
	return nil
}

func runUsersAdd(cmd *cobra.Command, email, password string, admin bool) error {
	users, err := openUsers()
	if err != nil {
		return err
	}
	if err := users.CreateUser(email, password, admin); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", email)
	return nil
}

func runUsersPasswd(cmd *cobra.Command, email, oldPassword, newPassword string) error {
	users, err := openUsers()
	if err != nil {
		return err
	}
	if err := users.ChangePassword(email, oldPassword, newPassword); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "password changed for %s\n", email)
	return nil
}

func runStatus(cmd *cobra.Command) error {
	return withApp(cmd, func(a *app.App) error {
		st := a.Status(cmd.Context())
		w := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(w, adapter.ToStatusResponse(st))
		}
		fmt.Fprintf(w, "backend:    %s (%s)\n", st.Backend, st.BackendKind)
		fmt.Fprintf(w, "available:  %t\n", st.Available)
		fmt.Fprintf(w, "embedding:  %s\n", st.EmbeddingModel)
		if st.LLMConfigured {
			fmt.Fprintf(w, "llm:        %s\n", st.LLMProvider)
		} else {
			fmt.Fprintln(w, "llm:        not configured, answers list the retrieved passages")
		}
		fmt.Fprintf(w, "documents:  %s\n", st.DocsDir)
		if m := st.Collection; m != nil {
			fmt.Fprintf(w, "collection: %s, %d chunks, version %s, built %s\n", m.Name, m.ChunkCount, m.Version, m.CreatedAt.Format("2006-01-02 15:04"))
		}
		if r := st.LastRun; r != nil {
			fmt.Fprintf(w, "last run:   %s %s (%s)\n", r.Id, r.Status, r.Trigger)
		}
		return nil
	})
}

func runMcp(cmd *cobra.Command, httpAddr string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := mcpserver.New(&mcpserver.Ports{Engine: a.RAG, Files: a.Files})
	if err != nil {
		return err
	}
	if httpAddr != "" {
		return s.RunHTTP(ctx, httpAddr)
	}
	return s.Run(ctx)
}
