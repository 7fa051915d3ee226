package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"edurag/internal/config"
	"edurag/internal/domain"
	"edurag/internal/extract"
	"edurag/internal/logger"
	"edurag/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	root := &cobra.Command{
		Use:          "edurag",
		Short:        "Index course content and answer questions over it",
		Long:         "edurag extracts published course content from the split document store, indexes it into a vector store, and answers questions with retrieval-augmented generation.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config (defaults to ./config.yaml, then ~/.config/edurag/config.yaml)")

	root.AddCommand(newIndexCmd(&cfgPath), newAskCmd(&cfgPath), newChatCmd(&cfgPath))
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.AppConfig, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg, _, err := config.LoadDefault()
	return cfg, err
}

func newIndexCmd(cfgPath *string) *cobra.Command {
	var courses []string
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Run one extraction and indexing pass over published courses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.LogMode)
			if err != nil {
				return err
			}
			defer log.Sync()

			filter, err := parseCourseFilter(courses)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := buildApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			indexer, err := app.Indexer(filter)
			if err != nil {
				return err
			}
			start := time.Now()
			snap, err := indexer.Run(ctx)
			printSummary(cmd, snap, time.Since(start))
			return err
		},
	}
	cmd.Flags().StringArrayVar(&courses, "course", nil, "restrict to a course id (repeatable), e.g. course-v1:MIT+8.01+2024")
	return cmd
}

func newAskCmd(cfgPath *string) *cobra.Command {
	var courseID string
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question and print the answer with citations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.LogMode)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := buildQueryApp(cfg, log)
			if err != nil {
				return err
			}
			qa, err := app.QA()
			if err != nil {
				return err
			}
			answer, err := qa.Ask(ctx, args[0], courseID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer.Text)
			if len(answer.Citations) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "\nSources:")
				for _, c := range answer.Citations {
					fmt.Fprintln(cmd.OutOrStdout(), "  -", c)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&courseID, "course", "", "restrict retrieval to one course id")
	return cmd
}

func newChatCmd(cfgPath *string) *cobra.Command {
	var courseID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive question-answering session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.LogMode)
			if err != nil {
				return err
			}
			defer log.Sync()

			app, err := buildQueryApp(cfg, log)
			if err != nil {
				return err
			}
			qa, err := app.QA()
			if err != nil {
				return err
			}
			m := tui.New(qa, courseID)
			_, err = tea.NewProgram(m).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&courseID, "course", "", "restrict retrieval to one course id")
	return cmd
}

func parseCourseFilter(ids []string) ([]domain.CourseKey, error) {
	keys := make([]domain.CourseKey, 0, len(ids))
	for _, id := range ids {
		key, err := domain.ParseCourseID(id)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func printSummary(cmd *cobra.Command, snap extract.Snapshot, elapsed time.Duration) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Extraction run finished in %s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "  courses processed:     %d\n", snap.CoursesProcessed)
	fmt.Fprintf(out, "  courses skipped:       %d\n", snap.CoursesSkipped)
	fmt.Fprintf(out, "  blocks extracted:      %d\n", snap.BlocksExtracted)
	fmt.Fprintf(out, "  not extractable:       %d\n", snap.NotExtractable)
	fmt.Fprintf(out, "  missing definitions:   %d\n", snap.MissingDefinitions)
	fmt.Fprintf(out, "  skipped children:      %d\n", snap.SkippedChildren)
	fmt.Fprintf(out, "  duplicate definitions: %d\n", snap.DuplicateDefinitions)
	fmt.Fprintf(out, "  below min length:      %d\n", snap.BelowMinLength)
	fmt.Fprintf(out, "  chunks indexed:        %d\n", snap.ChunksIndexed)
	fmt.Fprintf(out, "  failed items:          %d\n", snap.FailedItems)
}
