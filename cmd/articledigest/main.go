package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/ArticleDigest/internal/article"
	"github.com/TobiSchelling/ArticleDigest/internal/config"
	"github.com/TobiSchelling/ArticleDigest/internal/database"
	"github.com/TobiSchelling/ArticleDigest/internal/extract"
	"github.com/TobiSchelling/ArticleDigest/internal/fetch"
	"github.com/TobiSchelling/ArticleDigest/internal/pipeline"
	"github.com/TobiSchelling/ArticleDigest/internal/render"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps a failure kind to a distinct process exit status.
func exitCode(err error) int {
	switch article.KindOf(err) {
	case article.KindHTTP:
		return 2
	case article.KindChallenge:
		return 3
	case article.KindContentNotFound:
		return 4
	case article.KindTransport:
		return 5
	case article.KindValidation:
		return 6
	case article.KindSummarizer:
		return 7
	default:
		return 1
	}
}

var rootCmd = &cobra.Command{
	Use:     "articledigest",
	Short:   "Summarize a single web article",
	Long:    "ArticleDigest fetches one article page, extracts its content and writes a structured summary.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// API keys may live in a .env file next to the working directory.
		_ = godotenv.Load()

		setLogFlags(verbose)

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cfg.Logging.Debug() {
			setLogFlags(true)
		}
		return nil
	},
}

func setLogFlags(verbose bool) {
	if verbose {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(archiveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("articledigest", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/articledigest/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the LLM provider, selectors and output.")
		return nil
	},
}

// --- summarize command ---

var (
	outputPath   string
	outputFormat string
	noSave       bool
	plain        bool
)

var summarizeCmd = &cobra.Command{
	Use:          "summarize <url>",
	Short:        "Fetch, extract and summarize an article",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyOutputFlags(&cfg.Output); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		pipe := pipeline.New(ctx, cfg, !noSave)
		defer pipe.Close()

		result := pipe.Run(ctx, strings.TrimSpace(args[0]))
		printSteps(os.Stderr, result.Steps)
		if !result.OK() {
			if result.Failure == nil {
				return fmt.Errorf("pipeline stopped in state %s", result.State)
			}
			return result.Failure
		}

		if plain {
			fmt.Print(render.Markdown(result.Summary, cfg.Output.Headings))
		} else {
			printSummary(os.Stdout, result.Summary, cfg.Output.Headings)
		}

		switch {
		case noSave:
		case result.PersistErr != nil:
			fmt.Fprintln(os.Stderr, warnStyle.Render("Summary could not be saved: "+result.PersistErr.Error()))
		default:
			fmt.Fprintln(os.Stderr, infoStyle.Render("Saved to "+cfg.Output.Path))
		}
		return nil
	},
}

func init() {
	summarizeCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (overrides config)")
	summarizeCmd.Flags().StringVar(&outputFormat, "format", "", "Output format: markdown, html or json")
	summarizeCmd.Flags().BoolVar(&noSave, "no-save", false, "Print the summary without writing it anywhere")
	summarizeCmd.Flags().BoolVar(&plain, "plain", false, "Print plain markdown instead of styled output")
}

// applyOutputFlags overrides the output config from command-line flags. A
// format given without a path also switches the default file extension.
func applyOutputFlags(out *config.Output) error {
	if outputFormat != "" {
		switch strings.ToLower(outputFormat) {
		case render.FormatMarkdown, render.FormatHTML, render.FormatJSON:
		default:
			return fmt.Errorf("unknown output format %q", outputFormat)
		}
		out.Format = strings.ToLower(outputFormat)
		if outputPath == "" {
			out.Path = strings.TrimSuffix(out.Path, filepath.Ext(out.Path)) + render.Extension(out.Format)
		}
	}
	if outputPath != "" {
		out.Path = outputPath
	}
	return nil
}

// --- extract command ---

var extractJSON bool

var extractCmd = &cobra.Command{
	Use:          "extract <url>",
	Short:        "Fetch and extract an article without summarizing it",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		pipe := pipeline.NewWithDeps(pipeline.Deps{
			Fetcher:   fetch.New(cfg.Fetch),
			Extractor: extract.New(cfg.Extract),
		})

		content, err := pipe.Extract(ctx, strings.TrimSpace(args[0]))
		if err != nil {
			return err
		}

		if extractJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(content)
		}
		printContent(os.Stdout, content)
		return nil
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "Print the extracted content as JSON")
}

// --- archive commands ---

var archiveLimit int

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Browse archived summaries",
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent archived summaries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		rows, err := db.RecentSummaries(ctx, archiveLimit)
		if err != nil {
			return fmt.Errorf("listing summaries: %w", err)
		}
		if len(rows) == 0 {
			fmt.Println("No archived summaries.")
			return nil
		}
		printArchive(os.Stdout, rows)
		return nil
	},
}

var archiveShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print an archived summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		row, err := db.GetSummary(ctx, args[0])
		if err != nil {
			return fmt.Errorf("reading summary: %w", err)
		}
		if row == nil {
			return fmt.Errorf("summary %s not found", args[0])
		}
		printSummary(os.Stdout, row.Summary(), cfg.Output.Headings)
		return nil
	},
}

func init() {
	archiveListCmd.Flags().IntVarP(&archiveLimit, "limit", "n", 20, "Number of summaries to list")
	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveShowCmd)
}

func openDB(ctx context.Context) (*database.DB, error) {
	return database.Open(ctx, cfg.GetArchivePath())
}
