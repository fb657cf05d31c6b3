package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/credlens/credlens/internal/browse"
	"github.com/credlens/credlens/internal/classify"
	"github.com/credlens/credlens/internal/config"
	"github.com/credlens/credlens/internal/pipeline"
	"github.com/credlens/credlens/internal/quota"
	"github.com/credlens/credlens/internal/server"
	"github.com/credlens/credlens/internal/store"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "credlens",
	Short:   "News credibility checks",
	Long:    "CredLens fetches news articles, classifies their credibility with an LLM, and keeps per-user conversation history.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

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
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(userCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("credlens", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/credlens/",
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
		fmt.Println("Edit it to configure the LLM provider and API keys.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		stats, err := s.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Today: %s\n\n", store.Today())
		fmt.Printf("Users: %d\n", stats.TotalUsers)
		fmt.Printf("Conversations: %d\n", stats.TotalThreads)
		fmt.Printf("Analyses: %d\n", stats.TotalMessages)
		fmt.Printf("Analyses today: %d\n", stats.AnalysesToday)
		return nil
	},
}

// --- analyze command ---

var (
	analyzeUser string
	analyzeChat string
	asJSON      bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [text or URL]",
	Short: "Run one credibility analysis from the command line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		ledger := quota.NewLedger(s, cfg.Quota.FreeDailyLimit, cfg.Quota.PremiumDailyLimit)
		analyzer := newAnalyzer(s, ledger)
		out, err := analyzer.Submit(context.Background(), analyzeUser, args[0], analyzeChat)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"result": out.Verdict,
				"chatId": out.ThreadID,
			})
		}

		fmt.Printf("Verdict: %s (%.0f%% confidence)\n", out.Verdict.Label, out.Verdict.Confidence*100)
		if out.Verdict.Domain != "" {
			fmt.Printf("Source: %s\n", out.Verdict.Domain)
		}
		fmt.Printf("\n%s\n", out.Verdict.SourceCredibility)
		fmt.Printf("\nConversation: %s\n", out.ThreadID)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeUser, "user", "u", "cli", "User ID to run the analysis as")
	analyzeCmd.Flags().StringVar(&analyzeChat, "chat", "", "Append to an existing conversation ID")
	analyzeCmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		ledger := quota.NewLedger(s, cfg.Quota.FreeDailyLimit, cfg.Quota.PremiumDailyLimit)
		analyzer := newAnalyzer(s, ledger)

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(s, ledger, analyzer, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// --- user command ---

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userShowCmd = &cobra.Command{
	Use:   "show [userId]",
	Short: "Show a user's plan and quota usage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		u, err := s.GetOrCreateUser(args[0], store.Today())
		if err != nil {
			return err
		}

		ledger := quota.NewLedger(s, cfg.Quota.FreeDailyLimit, cfg.Quota.PremiumDailyLimit)
		fmt.Printf("User: %s\n", u.UserID)
		fmt.Printf("Plan: %s\n", u.Plan)
		fmt.Printf("Usage today: %d / %d\n", u.UsageCount, ledger.LimitFor(u.Plan))
		return nil
	},
}

var userPlanCmd = &cobra.Command{
	Use:   "plan [userId] [free|premium]",
	Short: "Change a user's plan",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		plan := args[1]
		if plan != "free" && plan != "premium" {
			return fmt.Errorf("unknown plan %q (expected free or premium)", plan)
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		if _, err := s.GetOrCreateUser(args[0], store.Today()); err != nil {
			return err
		}
		if err := s.SetPlan(args[0], plan); err != nil {
			return err
		}
		fmt.Printf("User %s is now on the %s plan\n", args[0], plan)
		return nil
	},
}

func init() {
	userCmd.AddCommand(userShowCmd)
	userCmd.AddCommand(userPlanCmd)
}

func newAnalyzer(s *store.Store, ledger *quota.Ledger) *pipeline.Analyzer {
	retriever := browse.NewRetriever(
		time.Duration(cfg.Browser.NavTimeoutSeconds)*time.Second,
		cfg.Browser.BlockResources,
	)
	provider := classify.CreateProvider(
		cfg.Classifier.Provider,
		cfg.Classifier.Model,
		cfg.Classifier.APIKeyEnv,
		cfg.Classifier.OpenAIModel,
		cfg.Classifier.OpenAIKeyEnv,
		cfg.Classifier.OllamaModel,
		cfg.Classifier.OllamaURL,
	)
	classifier := classify.NewClassifier(provider, cfg.Classifier.MaxArticleChars, cfg.Classifier.MaxTokens)
	return pipeline.New(s, ledger, retriever, classifier, cfg.Analysis.MinArticleChars)
}

func openStore() (*store.Store, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "credlens.db")
	return store.Open(dbPath)
}
