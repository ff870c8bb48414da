// Command ledgerseed populates a ledger platform with realistic test data:
// organizations, ledgers, assets, portfolios, segments, accounts, and
// balanced transactions between them.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ledgerseed/internal/checkpoint"
	"ledgerseed/internal/client"
	"ledgerseed/internal/config"
	"ledgerseed/internal/generator"
	"ledgerseed/internal/orchestrator"
	"ledgerseed/internal/state"
)

var (
	// Global flags
	configPath     string
	volume         string
	onboardingURL  string
	transactionURL string
	checkpointDir  string
	seed           int64
	debug          bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ledgerseed",
	Short: "Generate test data for a ledger platform",
	Long: `ledgerseed seeds a running ledger platform with a realistic entity
hierarchy: organizations, ledgers, assets, portfolios, segments, accounts,
and balanced transactions between accounts holding the same asset.

Runs checkpoint their progress after every completed ledger. An interrupted
run resumes from the latest checkpoint on the next invocation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if debug {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run a generation campaign",
	Long: `Creates the configured volume of entities against the platform.

Volumes:
  - small:  2 organizations, quick smoke dataset
  - medium: 4 organizations, realistic development dataset
  - large:  10 organizations, load-test scale (can run for hours)

If a resumable checkpoint exists, the run continues from it instead of
starting over. Use "ledgerseed checkpoints clean --all" to force a fresh
start.`,
	RunE: runGenerate,
}

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "Inspect and manage saved checkpoints",
}

var checkpointsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved checkpoints, oldest first",
	RunE:  runCheckpointsList,
}

var cleanAll bool

var checkpointsCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete old checkpoints, keeping the most recent ones",
	RunE:  runCheckpointsClean,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "path to a YAML config file")
	pf.StringVar(&volume, "volume", "", "generation volume: small, medium, or large")
	pf.StringVar(&onboardingURL, "onboarding-url", "", "base URL of the onboarding service")
	pf.StringVar(&transactionURL, "transaction-url", "", "base URL of the transaction service")
	pf.StringVar(&checkpointDir, "checkpoint-dir", "", "directory for checkpoint files")
	pf.Int64Var(&seed, "seed", 0, "random seed for reproducible payloads (0 = time-based)")
	pf.BoolVar(&debug, "debug", false, "enable debug logging")

	checkpointsCleanCmd.Flags().BoolVar(&cleanAll, "all", false, "delete every checkpoint")

	checkpointsCmd.AddCommand(checkpointsListCmd, checkpointsCleanCmd)
	rootCmd.AddCommand(generateCmd, checkpointsCmd)
}

// loadConfig layers flag overrides on top of file, environment, and
// defaults.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if volume != "" {
		cfg.Volume = config.Volume(volume)
		cfg.Counts = config.Counts{}
	}
	if onboardingURL != "" {
		cfg.OnboardingURL = onboardingURL
	}
	if transactionURL != "" {
		cfg.TransactionURL = transactionURL
	}
	if checkpointDir != "" {
		cfg.CheckpointDir = checkpointDir
	}
	if seed != 0 {
		cfg.Seed = seed
	}
	if debug {
		cfg.Debug = true
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client.NewHTTPClient(client.HTTPConfig{
		OnboardingURL:  cfg.OnboardingURL,
		TransactionURL: cfg.TransactionURL,
		RequestTimeout: cfg.RequestTimeoutDuration(),
		MaxInFlight:    int64(cfg.MaxInFlight),
	}, logger)

	checkpoints, err := checkpoint.NewManager(cfg.CheckpointDir, logger)
	if err != nil {
		return err
	}

	orch := orchestrator.New(cfg, api,
		generator.New(cfg.Seed),
		state.NewManager(state.Config{MaxEntitiesInMemory: cfg.MaxEntitiesInMemory}),
		checkpoints, logger)

	metrics, runErr := orch.Run(ctx)
	fmt.Print(orchestrator.NewSummary(metrics))
	if runErr != nil {
		return fmt.Errorf("generation failed: %w", runErr)
	}
	return nil
}

func runCheckpointsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	manager, err := checkpoint.NewManager(cfg.CheckpointDir, logger)
	if err != nil {
		return err
	}
	cps, err := manager.List()
	if err != nil {
		return err
	}
	if len(cps) == 0 {
		fmt.Println("no checkpoints")
		return nil
	}
	for _, cp := range cps {
		fmt.Printf("%s  %s  phase=%s org=%d ledger=%d created=%d\n",
			cp.Timestamp.Format("2006-01-02 15:04:05"),
			cp.ID,
			cp.Progress.Phase,
			cp.Progress.CurrentOrganizationIndex,
			cp.Progress.CurrentLedgerIndex,
			cp.Metrics.TotalCreated())
	}
	return nil
}

func runCheckpointsClean(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	manager, err := checkpoint.NewManager(cfg.CheckpointDir, logger)
	if err != nil {
		return err
	}
	keep := cfg.CheckpointKeep
	if cleanAll {
		keep = 0
	}
	removed, err := manager.CleanupOld(keep)
	if err != nil {
		return err
	}
	fmt.Printf("removed %d checkpoint(s)\n", removed)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
