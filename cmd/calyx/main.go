package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/stationcalyx/calyx/pkg/artifact"
	"github.com/stationcalyx/calyx/pkg/config"
	"github.com/stationcalyx/calyx/pkg/coordinator"
	"github.com/stationcalyx/calyx/pkg/log"
	"github.com/stationcalyx/calyx/pkg/metrics"
	"github.com/stationcalyx/calyx/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	cfgFile     string
	stationRoot string
	logLevel    string
	logJSON     bool

	cfg *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "calyx",
	Short: "Calyx - Filesystem-mediated coordination pulse for agent stations",
	Long: `Calyx watches a station of autonomous agents through their heartbeat
and metrics files, maintains a prioritized intent queue, and executes
bounded maintenance work through verifiable, rollback-capable domains.

All coordination happens over plain files under one station root; no
broker, no database server, no network dependency.`,
	Version:           Version,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Calyx version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&stationRoot, "station-root", "", "Station root directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit JSON logs instead of console output")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(pulseCmd)
	rootCmd.AddCommand(addIntentCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(autonomyCmd)
	rootCmd.AddCommand(artifactCmd)
	rootCmd.AddCommand(escalationsCmd)
}

// setup resolves configuration before any subcommand runs: .env, then
// config file, then flag overrides.
func setup(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg = config.Default()
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if stationRoot != "" {
		cfg.StationRoot = stationRoot
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON = logJSON
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})
	metrics.SetVersion(Version)
	return nil
}

// Status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print queue depth, confidence map, and autonomy mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := coordinator.New(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		guard := c.State().CheckGuardrails()

		fmt.Println("Station Calyx status")
		fmt.Printf("  Station root:       %s\n", cfg.StationRoot)
		fmt.Printf("  Autonomy mode:      %s\n", c.State().AutonomyMode())
		fmt.Printf("  Intents queued:     %d\n", c.Intents().Count())
		fmt.Printf("  Active escalations: %d\n", len(c.Escalations().Active()))
		if guard.OK {
			fmt.Println("  Guardrails:         ok")
		} else {
			fmt.Println("  Guardrails:")
			for _, v := range guard.Violations {
				fmt.Printf("    ! %s\n", v)
			}
		}

		confidence := c.Verifier().ConfidenceMap()
		if len(confidence) > 0 {
			fmt.Println("  Confidence:")
			capabilities := make([]string, 0, len(confidence))
			for capability := range confidence {
				capabilities = append(capabilities, capability)
			}
			sort.Strings(capabilities)
			for _, capability := range capabilities {
				fmt.Printf("    %-20s %.2f\n", capability, confidence[capability])
			}
		}
		return nil
	},
}

// Pulse command
var pulseCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Run one coordination pulse and print the summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := coordinator.New(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		report := c.Pulse(cmd.Context())

		fmt.Println("✓ Pulse complete")
		fmt.Printf("  Events ingested: %d\n", report.EventsIngested)
		fmt.Printf("  Intents expired: %d\n", report.IntentsExpired)
		fmt.Printf("  Intents queued:  %d\n", report.IntentsQueued)
		fmt.Printf("  Stalls:          %d\n", len(report.Stalls))
		fmt.Printf("  Executions:      %d\n", len(report.Executions))
		for _, ex := range report.Executions {
			line := fmt.Sprintf("    %s %s", ex.IntentID, ex.Status)
			if ex.Domain != "" {
				line += " domain=" + ex.Domain
			}
			if ex.ManifestID != "" {
				line += " manifest=" + ex.ManifestID
			}
			if ex.Error != "" {
				line += " error=" + ex.Error
			}
			fmt.Println(line)
		}
		for _, msg := range report.Errors {
			fmt.Printf("  ! %s\n", msg)
		}
		return nil
	},
}

// Add-intent command
var addIntentCmd = &cobra.Command{
	Use:   "add-intent DESCRIPTION",
	Short: "Propose an intent for coordination",
	Long: `Propose an intent. The intent must have a clarified artifact on
record (see "calyx artifact"); unclarified or unknown intents are
refused with a typed evidence event.

Rejections and duplicates are policy outcomes, not errors: the command
exits 0 either way. A non-zero exit means the queue could not be
persisted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		origin, _ := cmd.Flags().GetString("origin")
		capabilities, _ := cmd.Flags().GetStringSlice("capabilities")
		outcome, _ := cmd.Flags().GetString("outcome")
		priority, _ := cmd.Flags().GetFloat64("priority")
		autonomy, _ := cmd.Flags().GetString("autonomy")

		if id == "" {
			id = uuid.New().String()
		}

		c, err := coordinator.New(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		added, err := c.AddIntent(types.Intent{
			ID:                   id,
			Origin:               origin,
			Description:          args[0],
			RequiredCapabilities: capabilities,
			DesiredOutcome:       outcome,
			PriorityHint:         priority,
			AutonomyRequired:     types.AutonomyMode(autonomy),
		})
		if err != nil {
			return fmt.Errorf("failed to queue intent: %v", err)
		}
		if !added {
			fmt.Printf("Intent %s not queued (rejected or duplicate; see evidence log)\n", id)
			return nil
		}
		fmt.Printf("✓ Intent queued\n")
		fmt.Printf("  ID:           %s\n", id)
		fmt.Printf("  Capabilities: %s\n", strings.Join(capabilities, ", "))
		return nil
	},
}

// Serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pulse loop until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("interval") {
			interval, _ := cmd.Flags().GetInt("interval")
			cfg.Serve.IntervalSeconds = interval
		}
		if cmd.Flags().Changed("watch") {
			watch, _ := cmd.Flags().GetBool("watch")
			cfg.Serve.Watch = watch
		}
		if cmd.Flags().Changed("listen") {
			listen, _ := cmd.Flags().GetString("listen")
			cfg.Serve.ListenAddr = listen
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		c, err := coordinator.New(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Calyx serving station %s (interval %ds). Press Ctrl+C to stop.\n",
			cfg.StationRoot, cfg.Serve.IntervalSeconds)
		if err := c.Serve(ctx); err != nil {
			return err
		}
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

// Autonomy commands
var autonomyCmd = &cobra.Command{
	Use:   "autonomy",
	Short: "Inspect or change the station autonomy mode",
}

var autonomyGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current autonomy mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := coordinator.New(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		fmt.Println(c.State().AutonomyMode())
		return nil
	},
}

var autonomySetCmd = &cobra.Command{
	Use:   "set [suggest|guide|execute]",
	Short: "Set the autonomy mode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := types.AutonomyMode(args[0])
		if !mode.Valid() {
			return fmt.Errorf("mode must be suggest, guide, or execute")
		}

		c, err := coordinator.New(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.State().SetAutonomyMode(mode); err != nil {
			return fmt.Errorf("failed to set autonomy mode: %v", err)
		}
		fmt.Printf("✓ Autonomy mode set to %s\n", mode)
		return nil
	},
}

func init() {
	autonomyCmd.AddCommand(autonomyGetCmd)
	autonomyCmd.AddCommand(autonomySetCmd)
}

// Artifact commands
var artifactCmd = &cobra.Command{
	Use:   "artifact",
	Short: "Manage intent artifacts (the clarification gate)",
}

var artifactAddCmd = &cobra.Command{
	Use:   "add INTENT_ID",
	Short: "Record an intent artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, _ := cmd.Flags().GetString("summary")
		clarified, _ := cmd.Flags().GetBool("clarified")

		c, err := coordinator.New(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Artifacts().Put(&artifact.Artifact{
			IntentID:  args[0],
			Summary:   summary,
			Clarified: clarified,
		}); err != nil {
			return fmt.Errorf("failed to store artifact: %v", err)
		}
		fmt.Printf("✓ Artifact recorded for %s (clarified=%t)\n", args[0], clarified)
		return nil
	},
}

var artifactClarifyCmd = &cobra.Command{
	Use:   "clarify INTENT_ID",
	Short: "Mark an intent artifact as clarified",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := coordinator.New(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Artifacts().SetClarified(args[0]); err != nil {
			return fmt.Errorf("failed to clarify artifact: %v", err)
		}
		fmt.Printf("✓ Artifact %s clarified\n", args[0])
		return nil
	},
}

var artifactListCmd = &cobra.Command{
	Use:   "list",
	Short: "List intent artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := coordinator.New(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		artifacts, err := c.Artifacts().List()
		if err != nil {
			return fmt.Errorf("failed to list artifacts: %v", err)
		}
		if len(artifacts) == 0 {
			fmt.Println("No artifacts recorded")
			return nil
		}
		for _, a := range artifacts {
			state := "unclarified"
			if a.Clarified {
				state = "clarified"
			}
			fmt.Printf("  %-36s %-12s %s\n", a.IntentID, state, a.Summary)
		}
		return nil
	},
}

func init() {
	artifactCmd.AddCommand(artifactAddCmd)
	artifactCmd.AddCommand(artifactClarifyCmd)
	artifactCmd.AddCommand(artifactListCmd)

	artifactAddCmd.Flags().String("summary", "", "One-line description of the clarified work")
	artifactAddCmd.Flags().Bool("clarified", false, "Mark the artifact clarified immediately")
}

// Escalation commands
var escalationsCmd = &cobra.Command{
	Use:   "escalations",
	Short: "Review and resolve escalations",
}

var escalationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List escalations awaiting human review",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		c, err := coordinator.New(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		escalations := c.Escalations().Active()
		if all {
			escalations = c.Escalations().All()
		}
		if len(escalations) == 0 {
			fmt.Println("No escalations")
			return nil
		}
		for _, esc := range escalations {
			state := "open"
			if esc.Resolved {
				state = "resolved"
			}
			fmt.Printf("  %-24s %-8s %-8s intent=%s %s\n",
				esc.ID, state, esc.Severity, esc.Intent.ID, esc.Reason)
		}
		return nil
	},
}

var escalationsResolveCmd = &cobra.Command{
	Use:   "resolve ESCALATION_ID",
	Short: "Resolve an escalation with a decision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		decision, _ := cmd.Flags().GetString("decision")
		if decision == "" {
			return fmt.Errorf("--decision is required")
		}

		c, err := coordinator.New(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Escalations().Resolve(args[0], decision); err != nil {
			return fmt.Errorf("failed to resolve escalation: %v", err)
		}
		fmt.Printf("✓ Escalation %s resolved\n", args[0])
		return nil
	},
}

func init() {
	escalationsCmd.AddCommand(escalationsListCmd)
	escalationsCmd.AddCommand(escalationsResolveCmd)

	escalationsListCmd.Flags().Bool("all", false, "Include resolved escalations")
	escalationsResolveCmd.Flags().String("decision", "", "What was decided or done")
}

func init() {
	addIntentCmd.Flags().String("id", "", "Intent ID (default: random UUID)")
	addIntentCmd.Flags().String("origin", "operator", "Who or what proposed this intent")
	addIntentCmd.Flags().StringSlice("capabilities", nil, "Required capabilities, comma separated")
	addIntentCmd.Flags().String("outcome", "", "Desired outcome description")
	addIntentCmd.Flags().Float64("priority", 0, "Priority hint in [0,100]")
	addIntentCmd.Flags().String("autonomy", "suggest", "Autonomy required: suggest, guide, or execute")

	serveCmd.Flags().Int("interval", 60, "Seconds between timer pulses")
	serveCmd.Flags().Bool("watch", false, "Pulse immediately when heartbeat files change")
	serveCmd.Flags().String("listen", "", "Address for /metrics and health endpoints (empty = disabled)")
}
