// Package main is the entry point for the eaept CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/eaeptdev/eaept/internal/config"
	"github.com/eaeptdev/eaept/internal/executor"
	"github.com/eaeptdev/eaept/internal/history"
	"github.com/eaeptdev/eaept/internal/log"
	"github.com/eaeptdev/eaept/internal/orchestrator"
	"github.com/eaeptdev/eaept/internal/phase"
	"github.com/eaeptdev/eaept/internal/session"
	"github.com/eaeptdev/eaept/internal/workflow"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "eaept",
		Short: "eaept drives an AI coding session through the EAEPT workflow",
		Long: `eaept sequences an AI coding session through the fixed
Express -> Ask -> Explore -> Plan -> Code -> Test workflow. After each phase
it decides whether to auto-advance or pause based on completion confidence,
and triggers a context optimization when the session's token budget crosses
the phase's threshold. Workflow state is persisted under config/ so an
interrupted session can be resumed.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(charmlog.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(continueCmd())
	rootCmd.AddCommand(phaseCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(historyCmd())

	return rootCmd.Execute()
}

func startCmd() *cobra.Command {
	var manual bool

	cmd := &cobra.Command{
		Use:   "start <task description>",
		Short: "Start a new workflow for a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, sched, err := buildScheduler()
			if err != nil {
				return err
			}

			task := strings.Join(args, " ")
			auto := cfg.DefaultAutoExecute && !manual

			summary, err := sched.StartSession(cmd.Context(), task, auto)
			archiveIfFinished(cfg, sched)
			if err != nil {
				return err
			}

			fmt.Print(renderStatus(sched.State()))
			if summary != nil {
				fmt.Print(renderSummary(summary))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&manual, "manual", false,
		"Execute only the first phase, then stop for manual stepping")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current workflow status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sched, err := buildScheduler()
			if err != nil {
				return err
			}
			fmt.Print(renderStatus(sched.State()))
			return nil
		},
	}
}

func continueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "continue",
		Short: "Resume a paused workflow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, sched, err := buildScheduler()
			if err != nil {
				return err
			}

			summary, err := sched.Resume(cmd.Context())
			archiveIfFinished(cfg, sched)
			if err != nil {
				return err
			}

			fmt.Print(renderStatus(sched.State()))
			if summary != nil {
				fmt.Print(renderSummary(summary))
			}
			return nil
		},
	}
}

func phaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "phase <name>",
		Short: "Execute a single phase by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, sched, err := buildScheduler()
			if err != nil {
				return err
			}

			err = sched.ExecutePhase(cmd.Context(), args[0])
			archiveIfFinished(cfg, sched)
			if errors.Is(err, phase.ErrUnknownPhase) {
				return fmt.Errorf("%w (valid phases: %s)", err, phaseNames())
			}
			if err != nil {
				return err
			}

			fmt.Print(renderStatus(sched.State()))
			return nil
		},
	}
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard the persisted workflow state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sched, err := buildScheduler()
			if err != nil {
				return err
			}
			if err := sched.Reset(); err != nil {
				return err
			}
			fmt.Println("workflow state reset")
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently finished sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			db, err := history.New(cfg.HistoryDBPath)
			if err != nil {
				return err
			}
			defer func() { log.CloseError("history database", db.Close()) }()

			records, err := db.List(limit)
			if err != nil {
				return err
			}
			fmt.Print(renderHistory(records))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of sessions to show")
	return cmd
}

// buildScheduler loads configuration and wires the scheduler with its
// collaborators. The monitor and trigger are optional; without them the
// budget check is a no-op.
func buildScheduler() (*config.Config, *workflow.Scheduler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	catalog := phase.NewCatalog()
	overrides, err := phase.LoadOverrides(cfg.PhaseOverridesPath)
	if err != nil {
		log.Warn("could not load phase overrides, using defaults", "error", err)
	} else if len(overrides) > 0 {
		catalog.ApplyOverrides(overrides)
	}

	var phaseExecutor workflow.PhaseExecutor = executor.Static{}
	if cfg.ExecutorCommand != "" {
		phaseExecutor = executor.NewCommand(cfg.ExecutorCommand)
	}

	var monitor workflow.BudgetMonitor
	if cfg.MonitorURL != "" {
		monitor = orchestrator.NewHTTPMonitor(cfg.MonitorURL)
	}

	var trigger workflow.OptimizationTrigger
	if cfg.OptimizeCommand != "" {
		trigger = orchestrator.NewCommandTrigger(cfg.OptimizeCommand)
	}

	sched, err := workflow.New(workflow.Config{TotalBudget: cfg.TotalBudget}, workflow.Deps{
		Catalog:  catalog,
		Store:    session.NewStore(cfg.StatePath()),
		Executor: phaseExecutor,
		Monitor:  monitor,
		Trigger:  trigger,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, sched, nil
}

// archiveIfFinished records the session in the history database once it has
// reached a terminal status. Archiving is best-effort.
func archiveIfFinished(cfg *config.Config, sched *workflow.Scheduler) {
	state := sched.State()
	if state.Status != session.StatusCompleted && state.Status != session.StatusError {
		return
	}

	db, err := history.New(cfg.HistoryDBPath)
	if err != nil {
		log.Warn("could not open history database", "error", err)
		return
	}
	defer func() { log.CloseError("history database", db.Close()) }()

	summary := sched.Summary()
	record := &history.Record{
		ID:                   uuid.New().String(),
		Task:                 state.Task,
		Status:               string(state.Status),
		PhasesCompleted:      summary.PhasesCompleted,
		TotalDurationMinutes: summary.TotalDurationMinutes,
		TotalResourceUsage:   summary.TotalResourceUsage,
		AverageConfidence:    summary.AverageConfidence,
		AverageQuality:       summary.AverageQuality,
		Optimizations:        summary.Optimizations,
		StartedAt:            state.SessionStart,
		FinishedAt:           time.Now(),
	}
	if err := db.Insert(record); err != nil {
		log.Warn("could not archive session", "error", err)
	}
}

// phaseNames lists the valid phase names for error messages.
func phaseNames() string {
	names := make([]string, len(phase.Order))
	for i, p := range phase.Order {
		names[i] = p.String()
	}
	return strings.Join(names, ", ")
}
