package main

import (
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"volley-club/internal/config"
	"volley-club/internal/game"
	"volley-club/internal/render"

	"github.com/spf13/cobra"
)

var (
	simConfigPath string
	simSeconds    float64
	simSeed       int64
	simEventsPath string
	simPNGPath    string
	simTickRate   int
	simLauncher   bool
	simLeaders    int
)

var rootCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a headless volleyball match and report the result",
	Long: `Run the match engine without a wall clock for a fixed amount of simulated
time, then print the score, arbitration counters and top contributors.

Examples:
  simulate --seconds 60 --seed 7
  simulate --config tuning.yaml --events out.jsonl.zst --png court.png`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runSimulate,
}

func init() {
	rootCmd.Flags().StringVarP(&simConfigPath, "config", "c", "", "Tuning YAML file (defaults when empty)")
	rootCmd.Flags().Float64VarP(&simSeconds, "seconds", "s", 60, "Simulated seconds to run")
	rootCmd.Flags().Int64Var(&simSeed, "seed", 0, "Random seed (overrides the tuning file, 0 = keep)")
	rootCmd.Flags().StringVarP(&simEventsPath, "events", "e", "", "Write the event log to this file (.zst compresses)")
	rootCmd.Flags().StringVar(&simPNGPath, "png", "", "Save a court map of the final state")
	rootCmd.Flags().IntVar(&simTickRate, "tick-rate", 0, "Ticks per simulated second (overrides the tuning file)")
	rootCmd.Flags().BoolVar(&simLauncher, "launcher", false, "Enable the automatic ball launcher")
	rootCmd.Flags().IntVar(&simLeaders, "leaders", 5, "Number of top contributors to print")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if simSeconds <= 0 {
		return fmt.Errorf("--seconds must be positive, got %v", simSeconds)
	}

	appConfig := config.Default()
	if simConfigPath != "" {
		loaded, err := config.LoadFile(simConfigPath)
		if err != nil {
			return err
		}
		appConfig = loaded
	}
	if cmd.Flags().Changed("seed") {
		appConfig.Match.Seed = simSeed
	}
	if cmd.Flags().Changed("launcher") {
		appConfig.Match.Launcher.Enabled = simLauncher
	}
	if cmd.Flags().Changed("tick-rate") {
		appConfig.Simulation.TickRate = simTickRate
	}
	if err := appConfig.Validate(); err != nil {
		return err
	}

	tickRate := appConfig.Simulation.TickRate
	engine, err := game.NewEngine(appConfig.Match, tickRate)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	if simEventsPath != "" {
		if err := engine.StartEventLog(simEventsPath, appConfig.EventLog.RateLimit); err != nil {
			return fmt.Errorf("event log: %w", err)
		}
		defer engine.StopEventLog()
	}

	dt := 1.0 / float64(tickRate)
	ticks := int(simSeconds*float64(tickRate) + 0.5)
	if ticks < 1 {
		ticks = 1
	}

	started := time.Now()
	for i := 0; i < ticks; i++ {
		engine.Advance(dt)
	}
	elapsed := time.Since(started)

	log.Printf("🏐 Simulated %.1fs (%d ticks) in %v", simSeconds, ticks, elapsed.Round(time.Millisecond))

	out := cmd.OutOrStdout()
	board := engine.Scoreboard(simLeaders)
	fmt.Fprintf(out, "Score: red %d : %d blue after %d rallies\n", board.Red, board.Blue, board.Rally)

	stats := engine.Stats()
	fmt.Fprintln(out, "Arbitration:")
	for _, line := range countLines(stats.Arbitrations) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, "Touches:")
	for _, line := range countLines(stats.Touches) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "Anomalies: %d invalid geometry, %d no valid target, %d lifecycle faults\n",
		stats.InvalidGeometry, stats.NoValidTarget, stats.LifecycleFaults)

	if len(board.Leaders) > 0 {
		fmt.Fprintln(out, "Top contributors:")
		for _, entry := range board.Leaders {
			fmt.Fprintf(out, "  %d. %-10s %-4s %d touches\n", entry.Rank, entry.Name, entry.Team, entry.Touches)
		}
	}

	if simEventsPath != "" {
		logStats := engine.GetEventLogStats()
		fmt.Fprintf(out, "Event log: %s (%d written, %d dropped)\n", simEventsPath, logStats.Total, logStats.Dropped)
	}

	if simPNGPath != "" {
		clone := engine.GetSnapshot().Clone()
		if err := render.SavePNG(simPNGPath, &clone, engine.Court(), render.DefaultOptions()); err != nil {
			return err
		}
		fmt.Fprintf(out, "Court map: %s\n", simPNGPath)
	}

	return nil
}

type outcomeKey interface {
	comparable
	fmt.Stringer
}

// countLines formats outcome counters sorted by name
func countLines[K outcomeKey](counts map[K]uint64) []string {
	lines := make([]string, 0, len(counts))
	for k, v := range counts {
		lines = append(lines, fmt.Sprintf("  %-22s %d", k.String(), v))
	}
	sort.Strings(lines)
	return lines
}
