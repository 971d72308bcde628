package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/unklstewy/flighttrail/internal/auth"
	"github.com/unklstewy/flighttrail/internal/history"
	"github.com/unklstewy/flighttrail/pkg/flight"
)

var (
	collectOnce  bool
	listHours    float64
	trackHours   float64
	regionFilter string
	tokenRole    string
	tokenTTL     time.Duration
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Poll the feed and store positions",
	Long: "collect runs collection jobs on the stored refresh interval until interrupted.\n" +
		"With --once it runs a single job and prints its summary.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if !collectOnce {
			a.Collector.Run(cmd.Context())
			return nil
		}

		summary := a.Collector.RunOnce(cmd.Context())
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), summary)
		}
		fmt.Fprint(cmd.OutOrStdout(), renderSummary(summary))
		if !summary.Success {
			return errors.New("job did not complete")
		}
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete records older than the retention period",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if a.DB == nil {
			return errors.New("database is disabled")
		}

		deleted := a.Sweeper.Sweep(cmd.Context())
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), map[string]int64{"deleted": deleted})
		}
		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("Deleted %d expired records", deleted)))
		return nil
	},
}

var trajectoriesCmd = &cobra.Command{
	Use:   "trajectories",
	Short: "List reconstructed trajectories",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkHours(listHours); err != nil {
			return err
		}
		var region *flight.Region
		if regionFilter != "" {
			r, err := flight.ParseRegion(regionFilter)
			if err != nil {
				return err
			}
			region = &r
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		trajectories := a.Reconstructor.Reconstruct(cmd.Context(), region, listHours)
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), trajectories)
		}
		fmt.Fprint(cmd.OutOrStdout(), renderTrajectories(trajectories, listHours))
		return nil
	},
}

var trajectoryCmd = &cobra.Command{
	Use:   "trajectory <icao24>",
	Short: "Show one aircraft's trajectory and current position",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkHours(trackHours); err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		trajectory, ok := a.Reconstructor.ReconstructOne(cmd.Context(), args[0], trackHours)
		if !ok {
			return fmt.Errorf("no trajectory for %s in the last %g hours", args[0], trackHours)
		}

		var current *flight.Point
		if p, ok := flight.Extrapolate(trajectory, time.Now()); ok {
			current = &p
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), map[string]any{"trajectory": trajectory, "position": current})
		}
		fmt.Fprint(cmd.OutOrStdout(), renderTrajectory(trajectory, current))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <icao24>",
	Short: "List stored records for one aircraft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkHours(trackHours); err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		records := a.Reconstructor.History(cmd.Context(), args[0], trackHours)
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), records)
		}
		fmt.Fprint(cmd.OutOrStdout(), renderHistory(args[0], records))
		return nil
	},
}

// checkHours rejects --hours values outside (0, history.MaxHoursBack].
func checkHours(hours float64) error {
	if !history.ValidHours(hours) {
		return fmt.Errorf("--hours must be greater than 0 and at most %d, got %g", history.MaxHoursBack, hours)
	}
	return nil
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change runtime settings",
	RunE:  showSettings,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show runtime settings",
	RunE:  showSettings,
}

func showSettings(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	settings := a.Settings.Get(cmd.Context())
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), settings)
	}
	fmt.Fprint(cmd.OutOrStdout(), renderSettings(settings))
	return nil
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a runtime setting",
	Long: "set stores a setting in the ledger. Keys: refresh_interval (seconds, 0 pauses\n" +
		"polling), retention_days (at least 1), client_tracking (true or false).",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Settings.Set(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderSettings(a.Settings.Get(cmd.Context())))
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ledger statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if a.DB == nil {
			return errors.New("database is disabled")
		}

		stats, err := a.DB.GetStats(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), stats)
		}
		fmt.Fprint(cmd.OutOrStdout(), renderStats(stats))
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Mint a signed token for the job trigger or settings API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ttl := tokenTTL
		if ttl == 0 {
			ttl = cfg.Auth.TokenTTL()
		}

		svc := auth.NewService(auth.Config{Secret: cfg.Auth.CronSecret, TokenDuration: ttl})
		token, err := svc.GenerateToken(args[0], tokenRole)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	collectCmd.Flags().BoolVar(&collectOnce, "once", false, "Run a single job and exit")

	trajectoriesCmd.Flags().Float64Var(&listHours, "hours", 6, "Look-back window in hours")
	trajectoriesCmd.Flags().StringVar(&regionFilter, "region", "", "Only this region (usa, europe, eastAsia)")
	trajectoryCmd.Flags().Float64Var(&trackHours, "hours", 24, "Look-back window in hours")
	historyCmd.Flags().Float64Var(&trackHours, "hours", 24, "Look-back window in hours")

	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)

	tokenCmd.Flags().StringVar(&tokenRole, "role", auth.RoleCron, "Token role (cron or admin)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default from config)")
}
