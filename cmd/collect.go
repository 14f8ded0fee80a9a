package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/frc-county-map/internal/collect"
	"github.com/sells-group/frc-county-map/internal/config"
	"github.com/sells-group/frc-county-map/internal/export"
	"github.com/sells-group/frc-county-map/internal/metrics"
	"github.com/sells-group/frc-county-map/internal/model"
	"github.com/sells-group/frc-county-map/internal/progress"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect a season's teams and write the roster only",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initRunEnv(ctx, "collect")
		if err != nil {
			return err
		}
		defer env.Close() //nolint:errcheck

		rc, err := config.NewRunConfig(cfg, env.Regions, config.RunOverrides{
			APIKey: runKey,
			Year:   runYear,
			State:  runState,
		}, time.Now())
		if err != nil {
			return err
		}

		client := newTBAClient(rc, env.Store, metrics.New())

		type collected struct {
			records []model.TeamRecord
			stats   collect.Stats
		}
		res, err := withProgress(ctx, os.Stdout, pollInterval(), func(ctx context.Context, r progress.Reporter) (collected, error) {
			records, stats, err := collect.New(client, env.Regions, collect.WithReporter(r)).Collect(ctx, rc.Year, rc.State.Code)
			return collected{records: records, stats: stats}, err
		})
		if err != nil {
			return eris.Wrap(err, "collect")
		}

		path := rc.Outputs().Roster
		if err := export.WriteRoster(path, res.records); err != nil {
			return err
		}

		fmt.Printf("%d %s teams from %d events (%d visitors dropped); wrote %s\n",
			res.stats.Teams, rc.State.Code, res.stats.StateEvents, res.stats.OutOfState, path)
		return nil
	},
}

func init() {
	collectCmd.Flags().StringVar(&runKey, "key", "", "The Blue Alliance API key (default from config or TBA_KEY)")
	collectCmd.Flags().IntVar(&runYear, "year", 0, "season year (default from config)")
	collectCmd.Flags().StringVar(&runState, "state", "", "state code or name (default from config)")
	rootCmd.AddCommand(collectCmd)
}
