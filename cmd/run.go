package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/frc-county-map/internal/apperr"
	"github.com/sells-group/frc-county-map/internal/config"
	"github.com/sells-group/frc-county-map/internal/pipeline"
	"github.com/sells-group/frc-county-map/internal/progress"
)

var (
	runKey         string
	runYear        int
	runState       string
	runInteractive bool
	rerunReview    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect a season's teams and render the county map",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		o := config.RunOverrides{APIKey: runKey, Year: runYear, State: runState}
		if runInteractive {
			var err error
			o, err = promptOverrides(os.Stdin, os.Stderr, o, cfg.TBA.Key != "", cfg.Run.Year)
			if err != nil {
				return err
			}
		}

		env, err := initRunEnv(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close() //nolint:errcheck

		rc, err := config.NewRunConfig(cfg, env.Regions, o, time.Now())
		if err != nil {
			return err
		}

		p := env.Pipeline(rc)
		res, err := withProgress(ctx, os.Stdout, pollInterval(), p.Run)
		if err != nil {
			return eris.Wrap(err, "run")
		}

		printSummary(os.Stdout, res)
		return nil
	},
}

var rerunCmd = &cobra.Command{
	Use:   "rerun",
	Short: "Rebuild counts and map from an edited review export",
	Long:  "Reads a reviewed team file (CSV or XLSX), keeps any county filled in by hand, resolves the rest, and rewrites the counts and map.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initRunEnv(ctx, "offline")
		if err != nil {
			return err
		}
		defer env.Close() //nolint:errcheck

		rc, err := config.NewRunConfig(cfg, env.Regions, config.RunOverrides{
			Year:    runYear,
			State:   runState,
			Offline: true,
		}, time.Now())
		if err != nil {
			return err
		}

		p := env.Pipeline(rc)
		res, err := withProgress(ctx, os.Stdout, pollInterval(), func(ctx context.Context, r progress.Reporter) (*pipeline.Result, error) {
			return p.Rerun(ctx, rerunReview, r)
		})
		if err != nil {
			return eris.Wrap(err, "rerun")
		}

		printSummary(os.Stdout, res)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runKey, "key", "", "The Blue Alliance API key (default from config or TBA_KEY)")
	runCmd.Flags().IntVar(&runYear, "year", 0, "season year (default from config)")
	runCmd.Flags().StringVar(&runState, "state", "", "state code or name (default from config)")
	runCmd.Flags().BoolVar(&runInteractive, "interactive", false, "prompt for missing key and year")
	rootCmd.AddCommand(runCmd)

	rerunCmd.Flags().StringVar(&rerunReview, "review", "", "edited review export (.csv or .xlsx, required)")
	rerunCmd.Flags().IntVar(&runYear, "year", 0, "season year (default from config)")
	rerunCmd.Flags().StringVar(&runState, "state", "", "state code or name (default from config)")
	_ = rerunCmd.MarkFlagRequired("review")
	rootCmd.AddCommand(rerunCmd)
}

// withProgress runs fn on a background goroutine and prints its progress
// messages to w every interval until it returns.
func withProgress[T any](ctx context.Context, w io.Writer, interval time.Duration, fn func(context.Context, progress.Reporter) (T, error)) (T, error) {
	q := progress.NewQueue()
	pollCtx, stopPoll := context.WithCancel(ctx)

	var out T
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stopPoll()
		var err error
		out, err = fn(gctx, q)
		return err
	})
	g.Go(func() error {
		q.Poll(pollCtx, interval, func(m progress.Message) {
			_, _ = fmt.Fprintln(w, m.String())
		})
		return nil
	})

	err := g.Wait()
	return out, err
}

// promptOverrides asks on in for the values a run still needs. The key is
// only requested when neither a flag nor config supplied one. An empty year
// answer keeps defaultYear.
func promptOverrides(in io.Reader, out io.Writer, o config.RunOverrides, haveKey bool, defaultYear int) (config.RunOverrides, error) {
	sc := bufio.NewScanner(in)
	ask := func(label string) (string, error) {
		_, _ = fmt.Fprint(out, label)
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", eris.Wrap(err, "read prompt")
			}
			return "", nil
		}
		return strings.TrimSpace(sc.Text()), nil
	}

	if o.APIKey == "" && !haveKey {
		key, err := ask("TBA API key: ")
		if err != nil {
			return o, err
		}
		if key == "" {
			return o, apperr.NewConfigError(eris.New("an API key is required"))
		}
		o.APIKey = key
	}

	if o.Year == 0 {
		answer, err := ask(fmt.Sprintf("Season year [%d]: ", defaultYear))
		if err != nil {
			return o, err
		}
		if answer != "" {
			year, err := strconv.Atoi(answer)
			if err != nil {
				return o, apperr.NewConfigError(eris.Errorf("invalid year %q", answer))
			}
			o.Year = year
		}
	}

	return o, nil
}

// printSummary writes the run outcome and phase timings to w.
func printSummary(out io.Writer, res *pipeline.Result) {
	if res == nil {
		return
	}
	zap.L().Debug("run summary", zap.String("run_id", res.RunID), zap.Int("phases", len(res.Phases)))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", truncateID(res.RunID))
	_, _ = fmt.Fprintf(w, "Teams:\t%d\n", len(res.Teams))
	_, _ = fmt.Fprintf(w, "  Resolved:\t%d\n", res.ResolveStats.Resolved)
	_, _ = fmt.Fprintf(w, "  Unresolved:\t%d\n", res.ResolveStats.Unresolved())
	_, _ = fmt.Fprintf(w, "  Postal guesses:\t%d (%d partial)\n", res.ResolveStats.Guesses(), res.ResolveStats.GuessSubstring)
	_, _ = fmt.Fprintf(w, "Counties:\t%d\n", len(res.Counts))
	if len(res.Dropped) > 0 {
		_, _ = fmt.Fprintf(w, "  Without shape:\t%s\n", strings.Join(res.Dropped, ", "))
	}
	for _, ph := range res.Phases {
		_, _ = fmt.Fprintf(w, "Phase %s:\t%s\t%s\n", ph.Name, ph.Status, pipeline.Elapsed(ph.Duration))
	}
	for _, path := range res.Outputs {
		_, _ = fmt.Fprintf(w, "Wrote:\t%s\n", path)
	}
	_ = w.Flush()
}
