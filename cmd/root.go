package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/frc-county-map/internal/apperr"
	"github.com/sells-group/frc-county-map/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "frc-county-map",
	Short: "Map FRC teams by county",
	Long:  "Collects one season's FRC teams from The Blue Alliance, resolves each team to a county, and renders a county choropleth with CSV and XLSX exports.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return apperr.NewConfigError(eris.Wrap(err, "load config"))
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceErrors: true,
	SilenceUsage:  true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		zap.L().Error("command failed", zap.String("kind", apperr.Kind(err)), zap.Error(err))
		fmt.Fprintln(os.Stderr, eris.ToString(err, true))
		os.Exit(apperr.ExitCode(err))
	}
}
