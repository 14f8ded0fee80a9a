package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/frc-county-map/internal/config"
	"github.com/sells-group/frc-county-map/internal/geometry"
)

var geometryCmd = &cobra.Command{
	Use:   "geometry",
	Short: "Download and inspect county boundary files",
}

var geometryFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download a county boundary file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		url, _ := cmd.Flags().GetString("url")
		dest, _ := cmd.Flags().GetString("dest")
		if url == "" {
			url = cfg.Geometry.URL
		}
		if dest == "" {
			dest = cfg.Geometry.Path
		}

		changed, err := geometry.Fetch(cmd.Context(), newFetcher(), url, dest)
		if err != nil {
			return err
		}
		if !changed {
			fmt.Println(dest, "is up to date")
			return nil
		}
		fmt.Println("Wrote", dest)
		return nil
	},
}

var geometryFieldsCmd = &cobra.Command{
	Use:   "fields [path]",
	Short: "List attribute fields and the detected county name field",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Geometry.Path
		if len(args) == 1 {
			path = args[0]
		}
		nameFields := cfg.Geometry.NameFields
		if len(nameFields) == 0 {
			nameFields = config.DefaultNameFields
		}

		fields, nameField, err := geometry.Fields(path, nameFields)
		if err != nil {
			return err
		}
		formatFields(os.Stdout, fields, nameField)
		return nil
	},
}

// formatFields lists fields one per line, marking the name field with "*".
func formatFields(w io.Writer, fields []string, nameField string) {
	for _, f := range fields {
		mark := " "
		if f == nameField {
			mark = "*"
		}
		_, _ = fmt.Fprintf(w, "%s %s\n", mark, f)
	}
	if nameField == "" {
		_, _ = fmt.Fprintln(w, "no county name field detected")
	}
}

func init() {
	geometryFetchCmd.Flags().String("url", "", "boundary file URL, http(s) or ftp (default from config)")
	geometryFetchCmd.Flags().String("dest", "", "destination path (default geometry.path)")

	geometryCmd.AddCommand(geometryFetchCmd)
	geometryCmd.AddCommand(geometryFieldsCmd)
	rootCmd.AddCommand(geometryCmd)
}
