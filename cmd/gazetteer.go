package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/frc-county-map/internal/apperr"
	"github.com/sells-group/frc-county-map/internal/gazetteer"
	"github.com/sells-group/frc-county-map/internal/region"
	"github.com/sells-group/frc-county-map/internal/resolve"
)

var gazetteerCmd = &cobra.Command{
	Use:   "gazetteer",
	Short: "Download and query the postal gazetteer",
}

var gazetteerFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the GeoNames US postal dump",
	RunE: func(cmd *cobra.Command, _ []string) error {
		url, _ := cmd.Flags().GetString("url")
		dest, _ := cmd.Flags().GetString("dest")
		if url == "" {
			url = cfg.Gazetteer.URL
		}
		if dest == "" {
			dest = cfg.Gazetteer.Path
		}

		changed, err := gazetteer.Fetch(cmd.Context(), newFetcher(), url, dest)
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

var gazetteerLookupCmd = &cobra.Command{
	Use:   "lookup <postal-code>",
	Short: "Show the county for a postal code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := loadResolver(cmd)
		if err != nil {
			return err
		}

		name, ok := r.ZipToCounty(args[0])
		if !ok {
			fmt.Fprintf(os.Stderr, "No county for %s.\n", args[0])
			return nil
		}
		fmt.Println(name)
		return nil
	},
}

var gazetteerGuessCmd = &cobra.Command{
	Use:   "guess <city> <state>",
	Short: "Guess a postal code and county from city and state",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := loadResolver(cmd)
		if err != nil {
			return err
		}

		zip, match, ok := r.GuessZip(args[0], args[1])
		if !ok {
			fmt.Fprintf(os.Stderr, "No postal code found for %s, %s.\n", args[0], args[1])
			return nil
		}
		name, _ := r.ZipToCounty(zip)
		fmt.Printf("%s\t%s\t%s\n", zip, match, name)
		return nil
	},
}

func loadResolver(cmd *cobra.Command) (*resolve.Resolver, error) {
	regions, err := region.LoadFile(cfg.Region.File)
	if err != nil {
		return nil, apperr.NewConfigError(err)
	}
	gaz, err := gazetteer.Load(cmd.Context(), cfg.Gazetteer.Path)
	if err != nil {
		return nil, err
	}
	return resolve.New(gaz, regions), nil
}

func init() {
	gazetteerFetchCmd.Flags().String("url", "", "archive or dump URL (default from config)")
	gazetteerFetchCmd.Flags().String("dest", "", "destination path (default gazetteer.path)")

	gazetteerCmd.AddCommand(gazetteerFetchCmd)
	gazetteerCmd.AddCommand(gazetteerLookupCmd)
	gazetteerCmd.AddCommand(gazetteerGuessCmd)
	rootCmd.AddCommand(gazetteerCmd)
}
