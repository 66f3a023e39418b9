package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/srg/blradar/internal/filter"
	"github.com/srg/blradar/internal/profile"
)

// profilesCmd represents the profiles command
var profilesCmd = &cobra.Command{
	Use:   "profiles <file>",
	Short: "Validate and list detection profiles",
	Long: `Load a profile file, validate every filter in it and list the profiles.
With --format json the normalised file is printed, ready to be saved back.`,
	Args: cobra.ExactArgs(1),
	RunE: runProfiles,
}

var profilesFormat string

func init() {
	profilesCmd.Flags().StringVarP(&profilesFormat, "format", "f", "table", "Output format (table, json)")
}

func runProfiles(cmd *cobra.Command, args []string) error {
	if profilesFormat != "table" && profilesFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", profilesFormat)
	}

	cmd.SilenceUsage = true

	set, err := profile.Load(args[0])
	if err != nil {
		return err
	}

	if profilesFormat == "json" {
		data, err := json.MarshalIndent(set, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tACTIVE\tFILTER")
	for _, p := range set.All() {
		active := "no"
		if p.Active {
			active = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.DisplayName(), active, filter.String(p.Filter))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n%d profiles, %d active\n", set.Len(), len(set.Active()))
	return nil
}
