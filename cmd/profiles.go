package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadscout/internal/scoring"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List available scoring profiles and their weights",
	RunE: func(cmd *cobra.Command, args []string) error {
		profiles, err := scoring.LoadProfiles(cfg.Scoring.ProfilesPath)
		if err != nil {
			return err
		}

		out := make([]scoring.Profile, 0, len(profiles))
		for _, name := range scoring.Names(profiles) {
			out = append(out, profiles[name])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}
