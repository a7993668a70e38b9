package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadscout/internal/scoring"
)

var (
	rescoreProfile string
	rescoreWeights []int
)

var rescoreCmd = &cobra.Command{
	Use:   "rescore <job-id>",
	Short: "Re-score a completed job's leads with a different profile",
	Long:  "Re-runs scoring over a completed job's stored signals. Nothing is re-discovered or re-fetched; scores, subscores, and ranks are rewritten in place. Pass either --profile or explicit --weights.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		profile, err := resolveRescoreProfile(env.Profiles)
		if err != nil {
			return err
		}

		updated, err := env.Pipeline.RescoreWith(ctx, args[0], profile)
		if err != nil {
			return eris.Wrapf(err, "rescore job %s", args[0])
		}

		zap.L().Info("rescore complete",
			zap.String("job_id", args[0]),
			zap.String("profile", profile.Name),
			zap.Int("updated", updated))

		leads, err := env.Store.ListLeads(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "list leads")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(leads)
	},
}

// resolveRescoreProfile returns the profile to score with. Explicit
// --weights build an ad-hoc profile; otherwise --profile must name a loaded
// one.
func resolveRescoreProfile(profiles map[string]scoring.Profile) (scoring.Profile, error) {
	if len(rescoreWeights) > 0 {
		if rescoreProfile != "" {
			return scoring.Profile{}, eris.New("pass either --profile or --weights, not both")
		}
		if len(rescoreWeights) != 4 {
			return scoring.Profile{}, eris.New("--weights needs four values: icp,pain,reachability,risk")
		}
		custom := scoring.Profile{
			Name: "custom",
			Weights: scoring.Weights{
				ICP:            rescoreWeights[0],
				Pain:           rescoreWeights[1],
				Reachability:   rescoreWeights[2],
				ComplianceRisk: rescoreWeights[3],
			},
		}
		if err := custom.Validate(); err != nil {
			return scoring.Profile{}, err
		}
		return custom, nil
	}
	if rescoreProfile == "" {
		return scoring.Profile{}, eris.New("one of --profile or --weights is required")
	}
	return scoring.Lookup(profiles, rescoreProfile)
}

func init() {
	rescoreCmd.Flags().StringVar(&rescoreProfile, "profile", "", "scoring profile name")
	rescoreCmd.Flags().IntSliceVar(&rescoreWeights, "weights", nil, "explicit weights icp,pain,reachability,risk (must sum to 100)")
	rootCmd.AddCommand(rescoreCmd)
}
