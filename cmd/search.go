package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadscout/internal/model"
)

var (
	searchVertical  string
	searchCity      string
	searchState     string
	searchRadiusKM  float64
	searchTarget    int
	searchQueryFile string
)

// rankedLead is the search output row: the lead joined with the business it
// points at.
type rankedLead struct {
	Rank           int             `json:"rank"`
	Score          int             `json:"score"`
	Business       *model.Business `json:"business"`
	Subscores      model.Subscores `json:"subscores"`
	Justifications []string        `json:"justifications"`
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Discover, enrich, and score leads for a query",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		query, err := buildQuery()
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Pipeline.Submit(ctx, query)
		if err != nil {
			return eris.Wrap(err, "submit query")
		}

		if err := env.Pipeline.Run(ctx, job); err != nil {
			return eris.Wrap(err, "run job")
		}

		leads, err := env.Store.ListLeads(ctx, job.ID)
		if err != nil {
			return eris.Wrap(err, "list leads")
		}
		if err := orderLeads(ctx, env.Store, query, leads); err != nil {
			return err
		}

		ranked := make([]rankedLead, 0, len(leads))
		for i := range leads {
			b, err := env.Store.GetBusiness(ctx, leads[i].BusinessID)
			if err != nil {
				return eris.Wrapf(err, "load business %s", leads[i].BusinessID)
			}
			ranked = append(ranked, rankedLead{
				Rank:           leads[i].Rank,
				Score:          leads[i].Score,
				Business:       b,
				Subscores:      leads[i].Subscores,
				Justifications: leads[i].Justifications,
			})
		}

		zap.L().Info("search complete",
			zap.String("job_id", job.ID),
			zap.Int("leads", len(ranked)))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			JobID string       `json:"job_id"`
			Leads []rankedLead `json:"leads"`
		}{JobID: job.ID, Leads: ranked})
	},
}

// buildQuery assembles the query from --query-file when given, otherwise
// from the individual flags.
func buildQuery() (model.Query, error) {
	if searchQueryFile != "" {
		data, err := os.ReadFile(searchQueryFile)
		if err != nil {
			return model.Query{}, eris.Wrap(err, "read query file")
		}
		var q model.Query
		if err := json.Unmarshal(data, &q); err != nil {
			return model.Query{}, eris.Wrap(err, "parse query file")
		}
		return q, nil
	}

	return model.Query{
		Vertical:   searchVertical,
		Geo:        model.Geo{City: searchCity, State: searchState, RadiusKM: searchRadiusKM},
		ResultSize: model.ResultSize{Target: searchTarget},
	}, nil
}

func init() {
	searchCmd.Flags().StringVar(&searchVertical, "vertical", "", "business vertical, e.g. dentist")
	searchCmd.Flags().StringVar(&searchCity, "city", "", "city to search in")
	searchCmd.Flags().StringVar(&searchState, "state", "", "two-letter state code")
	searchCmd.Flags().Float64Var(&searchRadiusKM, "radius", 25, "search radius in km")
	searchCmd.Flags().IntVar(&searchTarget, "target", 0, "candidate budget (default from server)")
	searchCmd.Flags().StringVar(&searchQueryFile, "query-file", "", "path to a structured query JSON file (overrides other flags)")
	rootCmd.AddCommand(searchCmd)
}
