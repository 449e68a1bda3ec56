package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dpe-search/internal/model"
	"github.com/sells-group/dpe-search/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search DPE records matching property criteria",
	Long:  "Resolves the commune, queries the current DPE dataset tier by tier, falls back to the legacy dataset for weak matches, and prints ranked results.",
	Example: `  dpe-search search --commune 75001 --surface 75 --conso 150
  dpe-search search --commune "Saint-Étienne" --energy-class D --type maison --format json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		req, err := requestFromFlags(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), searchTimeout())
		defer cancel()

		env, err := initSearch(ctx, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		resp, err := env.Service.Search(ctx, req)
		if err != nil {
			return eris.Wrap(err, "search")
		}

		limit, _ := cmd.Flags().GetInt("limit")
		if limit > 0 {
			resp.Results = search.Cap(resp.Results, limit)
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}

		if len(resp.Results) == 0 {
			fmt.Fprintln(os.Stderr, "No matching DPE found.")
			return nil
		}
		formatResults(os.Stdout, resp)
		return nil
	},
}

// requestFromFlags builds a validated request from the search flags.
func requestFromFlags(cmd *cobra.Command) (model.SearchRequest, error) {
	get := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	raw := model.RawRequest{
		Commune:             get("commune"),
		SurfaceHabitable:    get("surface"),
		ConsommationEnergie: get("conso"),
		EnergyClass:         get("energy-class"),
		EmissionGES:         get("ges"),
		GESClass:            get("ges-class"),
		TypeBien:            get("type"),
	}
	if strings.TrimSpace(raw.Commune) == "" {
		return model.SearchRequest{}, eris.New("--commune is required")
	}
	return model.NewSearchRequest(raw)
}

func searchTimeout() time.Duration {
	if cfg == nil || cfg.Search.TimeoutSecs <= 0 {
		return 45 * time.Second
	}
	return time.Duration(cfg.Search.TimeoutSecs) * time.Second
}

func formatResults(out io.Writer, resp *search.Response) {
	if resp.Commune != nil {
		_, _ = fmt.Fprintf(out, "Commune: %s (%s) via %s, tier %s\n\n",
			resp.Commune.Name, resp.Commune.PostalCode, resp.Commune.Source, resp.Tier)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SCORE\tNUMERO_DPE\tADDRESS\tSURFACE\tCONSO\tCLASS\tGES\tDIST_KM\tSOURCE")
	_, _ = fmt.Fprintln(w, "-----\t----------\t-------\t-------\t-----\t-----\t---\t-------\t------")

	for _, r := range resp.Results {
		source := string(r.Tier)
		if r.IsLegacyData {
			source = "legacy/" + source
		}
		if r.HasIncompleteData {
			source += " (incomplete)"
		}
		address := r.Address
		if len(address) > 40 {
			address = address[:37] + "..."
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.MatchScore,
			r.ID,
			address,
			optional(r.SurfaceHabitable),
			optional(r.ConsommationEnergie),
			r.EnergyClass,
			optional(r.EmissionGES),
			optional(r.Distance),
			source,
		)
	}
	_ = w.Flush()
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func init() {
	f := searchCmd.Flags()
	f.String("commune", "", "postal code or commune name (required)")
	f.String("surface", "", "living area in m², e.g. 75, <80, >50")
	f.String("conso", "", "primary energy use in kWh/m²/an, e.g. 150, <200")
	f.String("energy-class", "", "energy label A-G (excludes --conso)")
	f.String("ges", "", "GHG emissions in kgCO2/m²/an, e.g. 30, <40")
	f.String("ges-class", "", "GHG label A-G (excludes --ges)")
	f.String("type", "", "property type: maison, appartement, autre")
	f.String("format", "table", "output format: table or json")
	f.Int("limit", 0, "maximum results to print (default from config)")
	rootCmd.AddCommand(searchCmd)
}
