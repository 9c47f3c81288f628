package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tranmanhhung/sn111/internal/predictor"
)

var (
	combosTop       int
	combosPlaceType string
	combosLocation  string
	combosFormat    string
)

// CombinationsResponse is the JSON shape of the combinations command.
type CombinationsResponse struct {
	Stats        predictor.Stats         `json:"stats"`
	Count        int                     `json:"count"`
	Combinations []predictor.Combination `json:"combinations"`
}

var combinationsCmd = &cobra.Command{
	Use:   "combinations",
	Short: "List predicted query combinations",
	Long: `List the query combinations the predictor expects validators to ask
about. The space is the cross product of the place-type and location
vocabularies, priority locations first.

Examples:
  sn111 combinations --top 20
  sn111 combinations --place-type restaurant --format human
  sn111 combinations --location "New York, NY"
  sn111 combinations --vocabulary custom.toml`,
	RunE: runCombinations,
}

func init() {
	rootCmd.AddCommand(combinationsCmd)

	combinationsCmd.Flags().IntVar(&combosTop, "top", 0, "Limit to the first N combinations (0 = all)")
	combinationsCmd.Flags().StringVar(&combosPlaceType, "place-type", "", "Only combinations for this place type")
	combinationsCmd.Flags().StringVar(&combosLocation, "location", "", "Only combinations for this location")
	combinationsCmd.Flags().StringVar(&combosFormat, "format", "json", "Output format (json, human)")
	combinationsCmd.Flags().StringVar(&vocabularyPath, "vocabulary", "",
		"Vocabulary file for the combination predictor (default: embedded)")
}

func runCombinations(cmd *cobra.Command, args []string) error {
	pred, err := newPredictor()
	if err != nil {
		return err
	}

	combos := selectCombinations(pred)
	if combosTop > 0 && combosTop < len(combos) {
		combos = combos[:combosTop]
	}

	switch combosFormat {
	case "human":
		printCombinationsHuman(combos, pred.Stats())
	case "json":
		printJSON(CombinationsResponse{
			Stats:        pred.Stats(),
			Count:        len(combos),
			Combinations: combos,
		})
	default:
		return fmt.Errorf("unknown format %q (want json or human)", combosFormat)
	}
	return nil
}

// selectCombinations narrows the space by the filter flags. Both filters
// together intersect.
func selectCombinations(pred *predictor.Predictor) []predictor.Combination {
	switch {
	case combosPlaceType != "" && combosLocation != "":
		var out []predictor.Combination
		for _, c := range pred.ForPlaceType(combosPlaceType) {
			if c.Location == combosLocation {
				out = append(out, c)
			}
		}
		return out
	case combosPlaceType != "":
		return pred.ForPlaceType(combosPlaceType)
	case combosLocation != "":
		return pred.ForLocation(combosLocation)
	default:
		return pred.Combinations()
	}
}

func printCombinationsHuman(combos []predictor.Combination, stats predictor.Stats) {
	if len(combos) == 0 {
		fmt.Println("No combinations match the given filters.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PLACE TYPE\tLOCATION\tHASH\tPRIORITY")
	for _, c := range combos {
		priority := "-"
		if c.Priority {
			priority = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.PlaceType, c.Location, c.Hash, priority)
	}
	w.Flush()

	fmt.Printf("\nShowing %d of %d combinations (%d place types x %d locations, %d priority)\n",
		len(combos), stats.Combinations, stats.PlaceTypes, stats.Locations, stats.Priority)
}
