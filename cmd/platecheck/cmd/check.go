package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/antzucaro/matchr"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"platecheck/lib/captcha"
	"platecheck/lib/scrapers/csgt"
)

var (
	checkCategory   string
	checkMaxRetries int
	checkSolver     string
	checkImageDir   string
	checkBaseURL    string
	checkDelay      time.Duration
	checkEndpoint   string
	checkAPIKey     string
)

func init() {
	checkCmd.Flags().StringVarP(&checkCategory, "category", "c", "car", "vehicle category (car, motorcycle, electric_bike)")
	checkCmd.Flags().IntVarP(&checkMaxRetries, "max-retries", "r", csgt.DefaultMaxAttempts, "captcha attempts before giving up")
	checkCmd.Flags().StringVarP(&checkSolver, "solver", "s", "ocr", "captcha solver: ocr, manual or api")
	checkCmd.Flags().StringVar(&checkImageDir, "image-dir", "", "directory to keep challenge images in")
	checkCmd.Flags().StringVar(&checkBaseURL, "base-url", "", "override the lookup site base url")
	checkCmd.Flags().DurationVar(&checkDelay, "delay", 2*time.Second, "politeness delay before each request")
	checkCmd.Flags().StringVar(&checkEndpoint, "solver-endpoint", "", "endpoint for the api solver")
	checkCmd.Flags().StringVar(&checkAPIKey, "solver-key", "", "api key for the api solver")
	rootCmd.AddCommand(checkCmd)
}

// fieldRows fixes the display order of extracted values.
var fieldRows = []struct {
	field csgt.Field
	title string
}{
	{csgt.FieldPlate, "Plate"},
	{csgt.FieldColor, "Color"},
	{csgt.FieldCategory, "Vehicle"},
	{csgt.FieldTime, "Time"},
	{csgt.FieldLocation, "Location"},
	{csgt.FieldBehavior, "Violation"},
	{csgt.FieldPaymentStatus, "Status"},
	{csgt.FieldDetectingUnit, "Detected by"},
	{csgt.FieldResolutionLocation, "Resolve at"},
}

var checkCmd = &cobra.Command{
	Use:   "check <plate>",
	Short: "Runs one violation lookup and prints the result.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, err := csgt.ParseCategory(checkCategory)
		if err != nil {
			if suggestion := nearestCategory(checkCategory); suggestion != "" {
				return fmt.Errorf("%w (did you mean %q?)", err, suggestion)
			}
			return err
		}

		solver, err := captcha.NewSolverForMethod(captcha.MethodOptions{
			Method:    checkSolver,
			PromptDir: checkImageDir,
			Endpoint:  checkEndpoint,
			APIKey:    checkAPIKey,
		})
		if err != nil {
			return err
		}

		client, err := csgt.NewClient(csgt.ClientOptions{
			BaseURL:      checkBaseURL,
			RequestDelay: checkDelay,
		})
		if err != nil {
			return err
		}

		workflow := csgt.NewWorkflow(csgt.WorkflowOptions{
			Client:      client,
			Solver:      solver,
			MaxAttempts: checkMaxRetries,
			ImageDir:    checkImageDir,
		})

		query := csgt.Query{Plate: args[0], Category: category}
		fmt.Fprintf(os.Stderr, "looking up %s (%s)...\n", query.NormalizedPlate(), category)
		result := workflow.Run(cmd.Context(), query)

		switch result.Status {
		case csgt.StatusError:
			return fmt.Errorf("lookup failed: %s", result.ErrorDetail)
		case csgt.StatusPartial:
			fmt.Println("the result page did not match any known layout; raw markup follows")
			fmt.Println(result.Record.RawMarkup)
			return nil
		}

		if !result.Record.Found {
			fmt.Printf("no violations found for %s\n", query.NormalizedPlate())
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Field", "Value"})
		for _, row := range fieldRows {
			value, ok := result.Record.Fields[row.field]
			if !ok {
				continue
			}
			t.AppendRow(table.Row{row.title, value})
		}
		t.Render()
		return nil
	},
}

// nearestCategory suggests the closest accepted category name for a
// typo, or empty when nothing is close enough.
func nearestCategory(input string) string {
	best := ""
	bestSimilarity := 0.0
	for _, name := range csgt.CategoryNames() {
		similarity := matchr.JaroWinkler(input, name, false)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = name
		}
	}
	if bestSimilarity < 0.7 {
		return ""
	}
	return best
}
