// churnctl inspects churn model bundles and scores customers offline.
//
// Usage:
//
//	churnctl inspect --bundle internal/artifact/mtn_churn_lr.json
//	churnctl validate --bundle candidate.yaml
//	churnctl score --input customer.json
//	churnctl incidents --db data/churn.db
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"churn-predictor/backend/internal/advice"
	"churn-predictor/backend/internal/artifact"
	"churn-predictor/backend/internal/features"
	"churn-predictor/backend/internal/scoring"
	"churn-predictor/backend/internal/store"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "churnctl",
		Usage:   "Inspect churn model bundles and score customers offline",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "bundle",
				Aliases: []string{"b"},
				Value:   "internal/artifact/mtn_churn_lr.json",
				Usage:   "Path to the model bundle (JSON or YAML)",
				EnvVars: []string{"CHURN_BUNDLE_PATH"},
			},
		},
		Before: func(c *cli.Context) error {
			level, err := logrus.ParseLevel(c.String("log-level"))
			if err != nil {
				return err
			}
			logrus.SetLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			inspectCommand(),
			validateCommand(),
			scoreCommand(),
			incidentsCommand(),
		},
	}
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Print bundle metadata and the expected column order",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format (table, json)",
			},
		},
		Action: runInspect,
	}
}

type bundleSummary struct {
	Version       string              `json:"version"`
	Checksum      string              `json:"checksum"`
	Threshold     float64             `json:"threshold"`
	UnknownPolicy string              `json:"unknown_category_policy"`
	Categorical   []string            `json:"categorical_fields"`
	Numeric       []string            `json:"numeric_fields"`
	Categories    map[string][]string `json:"categories,omitempty"`
	Columns       []string            `json:"columns"`
}

func runInspect(c *cli.Context) error {
	bundle, err := artifact.Load(c.String("bundle"))
	if err != nil {
		return err
	}
	summary := bundleSummary{
		Version:       bundle.Version(),
		Checksum:      bundle.Checksum(),
		Threshold:     bundle.Classifier().Threshold(),
		UnknownPolicy: bundle.UnknownPolicy(),
		Categorical:   bundle.Encoder().FeatureNamesIn(),
		Numeric:       bundle.Scaler().FeatureNamesIn(),
		Columns:       bundle.Columns(),
	}
	if enc, ok := bundle.Encoder().(*artifact.OneHotEncoder); ok {
		summary.Categories = make(map[string][]string, len(summary.Categorical))
		for _, name := range summary.Categorical {
			summary.Categories[name] = enc.Categories(name)
		}
	}

	if strings.EqualFold(c.String("format"), "json") {
		return writeJSON(c.App.Writer, summary)
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "version\t%s\n", summary.Version)
	fmt.Fprintf(w, "checksum\t%s\n", summary.Checksum)
	fmt.Fprintf(w, "threshold\t%g\n", summary.Threshold)
	fmt.Fprintf(w, "unknown categories\t%s\n", summary.UnknownPolicy)
	fmt.Fprintf(w, "categorical fields\t%s\n", strings.Join(summary.Categorical, ", "))
	for _, name := range summary.Categorical {
		fmt.Fprintf(w, "  %s\t%d categories\n", name, len(summary.Categories[name]))
	}
	fmt.Fprintf(w, "numeric fields\t%s\n", strings.Join(summary.Numeric, ", "))
	fmt.Fprintf(w, "columns\t%d\n", len(summary.Columns))
	for i, name := range summary.Columns {
		fmt.Fprintf(w, "  %d\t%s\n", i, name)
	}
	return w.Flush()
}

var referenceCustomer = map[string]string{
	features.FieldAge:           "45",
	features.FieldGender:        "Male",
	features.FieldState:         "Lagos",
	features.FieldDevice:        "Mobile SIM Card",
	features.FieldSatisfaction:  "7",
	features.FieldPlan:          "165GB Monthly Plan",
	features.FieldUnitPrice:     "1000",
	features.FieldPurchaseCount: "5",
	features.FieldTotalRevenue:  "5000",
	features.FieldDataUsage:     "10",
	features.FieldTenureMonths:  "12",
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Load a bundle and score a reference customer to confirm the assembler contract holds",
		Action: func(c *cli.Context) error {
			bundle, err := artifact.Load(c.String("bundle"))
			if err != nil {
				return err
			}
			in, err := features.FromValues(referenceCustomer)
			if err != nil {
				return err
			}
			record, err := features.Assemble(in, time.Now())
			if err != nil {
				return err
			}
			result, err := scoring.Score(bundle, record)
			if err != nil {
				return fmt.Errorf("bundle %s rejects reference customer: %w", bundle.Version(), err)
			}
			fmt.Fprintf(c.App.Writer, "bundle %s ok (reference probability %.4f)\n", bundle.Version(), result.ChurnProbability)
			return nil
		},
	}
}

func scoreCommand() *cli.Command {
	return &cli.Command{
		Name:  "score",
		Usage: "Score one customer read as JSON from a file or stdin",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Path to the customer JSON (defaults to stdin)",
			},
			&cli.StringFlag{
				Name:  "today",
				Usage: "Reference date YYYY-MM-DD for purchase-date tenure",
			},
		},
		Action: runScore,
	}
}

type scoreOutput struct {
	scoring.Result
	ChurnStatus    string `json:"churn_status"`
	RiskBand       string `json:"risk_band"`
	Recommendation string `json:"recommendation"`
	TenureMonths   int    `json:"customer_tenure_in_months"`
	BundleVersion  string `json:"bundle_version"`
}

func runScore(c *cli.Context) error {
	bundle, err := artifact.Load(c.String("bundle"))
	if err != nil {
		return err
	}

	var reader io.Reader = c.App.Reader
	if path := c.String("input"); path != "" {
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer file.Close()
		reader = file
	}
	var in features.FormInput
	if err := json.NewDecoder(reader).Decode(&in); err != nil {
		return fmt.Errorf("decode customer: %w", err)
	}

	today := time.Now()
	if raw := c.String("today"); raw != "" {
		if today, err = time.Parse("2006-01-02", raw); err != nil {
			return fmt.Errorf("parse --today: %w", err)
		}
	}

	record, err := features.Assemble(in, today)
	if err != nil {
		return err
	}
	result, err := scoring.Score(bundle, record)
	if err != nil {
		return err
	}
	adv, err := advice.Canned{}.Advise(c.Context, advice.Input{Record: record, Result: result})
	if err != nil {
		return err
	}

	status := "No"
	if result.ChurnLabel {
		status = "Yes"
	}
	return writeJSON(c.App.Writer, scoreOutput{
		Result:         result,
		ChurnStatus:    status,
		RiskBand:       adv.Band,
		Recommendation: adv.Recommendation,
		TenureMonths:   record.TenureMonths,
		BundleVersion:  bundle.Version(),
	})
}

func incidentsCommand() *cli.Command {
	return &cli.Command{
		Name:  "incidents",
		Usage: "List incidents recorded by the server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Value:   "data/churn.db",
				Usage:   "Path to the server SQLite database",
				EnvVars: []string{"CHURN_DB_PATH"},
			},
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Only show incidents of this kind (schema_mismatch, inference)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Value: 20,
				Usage: "Maximum incidents to show",
			},
		},
		Action: func(c *cli.Context) error {
			db, err := store.Open(c.String("db"), true)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := db.Close(); cerr != nil {
					logrus.WithError(cerr).Warn("close database")
				}
			}()

			rows, total, err := db.ListIncidents(store.IncidentQuery{Kind: c.String("kind"), Limit: c.Int("limit")})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "CREATED\tKIND\tBUNDLE\tREQUEST\tMESSAGE\n")
			for _, row := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					row.CreatedAt.Format(time.RFC3339), row.Kind, row.BundleVersion, row.RequestID, row.Message)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%d of %d incidents\n", len(rows), total)
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
