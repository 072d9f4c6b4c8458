package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/oremia/risk-matrix/internal/console"
	"github.com/oremia/risk-matrix/internal/matrix/model"
	"github.com/oremia/risk-matrix/pkg/client"
	"github.com/spf13/cobra"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

// Each command binds its own --server variable: a shared variable would let
// the last registered default clobber the others.
var (
	assessServer    string
	configureServer string
	matrixServer    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "riskmatrix",
	Short: "Qualitative risk matrix service and console",
	Long: `riskmatrix computes qualitative risk ratings from a likelihood level and a
severity level using a configurable scoring table.

Run the HTTP API with "riskmatrix serve", assess interactively with
"riskmatrix assess", or replace a running server's scoring table with
"riskmatrix configure".`,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(assessCmd)
	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(matrixCmd)
	rootCmd.AddCommand(versionCmd)

	assessCmd.Flags().StringVar(&assessServer, "server", "", "assess against a running server instead of the built-in model")
	configureCmd.Flags().StringVar(&configureServer, "server", "http://localhost:8080", "risk matrix server URL")
	matrixCmd.Flags().StringVar(&matrixServer, "server", "", "visualize a running server's model instead of the built-in one")
}

// ── assess ───────────────────────────────────────────────────────────────────

// remoteEvaluator adapts the HTTP client to the console prompt. Level names
// come from one upfront /levels call; the assessment itself runs server-side.
type remoteEvaluator struct {
	c      *client.Client
	levels *client.LevelsResult
}

func (r *remoteEvaluator) ProbabilityNames() []string {
	return model.SortedNames(model.LevelMap(r.levels.Probability))
}

func (r *remoteEvaluator) SeverityNames() []string {
	return model.SortedNames(model.LevelMap(r.levels.Severity))
}

func (r *remoteEvaluator) Assess(probability, severity string) (model.Assessment, error) {
	res, err := r.c.Assess(context.Background(), probability, severity)
	if err != nil {
		return model.Assessment{}, err
	}
	return model.Assessment{
		Probability: probability,
		Severity:    severity,
		RiskValue:   res.RiskValue,
		RiskLevel:   res.RiskLevel,
	}, nil
}

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Interactively assess one risk",
	Long: `assess prompts for a probability level and a severity level, then prints
the computed risk value and risk level. Without --server it uses the built-in
default model; with --server it runs against the active model of a running
risk matrix server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var ev console.Evaluator = model.Default()
		if assessServer != "" {
			c := client.New(assessServer)
			levels, err := c.Levels(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch levels from %s: %w", assessServer, err)
			}
			ev = &remoteEvaluator{c: c, levels: levels}
		}
		return console.NewPrompt(cmd.InOrStdin(), cmd.OutOrStdout(), ev).Run()
	},
}

// ── configure ────────────────────────────────────────────────────────────────

var configureCmd = &cobra.Command{
	Use:   "configure <workbook.xlsx>",
	Short: "Replace a running server's scoring table from a workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close() //nolint:errcheck

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		res, err := client.New(configureServer).Configure(ctx, filepath.Base(path), f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (revision %s)\n", res.Message, res.Revision)
		return nil
	},
}

// ── matrix ───────────────────────────────────────────────────────────────────

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Print the risk matrix as a table",
	RunE: func(cmd *cobra.Command, args []string) error {
		var vis model.Matrix
		if matrixServer == "" {
			vis = model.Default().Visualize()
		} else {
			res, err := client.New(matrixServer).Visualize(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch matrix from %s: %w", matrixServer, err)
			}
			vis = model.Matrix{
				ProbabilityAxis: res.ProbabilityAxis,
				SeverityAxis:    res.SeverityAxis,
			}
			for _, row := range res.MatrixData {
				cells := make([]model.Assessment, len(row))
				for j, c := range row {
					cells[j] = model.Assessment{
						Probability: c.Probability,
						Severity:    c.Severity,
						RiskValue:   c.RiskValue,
						RiskLevel:   c.RiskLevel,
					}
				}
				vis.Cells = append(vis.Cells, cells)
			}
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
		fmt.Fprint(tw, "概率\\后果")
		for _, sev := range vis.SeverityAxis {
			fmt.Fprintf(tw, "\t%s", sev)
		}
		fmt.Fprintln(tw)
		for i, prob := range vis.ProbabilityAxis {
			fmt.Fprint(tw, prob)
			for _, cell := range vis.Cells[i] {
				fmt.Fprintf(tw, "\t%d(%s)", cell.RiskValue, cell.RiskLevel)
			}
			fmt.Fprintln(tw)
		}
		return tw.Flush()
	},
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the riskmatrix version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "riskmatrix %s\n", version)
	},
}
