package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hanzhu/tablab/internal/anomaly"
	"github.com/hanzhu/tablab/internal/dataset"
	"github.com/hanzhu/tablab/internal/model"
)

var analyzeFlags struct {
	outDir        string
	histColumn    string
	topK          int
	modelPath     string
	contamination float64
	seed          int64
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a tabular file and write summary.json (and optionally hist.png)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeFlags.outDir, "out", ".", "directory for summary.json and hist.png")
	f.StringVar(&analyzeFlags.histColumn, "hist", "", "numeric column to render as hist.png")
	f.IntVar(&analyzeFlags.topK, "top-k", anomaly.DefaultTopK, "number of top anomalies to report")
	f.StringVar(&analyzeFlags.modelPath, "model", "", "trained model bundle; ad-hoc fit when empty")
	f.Float64Var(&analyzeFlags.contamination, "contamination", anomaly.DefaultContamination, "expected anomaly fraction for ad-hoc fitting")
	f.Int64Var(&analyzeFlags.seed, "seed", anomaly.DefaultSeed, "random seed for ad-hoc fitting")
	rootCmd.AddCommand(analyzeCmd)
}

type analyzeOutput struct {
	Summary dataset.Summary `json:"summary"`
	Anomaly *anomaly.Result `json:"anomaly,omitempty"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	t, err := dataset.Load(args[0])
	if err != nil {
		return fmt.Errorf("load %s: %w", args[0], err)
	}
	t = dataset.BasicClean(t)

	out := analyzeOutput{Summary: dataset.Summarize(t)}

	if analyzeFlags.modelPath != "" {
		store := model.NewStore(analyzeFlags.modelPath)
		b, err := store.Load()
		if err != nil {
			return fmt.Errorf("load model: %w", err)
		}
		if res, ok := anomaly.ScoreWithBundle(t, b.Forest, b.FeatureColumns, analyzeFlags.topK); ok {
			out.Anomaly = res
		}
	} else if res, ok := anomaly.Score(t, analyzeFlags.topK, analyzeFlags.contamination, analyzeFlags.seed); ok {
		out.Anomaly = res
	}

	if err := os.MkdirAll(analyzeFlags.outDir, 0o755); err != nil {
		return err
	}

	summaryPath := filepath.Join(analyzeFlags.outDir, "summary.json")
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(summaryPath, b, 0o644); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), summaryPath)

	if analyzeFlags.histColumn != "" {
		histPath := filepath.Join(analyzeFlags.outDir, "hist.png")
		if err := dataset.SaveHist(t, analyzeFlags.histColumn, histPath, dataset.DefaultBins); err != nil {
			return fmt.Errorf("histogram column %q: %w", analyzeFlags.histColumn, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), histPath)
	}

	return nil
}
