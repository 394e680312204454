package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hanzhu/tablab/internal/anomaly"
	"github.com/hanzhu/tablab/internal/dataset"
	"github.com/hanzhu/tablab/internal/model"
)

var trainFlags struct {
	out           string
	trees         int
	contamination float64
	seed          int64
}

var trainCmd = &cobra.Command{
	Use:   "train <file>",
	Short: "Train an isolation forest on a tabular file and save the bundle",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrain,
}

func init() {
	f := trainCmd.Flags()
	f.StringVar(&trainFlags.out, "out", "models/iforest.gob", "path for the trained bundle")
	f.IntVar(&trainFlags.trees, "trees", anomaly.TrainTrees, "number of trees")
	f.Float64Var(&trainFlags.contamination, "contamination", anomaly.DefaultContamination, "expected anomaly fraction; sets the score threshold")
	f.Int64Var(&trainFlags.seed, "seed", anomaly.DefaultSeed, "random seed")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	t, err := dataset.Load(args[0])
	if err != nil {
		return fmt.Errorf("load %s: %w", args[0], err)
	}
	t = dataset.BasicClean(t)

	columns, matrix := dataset.NumericMatrix(t)
	if len(columns) == 0 {
		return fmt.Errorf("%s has no numeric columns to train on", args[0])
	}

	forest := anomaly.Fit(matrix, trainFlags.trees, trainFlags.seed)
	scores := forest.ScoreAll(matrix)

	bundle := &model.Bundle{
		Forest:         forest,
		FeatureColumns: columns,
		Contamination:  trainFlags.contamination,
		Threshold:      anomaly.Quantile(scores, 1-trainFlags.contamination),
	}

	if err := os.MkdirAll(filepath.Dir(trainFlags.out), 0o755); err != nil {
		return err
	}
	if err := model.SaveBundle(trainFlags.out, bundle); err != nil {
		return fmt.Errorf("save bundle: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "trained %d trees on %d rows x %d features, threshold %.4f -> %s\n",
		trainFlags.trees, len(matrix), len(columns), bundle.Threshold, trainFlags.out)
	return nil
}
