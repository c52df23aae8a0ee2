package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bodybasics/posetrack/internal/parser"
	"github.com/bodybasics/posetrack/internal/pose"
	"github.com/bodybasics/posetrack/internal/processor"
)

type inspectOptions struct {
	metric    string
	threshold float64
	asJSON    bool
	onlyPoses bool
}

var inspectOpts inspectOptions

var inspectCmd = &cobra.Command{
	Use:   "inspect <recording>",
	Short: "Print per-frame pose detections of a recording",
	Long: `Inspect runs every frame of a recording through the processor without
any sinks and prints the detected poses per body. With --json each render
frame is printed as one JSON line.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cmd.OutOrStdout(), args[0], inspectOpts)
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectOpts.metric, "metric", "signedSum", "proximity metric (signedSum, absSum, euclidean)")
	inspectCmd.Flags().Float64Var(&inspectOpts.threshold, "threshold", pose.DefaultThreshold, "touching threshold in display units")
	inspectCmd.Flags().BoolVar(&inspectOpts.asJSON, "json", false, "print render frames as JSON lines")
	inspectCmd.Flags().BoolVar(&inspectOpts.onlyPoses, "poses-only", false, "skip frames without detections")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(out io.Writer, path string, opts inspectOptions) error {
	metric, err := pose.ParseMetric(opts.metric)
	if err != nil {
		return err
	}

	rec, err := parser.Open(parser.NewParser(zerolog.Nop()), path)
	if err != nil {
		return err
	}
	defer rec.Close()

	proc := processor.New(processor.Config{}, nil, pose.NewClassifier(opts.threshold, metric))
	enc := json.NewEncoder(out)

	for {
		f, err := rec.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		rf := proc.Process(f)
		if opts.asJSON {
			if err := enc.Encode(rf); err != nil {
				return err
			}
			continue
		}

		var parts []string
		for i := range rf.Bodies {
			b := &rf.Bodies[i]
			detected := b.Detected()
			if opts.onlyPoses && len(detected) == 0 {
				continue
			}
			names := make([]string, len(detected))
			for k, d := range detected {
				names[k] = string(d)
			}
			parts = append(parts, fmt.Sprintf("slot %d [%s]", b.Slot, strings.Join(names, ",")))
		}
		if opts.onlyPoses && len(parts) == 0 {
			continue
		}
		if len(parts) == 0 {
			parts = append(parts, "no bodies")
		}
		fmt.Fprintf(out, "frame %d: %s\n", rf.Sequence, strings.Join(parts, "; "))
	}
}
