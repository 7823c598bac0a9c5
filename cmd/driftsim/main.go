package main

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/adaptml/driftwatch/internal/kswin"
	"github.com/adaptml/driftwatch/internal/metric"
	"github.com/adaptml/driftwatch/internal/stats"
	"github.com/adaptml/driftwatch/internal/synth"
	"github.com/spf13/cobra"
)

var (
	// Detector flags
	alpha       float64
	windowSize  int
	statSize    int
	windowStart int
	seed        int64
	strategy    int
	alternative string
	continuous  bool

	// Stream flags
	samples   int
	batchSize int
	generator string
	position  int
	width     int
	function  int
	verbose   bool

	// fpr flags
	trials int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "driftsim",
		Short: "Synthetic-stream harness for the drift detector",
		Long: `Runs the KS-battery drift detector against synthetic streams:
labeled Agrawal loan-classification streams with an incremental concept
ramp, or plain level-shift signals. Also measures the false positive rate
on stationary streams.`,
	}

	rootCmd.PersistentFlags().Float64Var(&alpha, "alpha", 1e-5, "Significance threshold for FDR-corrected p-values")
	rootCmd.PersistentFlags().IntVar(&windowSize, "window-size", 3000, "Sliding window capacity")
	rootCmd.PersistentFlags().IntVar(&statSize, "stat-size", 300, "Battery subsample length")
	rootCmd.PersistentFlags().IntVar(&windowStart, "window-start", 1300, "Warm-up observation count")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 1, "PRNG seed for detector and stream")
	rootCmd.PersistentFlags().IntVar(&strategy, "strategy", 3, "Battery strategy: 1=random, 2=block, 3=shifted+confirmation")
	rootCmd.PersistentFlags().StringVar(&alternative, "alternative", "greater", "KS alternative: two-sided, greater or less")
	rootCmd.PersistentFlags().BoolVar(&continuous, "continuous", false, "Treat observations as already-continuous (skip EWMA smoothing)")
	rootCmd.PersistentFlags().IntVar(&batchSize, "batch-size", 50, "Observations per detector update")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(fprCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runCmd streams a drifting signal through the detector and reports
// state transitions and the classified drift type.
func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Stream a drifting synthetic signal through the detector",
		Long: `Generates a synthetic stream with a known drift point and feeds it to
the detector batch by batch. With --generator agrawal, the observations are
the per-sample accuracy of a model frozen on the pre-drift concept; with
--generator shift, the signal drops from 1.0 to 0.0 at the drift position.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			detector, err := buildDetector()
			if err != nil {
				return err
			}

			stream, err := buildStream()
			if err != nil {
				return err
			}

			fmt.Printf("=== Drift Simulation ===\n")
			fmt.Printf("Generator: %s, samples: %d, drift at %d (width %d)\n", generator, samples, position, width)
			fmt.Printf("Strategy: %d, window: %d, stat size: %d, alpha: %g\n\n", strategy, windowSize, statSize, alpha)

			prevState := detector.State()
			firstDetection := -1

			batch := make([]float64, 0, batchSize)
			for i := 0; i < samples; i++ {
				batch = append(batch, stream())
				if len(batch) < batchSize && i != samples-1 {
					continue
				}

				if err := detector.Update(batch); err != nil {
					return fmt.Errorf("update failed at sample %d: %w", i, err)
				}
				batch = batch[:0]

				if state := detector.State(); state != prevState {
					fmt.Printf("sample %6d: %s -> %s\n", i+1, prevState, state)
					prevState = state
					if state == kswin.StateDetected || state == kswin.StateConfirmationPending {
						if firstDetection < 0 {
							firstDetection = i + 1
						}
					}
				} else if verbose && detector.DriftDetected() {
					fmt.Printf("sample %6d: drift flag set (window %d)\n", i+1, detector.WindowLen())
				}
			}

			st := detector.Stats()
			fmt.Printf("\n=== Result ===\n")
			fmt.Printf("Batteries run:        %d\n", st.Batteries)
			fmt.Printf("Detections:           %d\n", st.Detections)
			fmt.Printf("Pre-check rejections: %d\n", st.PrecheckRejections)
			fmt.Printf("Confirm rejections:   %d\n", st.ConfirmRejections)
			if firstDetection >= 0 {
				fmt.Printf("First detection:      sample %d (%+d after drift onset)\n", firstDetection, firstDetection-position)
			} else {
				fmt.Printf("First detection:      none\n")
			}
			if t := detector.Type(); t != kswin.DriftUnknown {
				fmt.Printf("Classified type:      %s\n", t)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&samples, "samples", 20000, "Total observations to stream")
	cmd.Flags().StringVar(&generator, "generator", "agrawal", "Stream generator: agrawal or shift")
	cmd.Flags().IntVar(&position, "position", 10000, "Stream index where the drift starts")
	cmd.Flags().IntVar(&width, "width", 1000, "Drift ramp length in samples")
	cmd.Flags().IntVar(&function, "function", 8, "Agrawal classification function (6, 7 or 8)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Log every batch with the drift flag set")

	return cmd
}

// fprCmd measures the false positive rate over stationary streams.
func fprCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fpr",
		Short: "Measure the false positive rate on stationary streams",
		Long: `Runs repeated trials against stationary standard-normal streams and
reports the fraction of trials with at least one detection. With the
default alpha this should stay near zero.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("=== False Positive Rate ===\n")
			fmt.Printf("Trials: %d, samples per trial: %d, alpha: %g, strategy: %d\n\n", trials, samples, alpha, strategy)

			falsePositives := 0
			for trial := 0; trial < trials; trial++ {
				trialSeed := seed + int64(trial)
				seed = trialSeed // detector PRNG varies per trial
				detector, err := buildDetector()
				if err != nil {
					return err
				}

				rng := rand.New(rand.NewSource(trialSeed))
				detected := false
				batch := make([]float64, batchSize)
				for i := 0; i < samples/batchSize; i++ {
					for j := range batch {
						batch[j] = rng.NormFloat64()
					}
					if err := detector.Update(batch); err != nil {
						return fmt.Errorf("trial %d update failed: %w", trial, err)
					}
					if detector.DriftDetected() {
						detected = true
						break
					}
				}
				if detected {
					falsePositives++
					if verbose {
						fmt.Printf("trial %4d: false positive\n", trial)
					}
				}
			}

			fmt.Printf("False positives: %d/%d (rate %.4f)\n", falsePositives, trials, float64(falsePositives)/float64(trials))
			return nil
		},
	}

	cmd.Flags().IntVar(&trials, "trials", 100, "Number of independent stationary trials")
	cmd.Flags().IntVar(&samples, "samples", 20000, "Observations per trial")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Log each false positive trial")

	return cmd
}

func buildDetector() (*kswin.Detector, error) {
	cfg := kswin.Config{
		Alpha:       alpha,
		WindowSize:  windowSize,
		StatSize:    statSize,
		Seed:        seed,
		WindowStart: windowStart,
		Alternative: stats.Alternative(alternative),
		Strategy:    kswin.Strategy(strategy),
		Continuous:  continuous,
	}
	if cfg.Strategy == kswin.StrategyShifted {
		cfg.Metric = metric.NewAccuracy()
	}
	return kswin.New(cfg)
}

// buildStream returns a closure producing one observation per call.
func buildStream() (func() float64, error) {
	switch generator {
	case "agrawal":
		gen, err := synth.NewAgrawal(synth.AgrawalConfig{
			Function: function,
			Seed:     seed,
			Position: position,
			Width:    width,
		})
		if err != nil {
			return nil, err
		}
		// Accuracy of a model frozen on the pre-drift concept: 1.0 while
		// the concept holds, degrading as the ramp separates the labels.
		return func() float64 {
			s := gen.Next()
			if gen.BaselineLabel(s.X) == s.Y {
				return 1.0
			}
			return 0.0
		}, nil
	case "shift":
		rng := rand.New(rand.NewSource(seed))
		index := 0
		return func() float64 {
			level := 1.0
			if index >= position {
				level = 0.0
			}
			index++
			return level + 0.01*rng.NormFloat64()
		}, nil
	default:
		return nil, fmt.Errorf("unknown generator %q (want agrawal or shift)", generator)
	}
}
