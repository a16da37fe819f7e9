package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/your-org/stringart/internal/engine"
	"github.com/your-org/stringart/pkg/dto"
)

var (
	continueOutDir    string
	continueThreads   int
	continueOrigImage string
)

var continueCmd = &cobra.Command{
	Use:   "continue <result.json>",
	Short: "Add more threads to a previously generated result",
	Long: `Reads a result.json written by "generate", replays its connections
onto fresh state, and greedily places additional_threads more threads.`,
	Args: cobra.ExactArgs(1),
	RunE: runContinue,
}

func init() {
	continueCmd.Flags().StringVarP(&continueOutDir, "out", "o", "./stringart_out", "output directory")
	continueCmd.Flags().IntVarP(&continueThreads, "additional-threads", "n", 500, "number of additional threads to place")
	continueCmd.Flags().StringVar(&continueOrigImage, "image", "", "original source image, for the most accurate continuation target")
	rootCmd.AddCommand(continueCmd)
}

func runContinue(cmd *cobra.Command, args []string) error {
	resultPath := args[0]
	data, err := os.ReadFile(resultPath)
	if err != nil {
		return fmt.Errorf("read result file: %w", err)
	}

	var previous dto.Result
	if err := json.Unmarshal(data, &previous); err != nil {
		return fmt.Errorf("parse result file: %w", err)
	}

	var target dto.ContinueTarget
	if continueOrigImage != "" {
		imageBytes, err := os.ReadFile(continueOrigImage)
		if err != nil {
			return fmt.Errorf("read original image: %w", err)
		}
		target.OriginalImage = imageBytes
		target.Crop = previous.Params.ImageCrop
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-interrupt
		fmt.Fprintln(os.Stderr, "\ncancelling...")
		cancel()
	}()

	job, err := engine.Continue(ctx, previous, continueThreads, target)
	if err != nil {
		return fmt.Errorf("start continuation: %w", err)
	}

	start := time.Now()
	for snap := range job.Progress() {
		printProgress(snap)
	}

	outcome := <-job.Result()
	if outcome.Err != nil {
		return fmt.Errorf("continuation failed: %w", outcome.Err)
	}

	if err := writeResult(continueOutDir, outcome.Result); err != nil {
		return err
	}
	fmt.Printf("\ndone in %s: %d threads total, accuracy %.1f%%\n", time.Since(start).Round(time.Millisecond), outcome.Result.TotalThreads, outcome.Result.AccuracyScore)
	return nil
}
