package cmd

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/your-org/stringart/internal/engine"
	"github.com/your-org/stringart/pkg/dto"
)

var (
	genOutDir        string
	genFrameType     string
	genPinCount      int
	genFrameSize     int
	genThreadWidth   float64
	genThreadOpacity float64
	genColorMode     string
	genMaxThreads    int
	genQuality       string
	genUseEdge       bool
	genUseAnneal     bool
	genUsePinFatigue bool
	genMinPinSkip    int
	genCropScale     float64
	genCropOffsetX   float64
	genCropOffsetY   float64
)

var generateCmd = &cobra.Command{
	Use:   "generate <input_image>",
	Short: "Generate a string-art threading plan from an image",
	Long: `Reads an image file, runs the coarse-to-fine thread-placement
pipeline, and writes a JSON result plus a PNG preview into the output
directory. Progress snapshots print to stderr as generation proceeds.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&genOutDir, "out", "o", "./stringart_out", "output directory")
	generateCmd.Flags().StringVar(&genFrameType, "frame-type", "circular", "circular|square|rectangular")
	generateCmd.Flags().IntVar(&genPinCount, "pin-count", 0, "number of pins (0 = default)")
	generateCmd.Flags().IntVar(&genFrameSize, "frame-size", 0, "frame size in pixels (0 = default)")
	generateCmd.Flags().Float64Var(&genThreadWidth, "thread-width", 0, "thread width in mm (0 = default)")
	generateCmd.Flags().Float64Var(&genThreadOpacity, "thread-opacity", 0, "thread opacity [0.03, 0.35] (0 = default)")
	generateCmd.Flags().StringVar(&genColorMode, "color-mode", "monochrome", "monochrome|color")
	generateCmd.Flags().IntVar(&genMaxThreads, "max-threads", 0, "maximum thread count (0 = default)")
	generateCmd.Flags().StringVar(&genQuality, "quality", "balanced", "fast|balanced|high")
	generateCmd.Flags().BoolVar(&genUseEdge, "edge-detect", true, "bias candidates toward detected edges")
	generateCmd.Flags().BoolVar(&genUseAnneal, "annealing", false, "enable simulated annealing + backtracking")
	generateCmd.Flags().BoolVar(&genUsePinFatigue, "pin-fatigue", false, "penalize overused pins")
	generateCmd.Flags().IntVar(&genMinPinSkip, "min-pin-skip", 0, "minimum pin index distance (0 = default)")
	generateCmd.Flags().Float64Var(&genCropScale, "crop-scale", 1, "crop scale [1,3]")
	generateCmd.Flags().Float64Var(&genCropOffsetX, "crop-offset-x", 0, "crop horizontal offset [-1,1]")
	generateCmd.Flags().Float64Var(&genCropOffsetY, "crop-offset-y", 0, "crop vertical offset [-1,1]")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	imagePath := args[0]
	imageBytes, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("read input image: %w", err)
	}

	params := buildParamsFromFlags()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-interrupt
		fmt.Fprintln(os.Stderr, "\ncancelling...")
		cancel()
	}()

	job, err := engine.Generate(ctx, imageBytes, params)
	if err != nil {
		return fmt.Errorf("start generation: %w", err)
	}

	start := time.Now()
	for snap := range job.Progress() {
		printProgress(snap)
	}

	outcome := <-job.Result()
	if outcome.Err != nil {
		return fmt.Errorf("generation failed: %w", outcome.Err)
	}

	if err := writeResult(genOutDir, outcome.Result); err != nil {
		return err
	}
	fmt.Printf("\ndone in %s: %d threads, accuracy %.1f%%\n", time.Since(start).Round(time.Millisecond), outcome.Result.TotalThreads, outcome.Result.AccuracyScore)
	return nil
}

func buildParamsFromFlags() dto.GenerationParams {
	p := dto.Defaults()
	if genFrameType != "" {
		p.FrameType = dto.FrameType(genFrameType)
	}
	if genPinCount > 0 {
		p.PinCount = genPinCount
	}
	if genFrameSize > 0 {
		p.FrameSize = genFrameSize
	}
	if genThreadWidth > 0 {
		p.ThreadWidth = genThreadWidth
	}
	if genThreadOpacity > 0 {
		p.ThreadOpacity = genThreadOpacity
	}
	if genColorMode != "" {
		p.ColorMode = dto.ColorMode(genColorMode)
	}
	if genMaxThreads > 0 {
		p.MaxThreads = genMaxThreads
	}
	if genQuality != "" {
		p.QualityPreset = dto.QualityPreset(genQuality)
	}
	if genMinPinSkip > 0 {
		p.MinPinSkip = genMinPinSkip
	}
	p.UseEdgeDetect = genUseEdge
	p.UseAnnealing = genUseAnneal
	p.UsePinFatigue = genUsePinFatigue
	p.ImageCrop = dto.ImageCrop{Scale: genCropScale, OffsetX: genCropOffsetX, OffsetY: genCropOffsetY}
	return p
}

func printProgress(snap dto.ProgressSnapshot) {
	msg := fmt.Sprintf("\r[%s] %d/%d threads", snap.StageLabel, snap.CurrentThread, snap.TotalThreads)
	if snap.Accuracy != nil {
		msg += fmt.Sprintf("  similarity=%.1f%%", snap.Accuracy.SimilarityPct)
	}
	if snap.Warning != nil {
		msg += "  warning: " + *snap.Warning
	}
	fmt.Fprint(os.Stderr, msg)
}

// writeResult persists result.json and preview.png into outDir, the way
// the teacher's build command writes a manifest and report into its own
// output directory.
func writeResult(outDir string, result *dto.Result) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	resultPath := filepath.Join(outDir, "result.json")
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(resultPath, data, 0o644); err != nil {
		return fmt.Errorf("write result.json: %w", err)
	}

	previewBytes, err := base64.StdEncoding.DecodeString(result.Preview)
	if err != nil {
		return fmt.Errorf("decode preview: %w", err)
	}
	previewPath := filepath.Join(outDir, "preview.png")
	if err := os.WriteFile(previewPath, previewBytes, 0o644); err != nil {
		return fmt.Errorf("write preview.png: %w", err)
	}

	return nil
}
