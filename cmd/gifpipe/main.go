package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/gif-processor/internal/config"
	"github.com/aliskhannn/gif-processor/internal/logger"
	"github.com/aliskhannn/gif-processor/internal/model"
	"github.com/aliskhannn/gif-processor/internal/processor"
	pipelinesvc "github.com/aliskhannn/gif-processor/internal/service/pipeline"
)

// CLI flags
var (
	inputFlag   string
	configFlag  string
	outputFlag  string
	workersFlag int
	maxDimFlag  int
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "gifpipe",
	Short: "Apply a transform pipeline to every frame of a GIF",
	Long: `gifpipe decodes an animated GIF (or a still image), runs every frame
through the configured pipeline and writes either an animated GIF or a ZIP
archive of frames.

The configuration file may be JSON or YAML.

Examples:
  gifpipe --input cat.gif --config pipeline.json
  gifpipe -i cat.gif -c pipeline.yml -o frames.zip --workers 8`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&inputFlag, "input", "i", "", "Source GIF or image")
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "", "Pipeline configuration (JSON or YAML)")
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output path (default: <output_filename>.gif or .zip)")
	rootCmd.Flags().IntVarP(&workersFlag, "workers", "w", runtime.NumCPU(), "Frames processed concurrently")
	rootCmd.Flags().IntVar(&maxDimFlag, "max-dimension", model.DefaultLimits.MaxDimension, "Largest frame width or height accepted or produced")
	rootCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log every pipeline step")
	_ = rootCmd.MarkFlagRequired("input")
	_ = rootCmd.MarkFlagRequired("config")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	level := zerolog.InfoLevel.String()
	if verboseFlag {
		level = zerolog.TraceLevel.String()
	}
	logger.Setup(config.Log{Level: level, Format: "plain"})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = zlog.Logger.WithContext(ctx)

	cfg, err := loadPipelineConfig(configFlag)
	if err != nil {
		return err
	}

	src, err := os.ReadFile(inputFlag)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	limits := model.DefaultLimits
	limits.MaxDimension = maxDimFlag

	return process(ctx, src, cfg, outputFlag, workersFlag, limits)
}

// loadPipelineConfig reads a JSON or YAML pipeline configuration.
func loadPipelineConfig(path string) (model.PipelineConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return model.PipelineConfig{}, fmt.Errorf("read config: %w", err)
	}

	return model.DecodeConfig(v.AllSettings())
}

func process(ctx context.Context, src []byte, cfg model.PipelineConfig, output string, workers int, limits model.Limits) error {
	log := zerolog.Ctx(ctx)

	svc := pipelinesvc.NewService(
		processor.New(processor.NewRegistry(), processor.WithLimits(limits)),
		pipelinesvc.WithWorkers(workers),
		pipelinesvc.WithLimits(limits),
	)
	res, err := svc.Process(ctx, src, cfg)
	if err != nil {
		return err
	}

	if output == "" {
		output = res.Filename(cfg)
	}
	if err := os.WriteFile(output, res.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	log.Info().
		Str("output", output).
		Str("content_type", res.ContentType()).
		Int("bytes", len(res.Bytes())).
		Msg("pipeline finished")

	return nil
}
