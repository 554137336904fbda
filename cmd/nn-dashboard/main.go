package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/klauspost/cpuid/v2"

	"nn-dashboard/internal/config"
	"nn-dashboard/internal/model"
	"nn-dashboard/internal/span"
	"nn-dashboard/internal/trainer"
)

func main() {
	cfgPath := flag.String("config", "configs/demo.yaml", "Path to YAML config")
	dataDir := flag.String("data-dir", "", "Override directory searched for MNIST files")
	trainImages := flag.String("train-images", "", "Override training images path")
	trainLabels := flag.String("train-labels", "", "Override training labels path")
	testImages := flag.String("test-images", "", "Override test images path")
	testLabels := flag.String("test-labels", "", "Override test labels path")
	inner := flag.String("inner", "", "Comma separated hidden layer widths")
	trainSamples := flag.Int("train-samples", 0, "Number of training samples")
	testSamples := flag.Int("test-samples", 0, "Number of test samples (0 = one full pass)")
	seed := flag.Int64("seed", 0, "PRNG seed")
	logEvery := flag.Int("log-every", 0, "Log every N samples")
	transform := flag.String("transform", "", "Input transform (none, gradient_pool)")

	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	innerLayers, err := parseWidths(*inner)
	if err != nil {
		log.Fatalf("invalid -inner: %v", err)
	}

	cfg.ApplyOverrides(config.Overrides{
		TrainImages:    *trainImages,
		TestImages:     *testImages,
		TrainLabels:    *trainLabels,
		TestLabels:     *testLabels,
		DataDir:        *dataDir,
		InnerLayers:    innerLayers,
		TrainSamples:   *trainSamples,
		TestSamples:    *testSamples,
		Seed:           *seed,
		LogEvery:       *logEvery,
		InputTransform: *transform,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("cpu=%q cores=%d kernel=%s", cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, span.Kernel())

	files, err := cfg.Files()
	if err != nil {
		log.Fatalf("resolve dataset files: %v", err)
	}
	tr, err := cfg.Transform()
	if err != nil {
		log.Fatalf("input transform: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state := trainer.New(trainer.Options{
		Seed:      cfg.Seed,
		LogEvery:  cfg.LogEvery,
		Transform: tr,
	})
	defer state.Close()

	if err := state.LoadData(ctx, files); err != nil {
		log.Fatalf("load data: %v", err)
	}
	info, err := state.DataInfo()
	if err != nil {
		log.Fatalf("data info: %v", err)
	}
	log.Printf("train=%d test=%d width=%d height=%d input=%d",
		info.TrainCount, info.TestCount, info.Width, info.Height, info.InputSize)

	topo, err := state.DefaultTopology(cfg.InnerLayers...)
	if err != nil {
		log.Fatalf("topology: %v", err)
	}
	log.Printf("topology=%s bytes=%d", topo, model.Bytes(topo))
	if err := state.CreateNet(topo); err != nil {
		log.Fatalf("create net: %v", err)
	}

	if err := state.Train(untilDone(ctx, cfg.TrainSamples)); err != nil {
		log.Fatalf("training failed: %v", err)
	}

	testN := cfg.TestSamples
	if testN == 0 {
		testN = info.TestCount
	}
	if err := state.Test(untilDone(ctx, testN)); err != nil {
		log.Fatalf("testing failed: %v", err)
	}

	p := state.Snapshot()
	log.Printf("done train_samples=%d epoch=%d train_accuracy=%.3f test_samples=%d test_error=%.4f test_accuracy=%.3f",
		p.TrainSamples, p.Epoch, p.TrainAccuracy, p.TestSamples, p.TestMeanError, p.TestAccuracy)
}

// untilDone stops after n samples or when ctx is canceled.
func untilDone(ctx context.Context, n int) func() bool {
	left := trainer.Samples(n)
	return func() bool {
		return ctx.Err() == nil && left()
	}
}

func parseWidths(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
