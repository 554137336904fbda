package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"nn-dashboard/internal/dataset"
)

const (
	defaultLogEvery     = 1000
	defaultTrainSamples = 60000
)

var defaultInnerLayers = []int{64}

// Config captures the runtime knobs for a training run.
type Config struct {
	TrainImages    string `yaml:"train_images"`
	TestImages     string `yaml:"test_images"`
	TrainLabels    string `yaml:"train_labels"`
	TestLabels     string `yaml:"test_labels"`
	DataDir        string `yaml:"data_dir"`
	InnerLayers    []int  `yaml:"inner_layers"`
	TrainSamples   int    `yaml:"train_samples"`
	TestSamples    int    `yaml:"test_samples"`
	Seed           int64  `yaml:"seed"`
	LogEvery       int    `yaml:"log_every"`
	InputTransform string `yaml:"input_transform"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	TrainImages    string
	TestImages     string
	TrainLabels    string
	TestLabels     string
	DataDir        string
	InnerLayers    []int
	TrainSamples   int
	TestSamples    int
	Seed           int64
	LogEvery       int
	InputTransform string
}

// Load reads and validates a Config from YAML.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	defer f.Close()

	cfg := &Config{}
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.TrainImages != "" {
		c.TrainImages = o.TrainImages
	}
	if o.TestImages != "" {
		c.TestImages = o.TestImages
	}
	if o.TrainLabels != "" {
		c.TrainLabels = o.TrainLabels
	}
	if o.TestLabels != "" {
		c.TestLabels = o.TestLabels
	}
	if o.DataDir != "" {
		c.DataDir = o.DataDir
	}
	if len(o.InnerLayers) > 0 {
		c.InnerLayers = append([]int(nil), o.InnerLayers...)
	}
	if o.TrainSamples > 0 {
		c.TrainSamples = o.TrainSamples
	}
	if o.TestSamples > 0 {
		c.TestSamples = o.TestSamples
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.LogEvery > 0 {
		c.LogEvery = o.LogEvery
	}
	if o.InputTransform != "" {
		c.InputTransform = o.InputTransform
	}
}

// Validate verifies the config is runnable and fills defaults.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.DataDir == "" {
		if err := c.explicitFiles().Validate(); err != nil {
			return errors.Wrap(err, "either data_dir or all four dataset paths must be set")
		}
	}
	if len(c.InnerLayers) == 0 {
		c.InnerLayers = append([]int(nil), defaultInnerLayers...)
	}
	for i, w := range c.InnerLayers {
		if w <= 0 {
			return errors.Errorf("inner_layers[%d] must be > 0 (got %d)", i, w)
		}
	}
	if c.TrainSamples < 0 {
		return errors.Errorf("train_samples must be >= 0 (got %d)", c.TrainSamples)
	}
	if c.TrainSamples == 0 {
		c.TrainSamples = defaultTrainSamples
	}
	if c.TestSamples < 0 {
		return errors.Errorf("test_samples must be >= 0 (got %d)", c.TestSamples)
	}
	if c.LogEvery <= 0 {
		c.LogEvery = defaultLogEvery
	}
	if _, err := dataset.ParseTransform(c.InputTransform); err != nil {
		return err
	}
	return nil
}

// Files resolves the dataset paths, discovering them under data_dir when set.
// Explicit paths win over discovered ones.
func (c *Config) Files() (dataset.Files, error) {
	files := c.explicitFiles()
	if c.DataDir == "" {
		return files, files.Validate()
	}
	found, err := dataset.DiscoverFiles(c.DataDir)
	if err != nil {
		return dataset.Files{}, err
	}
	if files.TrainImages == "" {
		files.TrainImages = found.TrainImages
	}
	if files.TestImages == "" {
		files.TestImages = found.TestImages
	}
	if files.TrainLabels == "" {
		files.TrainLabels = found.TrainLabels
	}
	if files.TestLabels == "" {
		files.TestLabels = found.TestLabels
	}
	return files, nil
}

// Transform returns the configured input transform, nil for none.
func (c *Config) Transform() (dataset.Transform, error) {
	return dataset.ParseTransform(c.InputTransform)
}

func (c *Config) explicitFiles() dataset.Files {
	return dataset.Files{
		TrainImages: c.TrainImages,
		TestImages:  c.TestImages,
		TrainLabels: c.TrainLabels,
		TestLabels:  c.TestLabels,
	}
}
