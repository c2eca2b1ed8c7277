package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// BundleConfig is one purchasable credit bundle preset.
type BundleConfig struct {
	Credits int    `yaml:"credits"`
	Label   string `yaml:"label"`
}

// TierConfig is the displayed credit cost of an analysis tier. The engine
// performs the actual deduction; these values drive cost previews only.
type TierConfig struct {
	Credits       int `yaml:"credits"`
	MemberCredits int `yaml:"member_credits"`
}

// BundlesConfig is the parsed bundle/plan presets file.
type BundlesConfig struct {
	Bundles []BundleConfig `yaml:"bundles"`
	Tiers   struct {
		Standard TierConfig `yaml:"standard"`
		Deep     TierConfig `yaml:"deep"`
	} `yaml:"tiers"`
}

// DefaultBundles mirrors the production presets and is used when no
// bundles file is present.
func DefaultBundles() *BundlesConfig {
	cfg := &BundlesConfig{
		Bundles: []BundleConfig{
			{Credits: 1, Label: "Single Audit"},
			{Credits: 5, Label: "Starter"},
			{Credits: 10, Label: "Operator"},
			{Credits: 50, Label: "Protocol"},
		},
	}
	cfg.Tiers.Standard = TierConfig{Credits: 1, MemberCredits: 0}
	cfg.Tiers.Deep = TierConfig{Credits: 3, MemberCredits: 2}
	return cfg
}

// LoadBundles reads and validates the presets file.
func LoadBundles(bundlesFile string) (*BundlesConfig, error) {
	var bundlesPath string
	if filepath.IsAbs(bundlesFile) {
		bundlesPath = bundlesFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		bundlesPath = filepath.Join(wd, bundlesFile)
	}

	data, err := os.ReadFile(bundlesPath)
	if os.IsNotExist(err) {
		return DefaultBundles(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", bundlesFile, err)
	}

	var cfg BundlesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", bundlesFile, err)
	}

	if len(cfg.Bundles) == 0 {
		return nil, fmt.Errorf("%s defines no bundles", bundlesFile)
	}
	for i, bundle := range cfg.Bundles {
		if bundle.Credits <= 0 {
			return nil, fmt.Errorf("bundle at index %d has non-positive credits", i)
		}
	}
	if cfg.Tiers.Standard.Credits <= 0 || cfg.Tiers.Deep.Credits <= 0 {
		return nil, fmt.Errorf("%s must define positive tier credit costs", bundlesFile)
	}

	return &cfg, nil
}
