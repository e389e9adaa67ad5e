package fusion

import (
	"fmt"
	"math"
	"os"

	"github.com/lorecheck/lorecheck/internal/domain"
	"gopkg.in/yaml.v3"
)

// SeverityCurve parameterizes how contradiction severity scales with evidence
// confidence and narrative distance.
type SeverityCurve struct {
	// DistanceScale is the narrative distance (in characters) over which
	// severity decays by 1/e.
	DistanceScale float64 `yaml:"distance_scale"`
	HighCutoff    float64 `yaml:"high_cutoff"`
	MediumCutoff  float64 `yaml:"medium_cutoff"`
}

// Config is the externalized tuning surface for fusion and severity: method
// weights per attribute type, the acceptance threshold and margin, and the
// severity curve.
type Config struct {
	// Threshold is the minimum weighted score a value group needs for
	// consensus.
	Threshold float64 `yaml:"threshold"`
	// Margin is the minimum lead over the runner-up group.
	Margin float64 `yaml:"margin"`
	// SingleMethodMin is the confidence a lone non-authoritative method needs
	// before its candidate can become consensus on its own.
	SingleMethodMin float64 `yaml:"single_method_min"`

	DefaultWeights map[domain.Method]float64                          `yaml:"default_weights"`
	Weights        map[domain.AttributeType]map[domain.Method]float64 `yaml:"weights"`
	Authoritative  []domain.Method                                    `yaml:"authoritative"`

	Severity SeverityCurve `yaml:"severity"`
}

// DefaultConfig returns the compiled-in tuning used when no config file is
// given.
func DefaultConfig() Config {
	return Config{
		Threshold:       0.20,
		Margin:          0.05,
		SingleMethodMin: 0.70,
		DefaultWeights: map[domain.Method]float64{
			domain.MethodDependency: 0.35,
			domain.MethodPattern:    0.30,
			domain.MethodEmbedding:  0.20,
			domain.MethodGenerative: 0.15,
		},
		Authoritative: []domain.Method{domain.MethodDependency, domain.MethodPattern},
		Severity: SeverityCurve{
			DistanceScale: 20000,
			HighCutoff:    0.45,
			MediumCutoff:  0.20,
		},
	}
}

// LoadConfig reads a YAML config file, filling gaps from the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read fusion config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse fusion config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that weights sum to 1.0 per attribute type (within
// tolerance) and that thresholds are sane.
func (c Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold %f outside [0,1]", c.Threshold)
	}
	if c.Margin < 0 || c.Margin > 1 {
		return fmt.Errorf("margin %f outside [0,1]", c.Margin)
	}
	check := func(label string, w map[domain.Method]float64) error {
		var sum float64
		for _, v := range w {
			sum += v
		}
		if math.Abs(sum-1.0) > 0.01 {
			return fmt.Errorf("method weights for %s sum to %f, want 1.0", label, sum)
		}
		return nil
	}
	if err := check("default", c.DefaultWeights); err != nil {
		return err
	}
	for t, w := range c.Weights {
		if err := check(string(t), w); err != nil {
			return err
		}
	}
	return nil
}

// Weight returns the configured weight for a method on an attribute type.
func (c Config) Weight(t domain.AttributeType, m domain.Method) float64 {
	if w, ok := c.Weights[t]; ok {
		if v, ok := w[m]; ok {
			return v
		}
		return 0
	}
	return c.DefaultWeights[m]
}

// IsAuthoritative reports whether a lone candidate from this method may form
// consensus without corroboration.
func (c Config) IsAuthoritative(m domain.Method) bool {
	for _, a := range c.Authoritative {
		if a == m {
			return true
		}
	}
	return false
}
