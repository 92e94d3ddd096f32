package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Profile is a product sourcing profile that overrides the requirements and
// rubric weights for one search campaign.
type Profile struct {
	Name         string             `yaml:"name"`
	Requirements RequirementsConfig `yaml:"requirements"`
	Weights      map[string]int     `yaml:"weights"`
}

// LoadProfile reads a profile from a YAML file with a top-level "profile" key.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read profile %s", path)
	}

	var wrapper struct {
		Profile Profile `yaml:"profile"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "config: parse profile")
	}
	return &wrapper.Profile, nil
}

// ApplyProfile overlays the non-zero profile values onto c.
func (c *Config) ApplyProfile(p *Profile) {
	if p == nil {
		return
	}
	r := p.Requirements
	if r.MOQMax > 0 {
		c.Requirements.MOQMax = r.MOQMax
	}
	if r.TargetPriceMin > 0 {
		c.Requirements.TargetPriceMin = r.TargetPriceMin
	}
	if r.TargetPriceMax > 0 {
		c.Requirements.TargetPriceMax = r.TargetPriceMax
	}
	if r.TargetOS != "" {
		c.Requirements.TargetOS = r.TargetOS
	}
	if r.TargetScreen != "" {
		c.Requirements.TargetScreen = r.TargetScreen
	}
	if len(r.RedFlags) > 0 {
		c.Requirements.RedFlags = r.RedFlags
	}
	if len(p.Weights) > 0 {
		merged := make(map[string]int, len(c.Scoring.Weights))
		for k, w := range c.Scoring.Weights {
			merged[k] = w
		}
		for k, w := range p.Weights {
			merged[k] = w
		}
		c.Scoring.Weights = merged
	}
}
