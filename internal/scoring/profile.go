// Package scoring turns a candidate's resolved signal set plus a named
// weighting profile into a 0-100 score with a four-way breakdown and
// human-readable justifications. Scoring is a pure function of its inputs.
package scoring

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Weights is a named four-way split of the final score. The four weights
// must sum to exactly 100.
type Weights struct {
	ICP            int `yaml:"icp" json:"icp"`
	Pain           int `yaml:"pain" json:"pain"`
	Reachability   int `yaml:"reachability" json:"reachability"`
	ComplianceRisk int `yaml:"compliance_risk" json:"compliance_risk"`
}

// Profile is a named weighting. Profiles are data, not code: new ones load
// from the profiles file without touching the engine.
type Profile struct {
	Name    string  `yaml:"name" json:"name"`
	Weights Weights `yaml:"weights" json:"weights"`
}

// Validate checks the weight-conservation invariant.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return eris.New("profile: name is required")
	}
	w := p.Weights
	for _, v := range []int{w.ICP, w.Pain, w.Reachability, w.ComplianceRisk} {
		if v < 0 {
			return eris.Errorf("profile %q: negative weight", p.Name)
		}
	}
	if sum := w.ICP + w.Pain + w.Reachability + w.ComplianceRisk; sum != 100 {
		return eris.Errorf("profile %q: weights sum to %d, want 100", p.Name, sum)
	}
	return nil
}

// BuiltinProfiles returns the profiles shipped with the binary.
func BuiltinProfiles() map[string]Profile {
	return map[string]Profile{
		"generic": {
			Name:    "generic",
			Weights: Weights{ICP: 35, Pain: 35, Reachability: 20, ComplianceRisk: 10},
		},
		"high_reachability": {
			Name:    "high_reachability",
			Weights: Weights{ICP: 20, Pain: 30, Reachability: 45, ComplianceRisk: 5},
		},
		"pain_first": {
			Name:    "pain_first",
			Weights: Weights{ICP: 25, Pain: 45, Reachability: 20, ComplianceRisk: 10},
		},
	}
}

type profilesFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadProfiles returns the builtin profiles overlaid with any defined in the
// YAML file at path. An empty path means builtins only. A file profile with a
// builtin's name replaces it.
func LoadProfiles(path string) (map[string]Profile, error) {
	profiles := BuiltinProfiles()
	if path == "" {
		return profiles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scoring: read profiles file %s", path)
	}

	var pf profilesFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, eris.Wrapf(err, "scoring: parse profiles file %s", path)
	}

	for i := range pf.Profiles {
		p := pf.Profiles[i]
		if err := p.Validate(); err != nil {
			return nil, err
		}
		profiles[p.Name] = p
	}
	return profiles, nil
}

// Names returns the profile names in sorted order, for display.
func Names(profiles map[string]Profile) []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup fetches a profile by name.
func Lookup(profiles map[string]Profile, name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, eris.Errorf("scoring: unknown profile %q", name)
	}
	return p, nil
}
