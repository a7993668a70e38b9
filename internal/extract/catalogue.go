// Package extract derives typed, evidenced signals for each candidate from
// its directory record and its website.
package extract

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadscout/internal/model"
)

//go:embed catalogue.yaml
var defaultCatalogueYAML []byte

// Pattern is a single generic keyword with its match confidence.
type Pattern struct {
	Pattern    string  `yaml:"pattern"`
	Confidence float64 `yaml:"confidence"`
}

// Vendor is a named product whose presence on a page implies the family's
// capability. Exact vendor strings score higher than generic keywords.
type Vendor struct {
	Name       string   `yaml:"name"`
	Patterns   []string `yaml:"patterns"`
	Confidence float64  `yaml:"confidence"`
}

// Family is one detectable capability (chat, booking, payments, ...).
type Family struct {
	Key     string           `yaml:"key"`
	Signal  model.SignalType `yaml:"signal"`
	Vendors []Vendor         `yaml:"vendors"`
	Generic []Pattern        `yaml:"generic"`
}

// Social is a recognized social-media platform link pattern.
type Social struct {
	Platform string `yaml:"platform"`
	Pattern  string `yaml:"pattern"`
}

// Catalogue is the versioned pattern data driving website extraction. It is
// loaded from YAML so new vendors ship without a code change.
type Catalogue struct {
	Version  int      `yaml:"version"`
	Families []Family `yaml:"families"`
	Socials  []Social `yaml:"socials"`
}

// FamilyMatch reports the best match for one family within a page body.
type FamilyMatch struct {
	Family     *Family
	Matched    bool
	Vendor     string  // vendor name, or "" for a generic keyword match
	Pattern    string  // the pattern that hit
	Confidence float64 // 0.7 when the family did not match (absence confidence)
}

// absenceConfidence applies when a scanned page shows no trace of a family.
// A page can load a capability from places the scan cannot see, so absence
// is asserted more cautiously than presence.
const absenceConfidence = 0.7

// DefaultCatalogue parses the embedded catalogue.
func DefaultCatalogue() (*Catalogue, error) {
	return parseCatalogue(defaultCatalogueYAML)
}

// LoadCatalogue reads a catalogue from path, falling back to the embedded
// default when path is empty.
func LoadCatalogue(path string) (*Catalogue, error) {
	if path == "" {
		return DefaultCatalogue()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue: read %s", path)
	}
	return parseCatalogue(data)
}

func parseCatalogue(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "catalogue: parse yaml")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalogue) validate() error {
	if c.Version <= 0 {
		return eris.New("catalogue: missing version")
	}
	if len(c.Families) == 0 {
		return eris.New("catalogue: no families")
	}
	for _, f := range c.Families {
		if f.Key == "" || f.Signal == "" {
			return eris.Errorf("catalogue: family %q missing key or signal", f.Key)
		}
		for _, v := range f.Vendors {
			if v.Confidence <= 0 || v.Confidence > 1 {
				return eris.Errorf("catalogue: %s vendor %q confidence out of range", f.Key, v.Name)
			}
			if len(v.Patterns) == 0 {
				return eris.Errorf("catalogue: %s vendor %q has no patterns", f.Key, v.Name)
			}
		}
		for _, g := range f.Generic {
			if g.Confidence <= 0 || g.Confidence > 1 {
				return eris.Errorf("catalogue: %s generic %q confidence out of range", f.Key, g.Pattern)
			}
		}
	}
	return nil
}

// MatchFamily scans a lowercased page body for the family's vendors first,
// then its generic keywords. The highest-confidence hit wins.
func (c *Catalogue) MatchFamily(f *Family, lowerBody string) FamilyMatch {
	best := FamilyMatch{Family: f, Confidence: absenceConfidence}
	for i := range f.Vendors {
		v := &f.Vendors[i]
		for _, p := range v.Patterns {
			if strings.Contains(lowerBody, strings.ToLower(p)) && (!best.Matched || v.Confidence > best.Confidence) {
				best.Matched = true
				best.Vendor = v.Name
				best.Pattern = p
				best.Confidence = v.Confidence
			}
		}
	}
	for _, g := range f.Generic {
		if strings.Contains(lowerBody, strings.ToLower(g.Pattern)) && (!best.Matched || g.Confidence > best.Confidence) {
			best.Matched = true
			best.Vendor = ""
			best.Pattern = g.Pattern
			best.Confidence = g.Confidence
		}
	}
	return best
}

// MatchSocials returns platform → first matching link location for every
// social platform referenced in the body.
func (c *Catalogue) MatchSocials(lowerBody string) map[string]string {
	found := make(map[string]string)
	for _, s := range c.Socials {
		if idx := strings.Index(lowerBody, s.Pattern); idx >= 0 {
			end := idx + len(s.Pattern) + 40
			if end > len(lowerBody) {
				end = len(lowerBody)
			}
			snippet := lowerBody[idx:end]
			// Trim at the first delimiter so the evidence is just the link.
			for _, stop := range []string{`"`, "'", " ", "<", ">", ")"} {
				if cut := strings.Index(snippet, stop); cut >= 0 {
					snippet = snippet[:cut]
				}
			}
			if _, ok := found[s.Platform]; !ok {
				found[s.Platform] = snippet
			}
		}
	}
	// twitter.com and x.com are the same platform; keep one.
	if _, hasTwitter := found["twitter"]; hasTwitter {
		delete(found, "x")
	}
	return found
}
