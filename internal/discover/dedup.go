package discover

import "github.com/sells-group/leadscout/internal/model"

// franchiseNameThreshold is the number of distinct locations sharing one
// normalized name before the name is guessed to be a franchise.
const franchiseNameThreshold = 3

// Deduper deduplicates streaming candidates by the identity triplet
// normalized(name)+normalized(address)+normalized(phone). The provider id is
// deliberately not part of the key: the same business can reappear under a
// different provider id on a later page.
type Deduper struct {
	seen      map[string]bool
	nameCount map[string]int
}

// NewDeduper creates an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{
		seen:      make(map[string]bool),
		nameCount: make(map[string]int),
	}
}

// Add records a candidate and reports whether it is new.
func (d *Deduper) Add(b *model.Business) bool {
	key := b.DedupKey()
	if d.seen[key] {
		return false
	}
	d.seen[key] = true
	// Count once per unique location; exact re-listings of one address are
	// not evidence of a chain.
	d.nameCount[model.NormalizeName(b.Name)]++
	return true
}

// FranchiseGuess reports whether the business name was seen at enough
// distinct locations to look like a chain.
func (d *Deduper) FranchiseGuess(name string) bool {
	return d.nameCount[model.NormalizeName(name)] >= franchiseNameThreshold
}

// Unique returns the number of unique candidates observed.
func (d *Deduper) Unique() int {
	return len(d.seen)
}
