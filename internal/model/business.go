package model

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Business is a candidate resolved from the directory provider. The identity
// triplet normalized(name)+normalized(address)+normalized(phone) is
// authoritative for deduplication; the provider's own id is not, because the
// same business can surface under different provider ids across pages.
type Business struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Website        string    `json:"website,omitempty" db:"website"`
	Phone          string    `json:"phone,omitempty" db:"phone"`
	Address        string    `json:"address" db:"address"`
	Lat            *float64  `json:"lat,omitempty" db:"lat"`
	Lng            *float64  `json:"lng,omitempty" db:"lng"`
	Rating         *float64  `json:"rating,omitempty" db:"rating"`
	ReviewCount    *int      `json:"review_count,omitempty" db:"review_count"`
	FranchiseGuess *bool     `json:"franchise_guess,omitempty" db:"franchise_guess"`
	ProviderRef    string    `json:"provider_ref" db:"provider_ref"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// DedupKey returns the identity triplet used for streaming deduplication.
func (b *Business) DedupKey() string {
	return NormalizeName(b.Name) + "|" + NormalizeAddress(b.Address) + "|" + NormalizePhone(b.Phone)
}

// addressAbbrev maps common street-suffix spellings to their short forms so
// "123 Main Street" and "123 Main St" normalize identically.
var addressAbbrev = map[string]string{
	"street": "st", "avenue": "ave", "boulevard": "blvd", "drive": "dr",
	"road": "rd", "lane": "ln", "court": "ct", "place": "pl",
	"suite": "ste", "highway": "hwy", "parkway": "pkwy",
	"north": "n", "south": "s", "east": "e", "west": "w",
}

// stripMarks removes diacritics after NFD decomposition.
var stripMarks = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// foldText lowercases, strips diacritics, replaces punctuation with spaces,
// and collapses runs of whitespace.
func foldText(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeName folds a business name for identity comparison.
func NormalizeName(name string) string {
	return foldText(name)
}

// NormalizeAddress folds an address and abbreviates common street suffixes.
func NormalizeAddress(addr string) string {
	fields := strings.Fields(foldText(addr))
	for i, f := range fields {
		if abbr, ok := addressAbbrev[f]; ok {
			fields[i] = abbr
		}
	}
	return strings.Join(fields, " ")
}

// NormalizePhone reduces a phone number to digits, dropping a leading US
// country code so "+1 (803) 555-0147" and "8035550147" compare equal.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	return digits
}
