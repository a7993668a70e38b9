package extract

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/sells-group/leadscout/internal/model"
)

// Contact discovery confidence tiers. Structured data names the person or
// mailbox outright; text patterns are guesswork.
const (
	jsonLDConfidence     = 0.9
	emailRegexConfidence = 0.7
	phoneRegexConfidence = 0.6
	nameRegexConfidence  = 0.6
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\(?\d{3}\)?[\s.\-]\d{3}[\s.\-]\d{4}`)
	ownerPattern = regexp.MustCompile(`(?i)(owner|founder|principal|proprietor)[:,\s]{1,3}((?:Dr\.\s)?[A-Z][a-z]+(?:\s[A-Z][a-z]+){1,2})`)

	// Shared mailboxes are still reachable but do not name a person.
	genericMailboxes = map[string]bool{
		"info":     true,
		"contact":  true,
		"support":  true,
		"noreply":  true,
		"no-reply": true,
		"hello":    true,
		"office":   true,
		"admin":    true,
	}

	snippetPolicy = bluemonday.StrictPolicy()
)

// jsonLDEntity is the subset of schema.org markup we read for contacts.
type jsonLDEntity struct {
	Type      any            `json:"@type"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Telephone string         `json:"telephone"`
	Founder   *jsonLDEntity  `json:"founder"`
	Employee  []jsonLDEntity `json:"employee"`
	Graph     []jsonLDEntity `json:"@graph"`
}

// ContactSignals extracts reachability signals from the fetched page:
// structured-data contacts first, text patterns as fallback. Contact signals
// are emitted only when found; their absence says nothing.
func ContactSignals(b *model.Business, doc *goquery.Document, pg *page, now time.Time) []model.Signal {
	mk := func(typ model.SignalType, v model.SignalValue, conf float64) model.Signal {
		return model.Signal{
			BusinessID:  b.ID,
			Type:        typ,
			Value:       v,
			Confidence:  conf,
			EvidenceURL: pg.finalURL,
			SourceKey:   sourceWebsite,
			ObservedAt:  now,
		}
	}

	var signals []model.Signal
	var email, phone, name, role string
	emailConf := emailRegexConfidence
	phoneConf := phoneRegexConfidence
	nameConf := nameRegexConfidence

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		e, ok := parseJSONLD(sel.Text())
		if !ok {
			return true
		}
		if e.Email != "" && email == "" {
			email = strings.TrimPrefix(strings.ToLower(e.Email), "mailto:")
			emailConf = jsonLDConfidence
		}
		if e.Telephone != "" && phone == "" {
			phone = e.Telephone
			phoneConf = jsonLDConfidence
		}
		if p := contactPerson(e); p != nil && name == "" {
			name = p.Name
			role = "owner"
			nameConf = jsonLDConfidence
		}
		return email == "" || phone == "" || name == ""
	})

	if email == "" {
		email = firstNonGenericEmail(pg.body)
	}
	if phone == "" {
		if m := phonePattern.FindString(pg.body); m != "" {
			phone = strings.TrimSpace(m)
		}
	}
	if name == "" {
		if m := ownerPattern.FindStringSubmatch(pg.body); m != nil {
			name = m[2]
			role = strings.ToLower(m[1])
		}
	}

	if email != "" {
		s := mk(model.SignalContactEmail, model.ObjectValue(map[string]string{"email": email}), emailConf)
		s.EvidenceSnippet = sanitizeSnippet(email)
		signals = append(signals, s)
	}
	if phone != "" {
		signals = append(signals, mk(model.SignalContactPhone, model.ObjectValue(map[string]string{"phone": phone}), phoneConf))
	}
	if name != "" {
		s := mk(model.SignalContactName, model.ObjectValue(map[string]string{"name": name, "role": role}), nameConf)
		s.EvidenceSnippet = sanitizeSnippet(name)
		signals = append(signals, s)
		signals = append(signals, mk(model.SignalOwnerIdentified, model.BoolValue(true), nameConf))
	}

	return signals
}

// parseJSONLD tolerates both a single entity and a top-level array.
func parseJSONLD(raw string) (*jsonLDEntity, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	if strings.HasPrefix(raw, "[") {
		var list []jsonLDEntity
		if err := json.Unmarshal([]byte(raw), &list); err != nil || len(list) == 0 {
			return nil, false
		}
		return &list[0], true
	}
	var e jsonLDEntity
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, false
	}
	if len(e.Graph) > 0 {
		for i := range e.Graph {
			if contactPerson(&e.Graph[i]) != nil || e.Graph[i].Email != "" || e.Graph[i].Telephone != "" {
				return &e.Graph[i], true
			}
		}
		return &e.Graph[0], true
	}
	return &e, true
}

// contactPerson returns the named person behind an entity, if any: a founder,
// the first employee, or the entity itself when it is a Person.
func contactPerson(e *jsonLDEntity) *jsonLDEntity {
	if e.Founder != nil && e.Founder.Name != "" {
		return e.Founder
	}
	if len(e.Employee) > 0 && e.Employee[0].Name != "" {
		return &e.Employee[0]
	}
	if t, ok := e.Type.(string); ok && t == "Person" && e.Name != "" {
		return e
	}
	return nil
}

func firstNonGenericEmail(body string) string {
	for _, m := range emailPattern.FindAllString(body, 10) {
		m = strings.ToLower(m)
		local := m[:strings.Index(m, "@")]
		if genericMailboxes[local] {
			continue
		}
		// Asset filenames match the email shape (logo@2x.png).
		if strings.HasSuffix(m, ".png") || strings.HasSuffix(m, ".jpg") || strings.HasSuffix(m, ".svg") || strings.HasSuffix(m, ".webp") {
			continue
		}
		return m
	}
	return ""
}

// sanitizeSnippet strips markup from evidence text before it is stored or
// shown to a user.
func sanitizeSnippet(s string) string {
	clean := snippetPolicy.Sanitize(s)
	clean = strings.Join(strings.Fields(clean), " ")
	const maxSnippet = 160
	if len(clean) > maxSnippet {
		clean = clean[:maxSnippet]
	}
	return clean
}
