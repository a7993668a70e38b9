package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// SignalType identifies one kind of observation about a business.
type SignalType string

// Directory-derived signal types.
const (
	SignalReviewCount    SignalType = "review_count"
	SignalRating         SignalType = "rating"
	SignalHasPhone       SignalType = "has_phone"
	SignalHasWebsite     SignalType = "has_website"
	SignalFranchiseGuess SignalType = "franchise_guess"
)

// Website-derived signal types.
const (
	SignalNoWebsite        SignalType = "no_website"
	SignalWebsiteError     SignalType = "website_error"
	SignalHasChatWidget    SignalType = "has_chat_widget"
	SignalHasOnlineBooking SignalType = "has_online_booking"
	SignalHasPayments      SignalType = "has_payment_processor"
	SignalHasAnalytics     SignalType = "has_analytics"
	SignalHasCRM           SignalType = "has_crm"
	SignalHasMarketingAuto SignalType = "has_marketing_automation"
	SignalSocialLinks      SignalType = "social_links"
	SignalHasSSL           SignalType = "has_ssl"
	SignalMobileFriendly   SignalType = "mobile_friendly"
	SignalHasPrivacyPolicy SignalType = "has_privacy_policy"
	SignalStructuredData   SignalType = "structured_data_present"
	SignalHoursListed      SignalType = "hours_listed"
	SignalOwnerIdentified  SignalType = "owner_identified"
	SignalContactEmail     SignalType = "contact_email"
	SignalContactPhone     SignalType = "contact_phone"
	SignalContactName      SignalType = "contact_name"
)

// ValueKind discriminates the tagged union carried by SignalValue.
type ValueKind string

const (
	ValueBool   ValueKind = "bool"
	ValueNumber ValueKind = "number"
	ValueObject ValueKind = "object"
)

// SignalValue is a tagged union: exactly one of Bool, Number, or Object is
// meaningful, selected by Kind. Dynamic values are validated at the
// extraction boundary rather than trusted downstream.
type SignalValue struct {
	Kind   ValueKind         `json:"kind"`
	Bool   bool              `json:"bool,omitempty"`
	Number float64           `json:"number,omitempty"`
	Object map[string]string `json:"object,omitempty"`
}

// BoolValue constructs a boolean signal value.
func BoolValue(v bool) SignalValue {
	return SignalValue{Kind: ValueBool, Bool: v}
}

// NumberValue constructs a numeric signal value.
func NumberValue(v float64) SignalValue {
	return SignalValue{Kind: ValueNumber, Number: v}
}

// ObjectValue constructs a structured signal value.
func ObjectValue(v map[string]string) SignalValue {
	return SignalValue{Kind: ValueObject, Object: v}
}

// valueKinds maps each known signal type to its expected value kind.
var valueKinds = map[SignalType]ValueKind{
	SignalReviewCount:    ValueNumber,
	SignalRating:         ValueNumber,
	SignalHasPhone:       ValueBool,
	SignalHasWebsite:     ValueBool,
	SignalFranchiseGuess: ValueBool,

	SignalNoWebsite:        ValueBool,
	SignalWebsiteError:     ValueObject,
	SignalHasChatWidget:    ValueBool,
	SignalHasOnlineBooking: ValueBool,
	SignalHasPayments:      ValueBool,
	SignalHasAnalytics:     ValueBool,
	SignalHasCRM:           ValueBool,
	SignalHasMarketingAuto: ValueBool,
	SignalSocialLinks:      ValueObject,
	SignalHasSSL:           ValueBool,
	SignalMobileFriendly:   ValueBool,
	SignalHasPrivacyPolicy: ValueBool,
	SignalStructuredData:   ValueBool,
	SignalHoursListed:      ValueBool,
	SignalOwnerIdentified:  ValueBool,
	SignalContactEmail:     ValueObject,
	SignalContactPhone:     ValueObject,
	SignalContactName:      ValueObject,
}

// Signal is a single typed, evidenced observation about a business. Signals
// are append-only facts: a later extraction run may add more signals of the
// same type from a different source but never overwrites prior evidence.
type Signal struct {
	BusinessID      string      `json:"business_id" db:"business_id"`
	Type            SignalType  `json:"type" db:"type"`
	Value           SignalValue `json:"value" db:"value"`
	Confidence      float64     `json:"confidence" db:"confidence"`
	EvidenceURL     string      `json:"evidence_url,omitempty" db:"evidence_url"`
	EvidenceSnippet string      `json:"evidence_snippet,omitempty" db:"evidence_snippet"`
	SourceKey       string      `json:"source_key" db:"source_key"`
	ObservedAt      time.Time   `json:"observed_at" db:"observed_at"`
}

// Validate checks that the signal's value kind matches its type and that its
// confidence is in [0,1].
func (s *Signal) Validate() error {
	if s.BusinessID == "" {
		return eris.New("signal: business_id is required")
	}
	if s.SourceKey == "" {
		return eris.Errorf("signal: %s: source_key is required", s.Type)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return eris.Errorf("signal: %s: confidence %v out of [0,1]", s.Type, s.Confidence)
	}
	want, ok := valueKinds[s.Type]
	if !ok {
		return eris.Errorf("signal: unknown type %q", s.Type)
	}
	if s.Value.Kind != want {
		return eris.Errorf("signal: %s: value kind %q, want %q", s.Type, s.Value.Kind, want)
	}
	if want == ValueObject && len(s.Value.Object) == 0 {
		return eris.Errorf("signal: %s: empty object value", s.Type)
	}
	return nil
}

// MarshalValue serializes the tagged-union value for storage.
func (s *Signal) MarshalValue() ([]byte, error) {
	b, err := json.Marshal(s.Value)
	if err != nil {
		return nil, eris.Wrapf(err, "signal: marshal value for %s", s.Type)
	}
	return b, nil
}

// UnmarshalValue deserializes a stored tagged-union value.
func UnmarshalValue(data []byte) (SignalValue, error) {
	var v SignalValue
	if err := json.Unmarshal(data, &v); err != nil {
		return SignalValue{}, eris.Wrap(err, "signal: unmarshal value")
	}
	return v, nil
}
