// Package model defines the core data types shared across the lead discovery
// and scoring pipeline: queries, businesses, signals, leads, and jobs.
package model

import (
	"errors"
	"strings"
)

// SortOrder controls how leads are ordered within a job.
type SortOrder string

const (
	SortByScore  SortOrder = "score"
	SortByRating SortOrder = "rating"
)

// Geo describes the geographic scope of a search.
type Geo struct {
	City     string  `json:"city"`
	State    string  `json:"state"`
	RadiusKM float64 `json:"radius_km"`
	// Lat/Lng are optional; when set the directory search is biased to a
	// circle of RadiusKM around the point.
	Lat *float64 `json:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty"`
}

// Constraint is a single structured requirement on candidates, e.g.
// {field: "rating", op: "gte", value: "4.0"}.
type Constraint struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value string `json:"value"`
}

// Constraints splits requirements into hard and soft sets.
type Constraints struct {
	Must     []Constraint `json:"must,omitempty"`
	Optional []Constraint `json:"optional,omitempty"`
}

// ResultSize bounds how many candidates a job pursues through extraction
// and scoring.
type ResultSize struct {
	Target int `json:"target"`
}

// Query is a validated, structured search request. It is produced by an
// external natural-language parser and is immutable once submitted to a job.
type Query struct {
	Vertical        string      `json:"vertical"`
	Geo             Geo         `json:"geo"`
	Constraints     Constraints `json:"constraints"`
	Exclusions      []string    `json:"exclusions,omitempty"`
	ResultSize      ResultSize  `json:"result_size"`
	SortBy          SortOrder   `json:"sort_by,omitempty"`
	ComplianceFlags []string    `json:"compliance_flags,omitempty"`
}

// validConstraintOps are the comparison operators accepted in constraints.
var validConstraintOps = map[string]bool{
	"eq": true, "neq": true, "gt": true, "gte": true, "lt": true, "lte": true,
	"contains": true,
}

const (
	// DefaultResultTarget is used when a query does not bound its result set.
	DefaultResultTarget = 25
	// MaxResultTarget caps the candidates pursued per job for cost control.
	MaxResultTarget = 200
	// MaxRadiusKM is the widest search radius the directory provider honors.
	MaxRadiusKM = 50
)

// Validate checks the query for malformed geo and constraints. It is called
// before a job is created; a failing query never reaches the pipeline.
func (q *Query) Validate() error {
	if strings.TrimSpace(q.Vertical) == "" {
		return NewValidationError("vertical", "must not be empty")
	}
	if strings.TrimSpace(q.Geo.City) == "" {
		return NewValidationError("geo.city", "must not be empty")
	}
	if len(strings.TrimSpace(q.Geo.State)) != 2 {
		return NewValidationError("geo.state", "must be a two-letter state code")
	}
	if q.Geo.RadiusKM <= 0 || q.Geo.RadiusKM > MaxRadiusKM {
		return NewValidationError("geo.radius_km", "must be in (0, 50]")
	}
	if (q.Geo.Lat == nil) != (q.Geo.Lng == nil) {
		return NewValidationError("geo", "lat and lng must be set together")
	}
	if q.Geo.Lat != nil && (*q.Geo.Lat < -90 || *q.Geo.Lat > 90) {
		return NewValidationError("geo.lat", "must be in [-90, 90]")
	}
	if q.Geo.Lng != nil && (*q.Geo.Lng < -180 || *q.Geo.Lng > 180) {
		return NewValidationError("geo.lng", "must be in [-180, 180]")
	}
	if q.ResultSize.Target < 0 || q.ResultSize.Target > MaxResultTarget {
		return NewValidationError("result_size.target", "must be in [0, 200]")
	}
	for _, c := range append(append([]Constraint{}, q.Constraints.Must...), q.Constraints.Optional...) {
		if strings.TrimSpace(c.Field) == "" {
			return NewValidationError("constraints", "constraint field must not be empty")
		}
		if !validConstraintOps[c.Op] {
			return NewValidationError("constraints", "unknown constraint op "+c.Op)
		}
	}
	switch q.SortBy {
	case "", SortByScore, SortByRating:
	default:
		return NewValidationError("sort_by", "unknown sort order "+string(q.SortBy))
	}
	return nil
}

// Target returns the effective candidate budget for the query.
func (q *Query) Target() int {
	if q.ResultSize.Target > 0 {
		return q.ResultSize.Target
	}
	return DefaultResultTarget
}

// SearchTerms renders the query into directory search terms, e.g.
// "dentist in Columbia, SC".
func (q *Query) SearchTerms() string {
	return q.Vertical + " in " + q.Geo.City + ", " + strings.ToUpper(q.Geo.State)
}

// ValidationError marks a query field that failed validation. It is returned
// before any job is created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid query: " + e.Field + ": " + e.Reason
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
