// Package model defines the business record and match decision types shared
// by the resolver, the slug assigner, and the record adapters.
package model

import "strings"

// BusinessRecord is one business from either the canonical store or an
// external import. Missing fields are empty strings.
type BusinessRecord struct {
	ID          string `json:"id,omitempty" yaml:"id,omitempty" db:"id"`
	Name        string `json:"name" yaml:"name" db:"name"`
	City        string `json:"city,omitempty" yaml:"city,omitempty" db:"city"`
	State       string `json:"state,omitempty" yaml:"state,omitempty" db:"state"`
	Phone       string `json:"phone,omitempty" yaml:"phone,omitempty" db:"phone"`
	ExternalKey string `json:"external_key,omitempty" yaml:"external_key,omitempty" db:"place_id"`
	Slug        string `json:"slug,omitempty" yaml:"slug,omitempty" db:"slug"`

	// Extra holds carried columns (e.g. reviews_link) keyed by column name.
	Extra map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Get returns a field value by column name. Unknown columns are looked up
// in Extra.
func (r BusinessRecord) Get(field string) string {
	switch strings.ToLower(field) {
	case FieldID:
		return r.ID
	case FieldName:
		return r.Name
	case FieldCity:
		return r.City
	case FieldState:
		return r.State
	case FieldPhone:
		return r.Phone
	case FieldExternalKey, "external_key", "externalkey":
		return r.ExternalKey
	case FieldSlug:
		return r.Slug
	default:
		return r.Extra[field]
	}
}

// Set assigns a field value by column name. Unknown columns go to Extra.
func (r *BusinessRecord) Set(field, value string) {
	switch strings.ToLower(field) {
	case FieldID:
		r.ID = value
	case FieldName:
		r.Name = value
	case FieldCity:
		r.City = value
	case FieldState:
		r.State = value
	case FieldPhone:
		r.Phone = value
	case FieldExternalKey, "external_key", "externalkey":
		r.ExternalKey = value
	case FieldSlug:
		r.Slug = value
	default:
		if r.Extra == nil {
			r.Extra = make(map[string]string)
		}
		r.Extra[field] = value
	}
}

// Column names of the canonical companies table.
const (
	FieldID          = "id"
	FieldName        = "name"
	FieldCity        = "city"
	FieldState       = "state"
	FieldPhone       = "phone"
	FieldExternalKey = "place_id"
	FieldSlug        = "slug"
)

// CoreFields lists the columns every record source must provide, in the
// order the store selects them.
var CoreFields = []string{FieldID, FieldName, FieldCity, FieldState, FieldPhone, FieldExternalKey, FieldSlug}

// IsCoreField reports whether field is one of CoreFields.
func IsCoreField(field string) bool {
	for _, f := range CoreFields {
		if strings.EqualFold(f, field) {
			return true
		}
	}
	return false
}

// FieldUpdate is a single (id, field, value) write accepted by a
// persistence sink.
type FieldUpdate struct {
	ID    string `json:"id" yaml:"id"`
	Field string `json:"field" yaml:"field"`
	Value string `json:"value" yaml:"value"`
}
