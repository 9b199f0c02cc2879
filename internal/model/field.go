package model

import (
	"encoding/json"
	"time"
)

// Scope is the persistence partition a block field belongs to.
type Scope string

const (
	// ScopeContent fields hold one value per block usage, edited by authors.
	ScopeContent Scope = "content"
	// ScopeUserState fields hold one value per learner per block usage.
	ScopeUserState Scope = "user_state"
)

// ScopeKey addresses one set of fields. LearnerID is empty for ScopeContent.
type ScopeKey struct {
	UsageID   string
	Scope     Scope
	LearnerID string
}

// ContentKey addresses the content-scoped fields of a block usage.
func ContentKey(usageID string) ScopeKey {
	return ScopeKey{UsageID: usageID, Scope: ScopeContent}
}

// LearnerKey addresses one learner's user_state fields of a block usage.
func LearnerKey(usageID, learnerID string) ScopeKey {
	return ScopeKey{UsageID: usageID, Scope: ScopeUserState, LearnerID: learnerID}
}

// Fields maps a field name to its JSON-encoded value. A name that is absent
// takes the field's default when decoded.
type Fields map[string]json.RawMessage

// String decodes a string field, returning def if it is missing or not a string.
func (f Fields) String(name, def string) string {
	raw, ok := f[name]
	if !ok {
		return def
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return def
	}
	return v
}

// Bool decodes a boolean field, returning def if it is missing or not a boolean.
func (f Fields) Bool(name string, def bool) bool {
	raw, ok := f[name]
	if !ok {
		return def
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return def
	}
	return v
}

// Set encodes v under name. Values are always plain strings or booleans,
// so marshalling cannot fail.
func (f Fields) Set(name string, v any) {
	raw, _ := json.Marshal(v)
	f[name] = raw
}

// FieldRow is one persisted field as stored in block_fields.
type FieldRow struct {
	UsageID   string          `json:"usage_id"`
	Scope     Scope           `json:"scope"`
	LearnerID string          `json:"learner_id,omitempty"`
	Name      string          `json:"name"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}
