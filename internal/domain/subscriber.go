package domain

import (
	"bytes"
	"encoding/json"
)

// Subscriber is a user profile as stored under users/<id>.
// A subscriber without a delivery token is inert: it stays in the store but is
// never a push target.
type Subscriber struct {
	ID            string      `json:"-"`
	DeliveryToken string      `json:"fcmToken,omitempty"`
	Username      string      `json:"username,omitempty"`
	FullName      string      `json:"fullName,omitempty"`
	Preferences   Preferences `json:"preferences"`
}

// Preferences holds the per-category opt-in flags. A preferences value that
// is not a JSON object decodes as no preferences at all.
type Preferences struct {
	Categories CategoryFlags `json:"categories,omitempty"`
}

func (p *Preferences) UnmarshalJSON(b []byte) error {
	*p = Preferences{}
	if !isObject(b) {
		return nil
	}
	type plain Preferences
	return json.Unmarshal(b, (*plain)(p))
}

// CategoryFlags maps a category name to its opt-in flag. Non-boolean values
// written by older app versions are ignored rather than failing the decode,
// and a non-object value (array, string) means no category is opted in.
type CategoryFlags map[string]bool

func (f *CategoryFlags) UnmarshalJSON(b []byte) error {
	if !isObject(b) {
		*f = CategoryFlags{}
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(CategoryFlags, len(raw))
	for k, v := range raw {
		if on, ok := v.(bool); ok {
			out[k] = on
		}
	}
	*f = out
	return nil
}

func isObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}

func (s *Subscriber) HasToken() bool { return s.DeliveryToken != "" }

// InterestedIn reports whether the category flag is explicitly true.
func (s *Subscriber) InterestedIn(category string) bool {
	return s.Preferences.Categories[category]
}

// DisplayName prefers the full name, then the username, then fallback.
func (s *Subscriber) DisplayName(fallback string) string {
	if s == nil {
		return fallback
	}
	if s.FullName != "" {
		return s.FullName
	}
	if s.Username != "" {
		return s.Username
	}
	return fallback
}
