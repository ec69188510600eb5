// Package spotlight holds the canonical search state of the spotlight
// (quick search) box.
//
// Decoding never fails: malformed or mistyped input falls back to the
// empty search.
package spotlight

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/gorilla/schema"
)

// Search is the validated spotlight search state.
type Search struct {
	Search string `schema:"search,omitempty" json:"search"`
}

var (
	decoder = newDecoder()
	encoder = schema.NewEncoder()
)

func newDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

// FromQuery reads the search state from URL query values.
func FromQuery(values url.Values) Search {
	var s Search
	if err := decoder.Decode(&s, values); err != nil {
		return Search{}
	}
	return s.normalize()
}

// FromJSON reads the search state from a JSON object. A missing, null or
// non-string "search" value yields the empty search.
func FromJSON(data []byte) Search {
	var raw struct {
		Search json.RawMessage `json:"search"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Search{}
	}
	var s Search
	if err := json.Unmarshal(raw.Search, &s.Search); err != nil {
		return Search{}
	}
	return s.normalize()
}

// Query encodes the search state back into URL query values. The empty
// search encodes to no values.
func (s Search) Query() url.Values {
	values := url.Values{}
	if err := encoder.Encode(s.normalize(), values); err != nil {
		return url.Values{}
	}
	return values
}

func (s Search) normalize() Search {
	return Search{Search: strings.TrimSpace(s.Search)}
}
