package processes

import (
	"encoding/json"
	"sort"
)

// Backend is one federation member.
type Backend struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// UnmarshalJSON decodes a member leniently. Entries that are not objects, or
// whose url or title is not a string, decode to empty fields so one broken
// member does not spoil the whole federation.
func (b *Backend) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		*b = Backend{}
		return nil
	}
	url, _ := raw["url"].(string)
	title, _ := raw["title"].(string)
	*b = Backend{URL: url, Title: title}
	return nil
}

// Federation maps provider identifiers to their backends.
type Federation map[string]Backend

// Lookup returns the backend registered under provider.
func (f Federation) Lookup(provider string) (Backend, bool) {
	b, ok := f[provider]
	return b, ok
}

// Providers returns the member identifiers in sorted order.
func (f Federation) Providers() []string {
	ids := make([]string, 0, len(f))
	for id := range f {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Capabilities is the aggregator's root document; only the federation
// member map is used.
type Capabilities struct {
	Federation Federation `json:"federation"`
}
