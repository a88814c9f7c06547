package listquery

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// SearchKey is the filter that switches a query to the search endpoint.
const SearchKey = "search"

// Filters are the query parameters of a list (search text, category,
// country...). Two Filters with the same content have the same Key no
// matter how they were built.
type Filters map[string]any

// Key is a content hash of the filters. Empty values are ignored, so
// {"search": ""} and {} are the same query.
func (f Filters) Key() uint64 {
	// encoding/json writes map keys sorted, which makes the encoding canonical.
	b, err := json.Marshal(f.compact())
	if err != nil {
		// Unencodable values still get a stable, content-based key.
		b = []byte(fmt.Sprintf("%v", f.compact()))
	}
	return xxhash.Sum64(b)
}

// Search returns the trimmed free-text search filter.
func (f Filters) Search() string {
	s, _ := f[SearchKey].(string)
	return strings.TrimSpace(s)
}

// Clone returns a shallow copy.
func (f Filters) Clone() Filters {
	out := make(Filters, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func (f Filters) compact() map[string]any {
	out := make(map[string]any, len(f))
	for k, v := range f {
		switch t := v.(type) {
		case nil:
			continue
		case string:
			if strings.TrimSpace(t) == "" {
				continue
			}
			out[k] = strings.TrimSpace(t)
		default:
			out[k] = v
		}
	}
	return out
}
