package listquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilters_KeyIsContentBased(t *testing.T) {
	a := Filters{"search": "merlot", "country": 3}
	b := Filters{}
	b["country"] = 3
	b["search"] = "merlot"

	assert.Equal(t, a.Key(), b.Key(), "same content, different construction")
	assert.NotEqual(t, a.Key(), Filters{"search": "merlot", "country": 4}.Key())
	assert.Equal(t, Filters{}.Key(), Filters{"search": "  ", "category": nil}.Key(), "empty values are ignored")
	assert.Equal(t, Filters{"search": "red"}.Key(), Filters{"search": " red "}.Key())
}

func TestFilters_Search(t *testing.T) {
	assert.Equal(t, "", Filters{}.Search())
	assert.Equal(t, "", Filters{"search": 12}.Search())
	assert.Equal(t, "pinot", Filters{"search": " pinot "}.Search())
}
