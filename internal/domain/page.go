package domain

// Page is one page of a collection as reported by the catalog API.
// HasNext is authoritative; it is never derived from len(Items).
type Page[T any] struct {
	Items    []T  `json:"items"`
	Total    int  `json:"total"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
}
