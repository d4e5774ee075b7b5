package upstream

// List is the {items, total} envelope every list endpoint returns.
type List[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}
