package domain

// Scope selects the rows a Total is computed over.
//
// An empty string means the filter is absent. Organization is required;
// Resource and Author are optional. Organization and Resource are matched
// as substrings by the count/average queries, while the liked check matches
// Author and Resource exactly.
type Scope struct {
	Organization string
	Resource     string
	Author       string
}

func (s Scope) Validate() error {
	if s.Organization == "" {
		return ErrInvalidScope
	}
	return nil
}

// Total is a computed, never persisted summary for a Scope.
type Total struct {
	Organization string
	Resource     *string
	Author       *string
	Rating       float64
	Reviews      int64
	Likes        int64
	Liked        bool
}
