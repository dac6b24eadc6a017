package feed

// Cursor is an opaque pagination position. Token-based cursors take
// precedence: when the API hands back a continuation token the token
// drives the next fetch and the page counter resets to 1. APIs that only
// paginate by number leave Token empty and the counter advances instead.
//
// Cursor state is process-local. It is never persisted across runs; one
// sweep owns its cursor from the first page until the stop condition.
type Cursor struct {
	Token string
	Page  int
}

// FirstPage returns the cursor for the start of a sweep.
func FirstPage() Cursor {
	return Cursor{Page: 1}
}

// Advance returns the cursor for the next fetch. A non-empty token wins
// over the page counter.
func (c Cursor) Advance(token string) Cursor {
	if token != "" {
		return Cursor{Token: token, Page: 1}
	}
	return Cursor{Page: c.Page + 1}
}
