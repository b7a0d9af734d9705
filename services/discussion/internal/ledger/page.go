package ledger

// Page bounds.
const (
	DefaultLimit = 20
	MaxLimit     = 1000
)

// Page selects a window of a listing.
type Page struct {
	Offset int
	Limit  int
}

// Validate checks 0 <= Offset and 1 <= Limit <= MaxLimit.
func (p Page) Validate() error {
	if p.Offset < 0 {
		return invalid("start", "must be >= 0")
	}
	if p.Limit < 1 || p.Limit > MaxLimit {
		return invalid("limit", "must be between 1 and 1000")
	}
	return nil
}
