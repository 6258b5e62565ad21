package pagination

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Pagination is bound from the query string by gin.
type Pagination struct {
	Limit int `form:"limit"`
}

// Clamp normalises a requested page size: <= 0 falls back to DefaultLimit,
// anything above MaxLimit is capped.
func Clamp(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

func (p Pagination) Size() int {
	return Clamp(p.Limit)
}
