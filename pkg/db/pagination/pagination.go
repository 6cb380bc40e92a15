package pagination

import (
	"gorm.io/gorm"
)

const DefaultLimit = 200

// Page is a keyset window over rows ordered by a unique, monotonically
// increasing key column.
type Page struct {
	After string
	Limit int
}

func (p Page) limit() int {
	if p.Limit <= 0 {
		return DefaultLimit
	}
	return p.Limit
}

// Scope fetches one row more than the limit so the caller can tell whether
// another page follows.
func (p Page) Scope(column string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if p.After != "" {
			db = db.Where(column+" > ?", p.After)
		}
		return db.Order(column + " ASC").Limit(p.limit() + 1)
	}
}

// Next trims the over-fetched row and returns the page that follows data,
// or nil when data was the last page.
func Next[T any](data []T, p Page, key func(T) string) ([]T, *Page) {
	limit := p.limit()
	if len(data) <= limit {
		return data, nil
	}

	data = data[:limit]
	return data, &Page{After: key(data[len(data)-1]), Limit: limit}
}
