package core

import (
	"context"
	"strings"
)

// Transactor runs fn inside a single unit of work. Repositories called with the ctx handed
// to fn take part in the same transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// ParseOrdering parses "field1,-field2" keeping only the allowed fields.
// allowed maps API field names to column names.
func ParseOrdering(raw string, allowed map[string]string) []DBOrdering {
	var orderings []DBOrdering
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		col, ok := allowed[field]
		if !ok {
			continue
		}
		orderings = append(orderings, DBOrdering{Field: col, Ascending: !descending})
	}
	return orderings
}

// Sequencer hands out gap-free, per-key increasing numbers starting at 1.
// Used for enquiry and admission numbers.
type Sequencer interface {
	Next(ctx context.Context, key string) (int, error)
}
