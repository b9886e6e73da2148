package sqlite

import (
	"database/sql"
	"encoding/json"
	"time"

	"diffkit/internal/domain"
)

// optional stores the zero value of T as NULL.
func optional[T comparable](v T) sql.Null[T] {
	var zero T
	return sql.Null[T]{V: v, Valid: v != zero}
}

// orZero reads a nullable column back, NULL becoming the zero value.
func orZero[T any](n sql.Null[T]) T {
	if !n.Valid {
		var zero T
		return zero
	}
	return n.V
}

func fromPtr[T any](p *T) sql.Null[T] {
	if p == nil {
		return sql.Null[T]{}
	}
	return sql.Null[T]{V: *p, Valid: true}
}

func toPtr[T any](n sql.Null[T]) *T {
	if !n.Valid {
		return nil
	}
	v := n.V
	return &v
}

// jsonColumn encodes a metadata tree. Empty trees are stored as NULL.
func jsonColumn(md *domain.Metadata) (sql.Null[string], error) {
	if md == nil || len(md.AsDictionary()) == 0 {
		return sql.Null[string]{}, nil
	}
	data, err := json.Marshal(md)
	if err != nil {
		return sql.Null[string]{}, err
	}
	return sql.Null[string]{V: string(data), Valid: true}, nil
}

func decodeJSONColumn(col sql.Null[string], target any) error {
	if !col.Valid || col.V == "" {
		return nil
	}
	return json.Unmarshal([]byte(col.V), target)
}

// timeLayout sorts lexically in time order for UTC values
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
