package ptr

import "database/sql"

// Ref returns a pointer to the value passed as argument.
//
// Might be replaced by new(T, v) in the future
// https://github.com/golang/go/issues/45624#issuecomment-2671497947
func Ref[T any](v T) *T {
	return &v
}

// FromNull converts a nullable column value to a pointer. NULL becomes nil.
func FromNull[T any](n sql.Null[T]) *T {
	if !n.Valid {
		return nil
	}
	return Ref(n.V)
}

// ToNull converts an optional value to a nullable column value. Nil becomes NULL.
func ToNull[T any](p *T) sql.Null[T] {
	if p == nil {
		return sql.Null[T]{}
	}
	return sql.Null[T]{V: *p, Valid: true}
}
