package dao

import (
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// WhereEq filters on column = value.
func WhereEq(column string, value any) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("? = ?", bun.Ident(column), value)
	}
}

// OrderAsc sorts by column, smallest first.
func OrderAsc(column string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.OrderExpr("? ASC", bun.Ident(column))
	}
}

// OrderDesc sorts by column, largest first.
func OrderDesc(column string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.OrderExpr("? DESC", bun.Ident(column))
	}
}

// Limit caps the number of returned rows. Non-positive values are ignored.
func Limit(n int) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if n <= 0 {
			return q
		}
		return q.Limit(n)
	}
}

// unlimited clears the default page size repository.ListTx applies.
func unlimited(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Limit(0)
}
