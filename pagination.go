package gamekit

import (
	"context"

	"github.com/uptrace/bun"
)

// PageInfo contains pagination metadata.
type PageInfo struct {
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
	TotalCount      int  `json:"totalCount,omitempty"`
}

// OffsetPage represents an offset-based paginated result.
type OffsetPage[T any] struct {
	Items      []T      `json:"items"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	TotalItems int      `json:"totalItems"`
	TotalPages int      `json:"totalPages"`
	PageInfo   PageInfo `json:"pageInfo"`
}

// DefaultPageSize is the default number of items per page.
const DefaultPageSize = 20

// MaxPageSize is the maximum allowed page size.
const MaxPageSize = 100

// Paginate applies offset-based pagination to a query.
//
//	var games []game.Game
//	db.NewSelect().Model(&games).Apply(gamekit.Paginate(2, 10)).Scan(ctx)
func Paginate(page, pageSize int) func(*bun.SelectQuery) *bun.SelectQuery {
	page, pageSize = normalizePage(page, pageSize)
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Limit(pageSize).Offset((page - 1) * pageSize)
	}
}

// PaginateWithCount counts the rows queryFn selects and loads one page of
// them. A page past the end comes back empty without a second query.
//
//	page, err := gamekit.PaginateWithCount[game.Game](ctx, db, 1, 10, func(q *bun.SelectQuery) *bun.SelectQuery {
//	    return q.Where("g.group_key = ?", key).OrderExpr("g.id ASC")
//	})
func PaginateWithCount[T any](ctx context.Context, db IDB, page, pageSize int, queryFn func(*bun.SelectQuery) *bun.SelectQuery) (*OffsetPage[T], error) {
	page, pageSize = normalizePage(page, pageSize)

	total, err := Count[T](ctx, db, queryFn)
	if err != nil {
		return nil, err
	}

	items := []T{}
	if (page-1)*pageSize < total {
		q := db.NewSelect().Model(&items).Apply(Paginate(page, pageSize))
		if queryFn != nil {
			q = queryFn(q)
		}
		if err := q.Scan(ctx); err != nil {
			return nil, modelError[T](db, err, "PaginateWithCount")
		}
	}

	return newOffsetPage(items, page, pageSize, total), nil
}

func newOffsetPage[T any](items []T, page, pageSize, total int) *OffsetPage[T] {
	totalPages := max((total+pageSize-1)/pageSize, 1)

	return &OffsetPage[T]{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: totalPages,
		PageInfo: PageInfo{
			HasNextPage:     page < totalPages,
			HasPreviousPage: page > 1,
			TotalCount:      total,
		},
	}
}

// normalizePage clamps page to >= 1 and pageSize to [1, MaxPageSize].
func normalizePage(page, pageSize int) (int, int) {
	page = max(page, 1)
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return page, min(pageSize, MaxPageSize)
}
