// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PageSize is the default number of rows returned by list endpoints.
const PageSize = 20

// MaxPageSize caps the "limit" query parameter.
const MaxPageSize = 100

// Page is the JSON envelope for keyset-paged lists.
// NextCursor is empty on the last page.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// ParseLimit reads the "limit" query parameter, clamped to [1, MaxPageSize].
// Returns PageSize when absent or invalid.
func ParseLimit(r *http.Request) int {
	s := query.Get(r, "limit")
	if s == "" {
		return PageSize
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return PageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

// ParseAfter reads the opaque "after" cursor query parameter.
func ParseAfter(r *http.Request) string {
	return query.Get(r, "after")
}

// TrimPage trims rows fetched with limit+1 look-ahead down to limit and
// reports whether another page exists.
func TrimPage[T any](rows *[]T, limit int) (hasNext bool) {
	if len(*rows) > limit {
		*rows = (*rows)[:limit]
		return true
	}
	return false
}

// Keyset describes one page request over a (sortField, _id) ordering.
type Keyset struct {
	Limit  int
	Cursor *wafflemongo.Cursor
}

// NewKeyset decodes the after cursor. A malformed cursor restarts from the
// first page rather than failing the request.
func NewKeyset(after string, limit int) Keyset {
	if limit <= 0 {
		limit = PageSize
	}
	ks := Keyset{Limit: limit}
	if after != "" {
		if c, ok := wafflemongo.DecodeCursor(after); ok {
			ks.Cursor = &c
		}
	}
	return ks
}

// AscWindow returns the filter for rows strictly after the cursor in
// ascending (sortField, _id) order, or nil on the first page.
func (ks Keyset) AscWindow(sortField string) bson.M {
	if ks.Cursor == nil {
		return nil
	}
	return wafflemongo.KeysetWindow(sortField, "gt", ks.Cursor.CI, ks.Cursor.ID)
}

// NewestFirstWindow returns the filter for rows older than the cursor when
// listing by _id descending, or nil on the first page.
func (ks Keyset) NewestFirstWindow() bson.M {
	if ks.Cursor == nil {
		return nil
	}
	return bson.M{"_id": bson.M{"$lt": ks.Cursor.ID}}
}

// AscFind returns FindOptions sorted by (sortField, _id) ascending with
// limit+1 look-ahead.
func (ks Keyset) AscFind(sortField string) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: sortField, Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(ks.Limit + 1))
}

// NewestFirstFind returns FindOptions sorted by _id descending with limit+1
// look-ahead.
func (ks Keyset) NewestFirstFind() *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(int64(ks.Limit + 1))
}

// Merge ANDs the window into base. base is returned unchanged when window is nil.
func Merge(base, window bson.M) bson.M {
	if window == nil {
		return base
	}
	if len(base) == 0 {
		return window
	}
	return bson.M{"$and": []bson.M{base, window}}
}

// NextCursor builds the cursor for the row after last. Empty when there is no
// next page.
func NextCursor(hasNext bool, key string, id primitive.ObjectID) string {
	if !hasNext {
		return ""
	}
	return wafflemongo.EncodeCursor(key, id)
}
