// internal/app/system/search/search.go
package search

import (
	"regexp"
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
)

// Prefix returns an anchored regex condition matching folded values that
// start with q, or nil when q folds to nothing. Anchored prefixes can use
// the *_ci indexes.
func Prefix(q string) bson.M {
	q = text.Fold(strings.TrimSpace(q))
	if q == "" {
		return nil
	}
	return bson.M{"$regex": "^" + regexp.QuoteMeta(q)}
}

// EmailPivotOK reports whether a paged user search should sort by email
// instead of name.
//
// We pivot when the query looks like an email (contains '@') and the result
// set is constrained by status, which keeps the indexed path selective.
//
//	sortField := "full_name_ci"
//	if search.EmailPivotOK(q, status) {
//	    sortField = "email_ci"
//	}
func EmailPivotOK(q, status string) bool {
	return strings.Contains(q, "@") && equalsAnyFold(status, "active", "disabled")
}

func equalsAnyFold(s string, vals ...string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	for _, v := range vals {
		if s == strings.ToLower(v) {
			return true
		}
	}
	return false
}
