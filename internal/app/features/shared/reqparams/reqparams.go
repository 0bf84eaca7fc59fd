// internal/app/features/shared/reqparams/reqparams.go
// Package reqparams reads ids and paging parameters from API requests.
package reqparams

import (
	"net/http"

	uierrors "github.com/dalemusser/campushub/internal/app/features/errors"
	"github.com/dalemusser/campushub/internal/app/system/normalize"
	"github.com/dalemusser/campushub/internal/app/system/paging"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const badID = "Identifiant invalide."

// ObjectID parses the chi URL parameter key. On a malformed id it writes a
// 400 response and returns false.
func ObjectID(w http.ResponseWriter, r *http.Request, key string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, key))
	if err != nil {
		uierrors.Invalid(w, badID)
		return primitive.NilObjectID, false
	}
	return id, true
}

// OptionalObjectID parses a hex id from a request body. Empty input yields nil.
func OptionalObjectID(w http.ResponseWriter, hex string) (*primitive.ObjectID, bool) {
	hex = normalize.QueryParam(hex)
	if hex == "" {
		return nil, true
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		uierrors.Invalid(w, badID)
		return nil, false
	}
	return &id, true
}

// Keyset builds the page window from ?after= and ?limit=.
func Keyset(r *http.Request) paging.Keyset {
	return paging.NewKeyset(paging.ParseAfter(r), paging.ParseLimit(r))
}
