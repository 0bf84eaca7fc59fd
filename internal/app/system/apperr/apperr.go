// internal/app/system/apperr/apperr.go
//
// Package apperr carries service-level failures as typed errors. Each error
// has a Kind that callers branch on and a French message that is safe to
// show to the end user.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	Unauthenticated Kind = "unauthenticated"
	NotFound        Kind = "not_found"
	Forbidden       Kind = "forbidden"
	Conflict        Kind = "conflict"
	Invalid         Kind = "invalid"
	Limited         Kind = "rate_limited"
	Internal        Kind = "internal"
)

// Error is a typed service error.
type Error struct {
	Kind    Kind
	Message string // user-facing, French
	Err     error  // underlying cause, never shown to users
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrNotFound)
// holds for every not-found error regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an error of kind with a user-facing message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap attaches an underlying cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Sentinels for errors.Is checks.
var (
	ErrUnauthenticated = New(Unauthenticated, "Vous devez être connecté.")
	ErrNotFound        = New(NotFound, "Élément introuvable.")
	ErrForbidden       = New(Forbidden, "Vous n'avez pas les droits nécessaires.")
	ErrConflict        = New(Conflict, "Cette action est en conflit avec l'état actuel.")
	ErrInvalid         = New(Invalid, "Données invalides.")
	ErrInternal        = New(Internal, "Une erreur interne est survenue.")
)

// Frequently used messages.
var (
	ErrForumNotFound     = New(NotFound, "Groupe introuvable.")
	ErrPostNotFound      = New(NotFound, "Publication introuvable.")
	ErrEventNotFound     = New(NotFound, "Événement introuvable.")
	ErrCommentNotFound   = New(NotFound, "Commentaire introuvable.")
	ErrUserNotFound      = New(NotFound, "Utilisateur introuvable.")
	ErrRequestNotFound   = New(NotFound, "Demande introuvable.")
	ErrNotMember         = New(NotFound, "Vous n'êtes pas membre de ce groupe.")
	ErrAlreadyMember     = New(Conflict, "Vous êtes déjà membre de ce groupe.")
	ErrAlreadyRequested  = New(Conflict, "Une demande d'adhésion est déjà en attente.")
	ErrAuthorCannotLeave = New(Conflict, "L'auteur du groupe ne peut pas le quitter.")
	ErrNotPublic         = New(Invalid, "Ce groupe n'est pas public.")
	ErrNotPrivate        = New(Invalid, "Ce groupe n'est pas privé.")
	ErrNotManager        = New(Forbidden, "Vous ne pouvez pas gérer ce groupe.")
	ErrMembersOnly       = New(Forbidden, "Seuls les membres du groupe peuvent publier.")

	ErrMemberNotFound       = New(NotFound, "Membre introuvable.")
	ErrCannotRemoveAuthor   = New(Conflict, "L'auteur du groupe ne peut pas être retiré.")
	ErrEventCancelled       = New(Conflict, "Cet événement a été annulé.")
	ErrEventFull            = New(Conflict, "Cet événement est complet.")
	ErrAlreadyLiked         = New(Conflict, "Vous aimez déjà cette publication.")
	ErrAlreadyFavorite      = New(Conflict, "Déjà dans vos favoris.")
	ErrFavoriteNotFound     = New(NotFound, "Favori introuvable.")
	ErrNotificationNotFound = New(NotFound, "Notification introuvable.")
	ErrEmailTaken           = New(Conflict, "Un compte existe déjà avec cette adresse e-mail.")
	ErrBadCredentials       = New(Unauthenticated, "Adresse e-mail ou mot de passe incorrect.")
	ErrAccountDisabled      = New(Forbidden, "Ce compte est désactivé.")
	ErrNotPending           = New(Conflict, "Ce contenu n'est pas en attente de modération.")
	ErrTooManyAttempts      = New(Limited, "Trop de tentatives. Réessayez dans quelques minutes.")
)

// KindOf returns the kind of err, or Internal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// MessageOf returns the user-facing message for err. Untyped errors get the
// generic internal message so driver details never reach clients.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ErrInternal.Message
}
