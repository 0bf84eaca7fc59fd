// internal/app/system/firebaseauth/firebaseauth.go
// Package firebaseauth lets clients that sign in with Firebase call the API
// with "Authorization: Bearer <ID token>". The token's UID is mapped to a
// campus account through users.firebase_uid.
package firebaseauth

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	userstore "github.com/dalemusser/campushub/internal/app/store/users"
	"github.com/dalemusser/campushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// ErrNoAccount means the token is valid but no campus account matches it.
var ErrNoAccount = errors.New("no account linked to this firebase user")

// TokenVerifier is the subset of *auth.Client used here.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// Users is the subset of the user store used here.
type Users interface {
	GetByFirebaseUID(ctx context.Context, uid string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	LinkFirebaseUID(ctx context.Context, id primitive.ObjectID, uid string) error
}

// NewClient initializes the Firebase Admin SDK. credentialsFile may be empty
// to use Application Default Credentials.
func NewClient(ctx context.Context, projectID, credentialsFile string) (*fbauth.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	return client, nil
}

// Verifier implements auth.TokenVerifier.
type Verifier struct {
	tokens TokenVerifier
	users  Users
	log    *zap.Logger
}

func NewVerifier(tokens TokenVerifier, users Users, logger *zap.Logger) *Verifier {
	return &Verifier{tokens: tokens, users: users, log: logger}
}

// VerifyBearer checks the ID token and returns the campus user id. A user
// seen for the first time is linked by verified email to an existing
// account that has no Firebase link yet.
func (v *Verifier) VerifyBearer(ctx context.Context, idToken string) (string, error) {
	tok, err := v.tokens.VerifyIDToken(ctx, idToken)
	if err != nil {
		return "", fmt.Errorf("verify id token: %w", err)
	}

	u, err := v.users.GetByFirebaseUID(ctx, tok.UID)
	if err == nil {
		return u.ID.Hex(), nil
	}
	if !errors.Is(err, userstore.ErrNotFound) {
		return "", err
	}

	email, verified := emailClaim(tok)
	if email == "" || !verified {
		return "", ErrNoAccount
	}
	u, err = v.users.GetByEmail(ctx, email)
	if errors.Is(err, userstore.ErrNotFound) {
		return "", ErrNoAccount
	}
	if err != nil {
		return "", err
	}
	if u.FirebaseUID != nil && *u.FirebaseUID != tok.UID {
		return "", ErrNoAccount
	}
	if err := v.users.LinkFirebaseUID(ctx, u.ID, tok.UID); err != nil {
		return "", err
	}
	v.log.Info("linked firebase account",
		zap.String("user_id", u.ID.Hex()),
		zap.String("firebase_uid", tok.UID))
	return u.ID.Hex(), nil
}

func emailClaim(tok *fbauth.Token) (string, bool) {
	email, _ := tok.Claims["email"].(string)
	verified, _ := tok.Claims["email_verified"].(bool)
	return email, verified
}
