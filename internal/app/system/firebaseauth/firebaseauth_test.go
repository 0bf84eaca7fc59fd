package firebaseauth

import (
	"context"
	"errors"
	"testing"

	fbauth "firebase.google.com/go/v4/auth"
	userstore "github.com/dalemusser/campushub/internal/app/store/users"
	"github.com/dalemusser/campushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeTokens map[string]*fbauth.Token

func (f fakeTokens) VerifyIDToken(_ context.Context, idToken string) (*fbauth.Token, error) {
	if tok, ok := f[idToken]; ok {
		return tok, nil
	}
	return nil, errors.New("invalid token")
}

type fakeUsers struct {
	byEmail map[string]*models.User
	linked  map[string]primitive.ObjectID
}

func (f *fakeUsers) GetByFirebaseUID(_ context.Context, uid string) (*models.User, error) {
	if id, ok := f.linked[uid]; ok {
		return &models.User{ID: id}, nil
	}
	return nil, userstore.ErrNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, userstore.ErrNotFound
}

func (f *fakeUsers) LinkFirebaseUID(_ context.Context, id primitive.ObjectID, uid string) error {
	f.linked[uid] = id
	return nil
}

func TestVerifyBearer(t *testing.T) {
	linkedID := primitive.NewObjectID()
	emailID := primitive.NewObjectID()
	otherUID := "someone-else"
	takenID := primitive.NewObjectID()

	users := &fakeUsers{
		byEmail: map[string]*models.User{
			"ana@example.edu":   {ID: emailID, Email: "ana@example.edu"},
			"taken@example.edu": {ID: takenID, FirebaseUID: &otherUID},
		},
		linked: map[string]primitive.ObjectID{"uid-linked": linkedID},
	}
	tokens := fakeTokens{
		"tok-linked":     {UID: "uid-linked"},
		"tok-email":      {UID: "uid-ana", Claims: map[string]interface{}{"email": "ana@example.edu", "email_verified": true}},
		"tok-unverified": {UID: "uid-x", Claims: map[string]interface{}{"email": "ana@example.edu", "email_verified": false}},
		"tok-unknown":    {UID: "uid-y", Claims: map[string]interface{}{"email": "nobody@example.edu", "email_verified": true}},
		"tok-taken":      {UID: "uid-z", Claims: map[string]interface{}{"email": "taken@example.edu", "email_verified": true}},
	}
	v := NewVerifier(tokens, users, zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		name    string
		token   string
		want    string
		wantErr error
	}{
		{"already linked", "tok-linked", linkedID.Hex(), nil},
		{"linked by verified email", "tok-email", emailID.Hex(), nil},
		{"unverified email", "tok-unverified", "", ErrNoAccount},
		{"no account", "tok-unknown", "", ErrNoAccount},
		{"email owned by another firebase user", "tok-taken", "", ErrNoAccount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.VerifyBearer(ctx, tt.token)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("got (%q, %v), want %q", got, err, tt.want)
			}
		})
	}

	if users.linked["uid-ana"] != emailID {
		t.Error("verified email login should link the account")
	}
	if _, err := v.VerifyBearer(ctx, "garbage"); err == nil {
		t.Error("expected invalid token error")
	}
}
