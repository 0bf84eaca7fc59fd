package search

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestEmailPivotOK(t *testing.T) {
	tests := []struct {
		name   string
		q      string
		status string
		want   bool
	}{
		{"email search with active status", "user@campus.edu", "active", true},
		{"email search with disabled status", "user@", "disabled", true},
		{"partial email with active", "@campus", "active", true},
		{"email with ACTIVE status", "user@campus.edu", "ACTIVE", true},

		{"name search with active", "jean dupont", "active", false},
		{"empty search with active", "", "active", false},
		{"email search with empty status", "user@campus.edu", "", false},
		{"email search with all status", "user@campus.edu", "all", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EmailPivotOK(tt.q, tt.status); got != tt.want {
				t.Errorf("EmailPivotOK(%q, %q) = %v, want %v", tt.q, tt.status, got, tt.want)
			}
		})
	}
}

func TestPrefix(t *testing.T) {
	if Prefix("   ") != nil {
		t.Error("expected nil for blank query")
	}
	got := Prefix("Élo.")
	want := bson.M{"$regex": `^elo\.`}
	if got["$regex"] != want["$regex"] {
		t.Errorf("Prefix: got %v, want %v", got, want)
	}
}
