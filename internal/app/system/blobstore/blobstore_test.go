package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/campushub/internal/testutil"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestNewKey(t *testing.T) {
	now := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)
	key := NewKey(now, `C:\Users\me\Photo de Groupe.PNG`)
	if !strings.HasPrefix(key, "uploads/2026/03/") {
		t.Errorf("prefix: %q", key)
	}
	if !strings.HasSuffix(key, "-photo-de-groupe.png") {
		t.Errorf("suffix: %q", key)
	}
	if !ValidKey(key) {
		t.Errorf("ValidKey(%q) = false", key)
	}
	if NewKey(now, "a.png") == NewKey(now, "a.png") {
		t.Error("keys should be unique")
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{"été 2026.jpg", "t-2026.jpg"},
		{"<script>", "script"},
		{"", "file"},
		{"...", "file"},
	}
	for _, tt := range tests {
		if got := cleanName(tt.in); got != tt.want {
			t.Errorf("cleanName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"uploads/2026/03/0b6f2f3e-8a44-4d7e-9d0c-8b9b8f8f8f8f-a.png", true},
		{"uploads/2026/03/../../secret", false},
		{"avatars/2026/03/0b6f2f3e-8a44-4d7e-9d0c-8b9b8f8f8f8f-a.png", false},
		{"uploads/2026/03/short", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidKey(tt.key); got != tt.want {
			t.Errorf("ValidKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

// exerciseStore runs the same contract against any Store.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	key := NewKey(time.Now(), "hello.txt")

	if _, _, err := s.Open(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open missing: got %v, want ErrNotFound", err)
	}
	if err := s.Put(ctx, key, strings.NewReader("bonjour"), 7, "text/plain"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	rc, obj, err := s.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "bonjour" || obj.Size != 7 || obj.ContentType != "text/plain" {
		t.Errorf("got %q %+v", data, obj)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := s.Open(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open after delete: got %v", err)
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	exerciseStore(t, m)
	if m.Len() != 0 {
		t.Errorf("Len: got %d", m.Len())
	}
	if err := m.Delete(context.Background(), "uploads/x"); err != nil {
		t.Errorf("Delete missing: got %v", err)
	}
}

func TestMinio(t *testing.T) {
	if testing.Short() {
		t.Skip("container test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testutil.RunContainer(ctx, testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		Cmd:          []string{"server", "/data"},
		Env:          map[string]string{"MINIO_ROOT_USER": "campushub", "MINIO_ROOT_PASSWORD": "campushub-secret"},
		ExposedPorts: []string{"9000/tcp"},
		WaitingFor:   wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(90 * time.Second),
	})
	if err != nil {
		t.Skipf("minio not available: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := testutil.ContainerEndpoint(ctx, container, "9000/tcp")
	if err != nil {
		t.Skipf("minio not reachable: %v", err)
	}
	s, err := NewMinio(MinioConfig{
		Endpoint:  endpoint,
		AccessKey: "campushub",
		SecretKey: "campushub-secret",
		Bucket:    "campushub-test",
	})
	if err != nil {
		t.Fatalf("NewMinio: %v", err)
	}
	created, err := s.EnsureBucket(ctx)
	if err != nil || !created {
		t.Fatalf("EnsureBucket: created=%v err=%v", created, err)
	}
	if created, _ := s.EnsureBucket(ctx); created {
		t.Error("second EnsureBucket should be a no-op")
	}
	exerciseStore(t, s)
}
