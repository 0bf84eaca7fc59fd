// internal/app/system/limits/limits.go
package limits

// Request body size limits.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxJSONBodySize bounds JSON API request bodies.
	MaxJSONBodySize = 1 << 20 // 1 MB

	// DefaultMaxUploadSize is the per-file limit for POST /uploads when
	// configuration does not set one.
	DefaultMaxUploadSize = 5 << 20 // 5 MB

	// MultipartOverhead is added to the file limit when capping the whole
	// multipart body (boundaries, part headers).
	MultipartOverhead = 64 << 10

	// SniffLen is how many leading bytes content-type detection reads.
	SniffLen = 512
)

// DefaultUploadTypes are the content types accepted for images.
var DefaultUploadTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
