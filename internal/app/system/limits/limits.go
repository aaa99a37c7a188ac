// internal/app/system/limits/limits.go
package limits

// Request body size limits for the JSON API.
const (
	// MaxWorkerBodySize bounds single-worker requests (create, edit, reopen,
	// item movements).
	MaxWorkerBodySize = 64 << 10 // 64 KB

	// MaxBulkBodySize bounds bulk requests, which carry id lists.
	MaxBulkBodySize = 1 << 20 // 1 MB
)
