package moss

import "github.com/inferedge/moss-go/internal/rest"

// Sentinel errors mapped from service responses.
// Use errors.Is() to check; the full response detail is available by
// unwrapping to *APIError with errors.As().
var (
	ErrIndexNotFound      = rest.ErrIndexNotFound
	ErrIndexAlreadyExists = rest.ErrIndexAlreadyExists
	ErrDocumentNotFound   = rest.ErrDocumentNotFound
	ErrJobNotFound        = rest.ErrJobNotFound
	ErrUnauthorized       = rest.ErrUnauthorized
	ErrRateLimited        = rest.ErrRateLimited
	ErrInvalidRequest     = rest.ErrInvalidRequest

	// ErrJobFailed is returned by Clustering().Wait when the job ends in
	// the failed state.
	ErrJobFailed = rest.ErrJobFailed
)

// APIError is an error response from the Moss service.
type APIError = rest.APIError
