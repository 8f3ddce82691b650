package llm

import (
	"net/http"

	"github.com/PabloGalante/singlechat/internal/domain"
)

// failureKind classifies a failed SDK call by the response it captured. A
// 2xx reply that the SDK could not decode is malformed; no response or an
// error status is a transport failure.
func failureKind(res *http.Response) error {
	if res != nil && res.StatusCode >= 200 && res.StatusCode < 300 {
		return domain.ErrMalformedCompletion
	}
	return domain.ErrTransportFailure
}
