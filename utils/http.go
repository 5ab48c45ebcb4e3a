// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by outbound calls to the profile proxy and the
// fulfillment provider.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}
