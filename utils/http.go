package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by everything that calls sibling services (auth
// validation, player profile sync).
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}
