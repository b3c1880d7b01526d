package coordinator

import "errors"

// Sentinel errors for the fatal conditions a run can hit before any worker
// is launched, so callers can distinguish them with errors.Is instead of
// string matching.
var (
	ErrNoURLs               = errors.New("coordinator: no urls to download")
	ErrContentLengthUnknown = errors.New("coordinator: content-length is zero or unknown")
)
