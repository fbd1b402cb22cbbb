package eventstream

import "errors"

// ErrNilAnalysisEvent indicates a nil analysis event payload was provided to a publisher.
var ErrNilAnalysisEvent = errors.New("nil analysis event")
