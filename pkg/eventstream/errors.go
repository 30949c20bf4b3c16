package eventstream

import "errors"

// ErrNilEvent indicates a nil generation event payload was provided to a publisher.
var ErrNilEvent = errors.New("nil generation event")
