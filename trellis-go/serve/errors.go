package serve

import (
	"github.com/trellis-ml/trellis/trellis-golib/errors"
)

// Sentinel errors of the serving API. The HTTP layer maps them onto status
// codes; SDK clients compare against them with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrBadRequest    = errors.New("bad request")
	ErrBusy          = errors.New("too many inflight requests")
)
