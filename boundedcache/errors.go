package boundedcache

import "github.com/graphkit/entitycache/errs"

var (
	errInvalidName     = errs.NewInvalidArgument("New", "Name must not be empty")
	errInvalidCapacity = errs.NewInvalidArgument("New", "Capacity must be > 0")
)
