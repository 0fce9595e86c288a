package suggest

import "errors"

var ErrRedisUnreachable = errors.New("redis server unreachable")
