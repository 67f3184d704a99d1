package app

import (
	"sync"
	"time"
)

// The submission endpoint and the anchor table are defined against Beijing
// time; running on a UTC server must not shift the value curve.
var beijing = sync.OnceValue(func() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		// No tzdata on the host. CN has no DST, a fixed offset is exact.
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
})

// Now returns the current Beijing time.
func Now() time.Time {
	return time.Now().In(beijing())
}
