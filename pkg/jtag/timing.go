package jtag

import "time"

// delayNS sleeps for at least ns nanoseconds and reports the actual elapsed
// time. Host sleep is inherently imprecise (open question in spec §9): the
// value returned is whatever the scheduler delivered and may exceed the
// requested duration arbitrarily.
func delayNS(ns uint64) (uint64, error) {
	start := time.Now()
	time.Sleep(time.Duration(ns))
	return uint64(time.Since(start).Nanoseconds()), nil
}
