package service

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TimestampIDs returns a generator of millisecond timestamps as decimal
// strings. Values are strictly increasing even when called within the same
// millisecond.
func TimestampIDs() func() string {
	var (
		mu   sync.Mutex
		last int64
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()

		n := time.Now().UnixMilli()
		if n <= last {
			n = last + 1
		}
		last = n
		return strconv.FormatInt(n, 10)
	}
}

func UUIDs() func() string {
	return func() string { return uuid.NewString() }
}

// IDGenerator picks a generator by name ("uuid" or "timestamp").
func IDGenerator(strategy string) func() string {
	if strategy == "uuid" {
		return UUIDs()
	}
	return TimestampIDs()
}
