// utils/id.go
package utils

import (
	"math/rand"
	"strconv"
	"time"
)

const base36Chars = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewSubmissionID returns an opaque submission identifier of the form
// sub_<base36 millisecond timestamp>_<6 random base36 chars>.
func NewSubmissionID() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	buf := make([]byte, 6)
	for i := range buf {
		buf[i] = base36Chars[rand.Intn(len(base36Chars))]
	}
	return "sub_" + ts + "_" + string(buf)
}

// NowISO formats the current time the way the store expects timestamps.
func NowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// Today returns the current UTC date as YYYY-MM-DD.
func Today() string {
	return time.Now().UTC().Format("2006-01-02")
}
