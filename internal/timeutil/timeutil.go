// ABOUTME: Conversions between epoch seconds and asctime strings
// ABOUTME: Used for the CLI --time flag and for human-readable listings

package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AsctimeLayout matches C asctime output, e.g. "Mon Aug 21 00:04:17 2017".
const AsctimeLayout = time.ANSIC

// ParseAsctime interprets s as a UTC asctime string and returns epoch seconds.
func ParseAsctime(s string) (int64, error) {
	t, err := time.ParseInLocation(AsctimeLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return 0, fmt.Errorf("parsing asctime %q: %w", s, err)
	}
	return t.Unix(), nil
}

// FormatAsctime renders epoch seconds as a UTC asctime string.
func FormatAsctime(epoch int64) string {
	return time.Unix(epoch, 0).UTC().Format(AsctimeLayout)
}

// FormatLocalAsctime renders epoch seconds as an asctime string in loc.
func FormatLocalAsctime(epoch int64, loc *time.Location) string {
	return time.Unix(epoch, 0).In(loc).Format(AsctimeLayout)
}

// ParseTimestamp accepts either decimal epoch seconds or a UTC asctime string.
func ParseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("timestamp %d is negative", n)
		}
		return n, nil
	}
	return ParseAsctime(s)
}
