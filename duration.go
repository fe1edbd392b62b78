package syncplus

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvWarnAfter names the environment variable holding the default warn threshold.
const EnvWarnAfter = "SYNCPLUS_WARN_AFTER"

const maxDurationLen = 1024

// ParseDuration is like time.ParseDuration, but it also accepts a "d" unit
// meaning 24 hours. Fractional and negative day counts are allowed.
func ParseDuration(s string) (time.Duration, error) {
	if len(s) > maxDurationLen {
		return 0, fmt.Errorf("parse duration: input longer than %d bytes", maxDurationLen)
	}

	var out, num strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+':
			num.WriteByte(c)
		case c == 'd':
			days, err := strconv.ParseFloat(num.String(), 64)
			if err != nil {
				return 0, fmt.Errorf("parse duration %q: %w", s, err)
			}
			out.WriteString(strconv.FormatFloat(days*24, 'f', -1, 64))
			out.WriteByte('h')
			num.Reset()
		default:
			out.WriteString(num.String())
			out.WriteByte(c)
			num.Reset()
		}
	}
	out.WriteString(num.String())

	return time.ParseDuration(out.String())
}

// GetDurationEnvOrDefault reads key from the environment and parses it with
// ParseDuration. Unset or unparsable values yield def.
func GetDurationEnvOrDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
