package engine

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

var ttlUnits = map[string]time.Duration{
	"s": time.Second, "sec": time.Second, "secs": time.Second, "second": time.Second, "seconds": time.Second,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
	"w": 7 * 24 * time.Hour, "week": 7 * 24 * time.Hour, "weeks": 7 * 24 * time.Hour,
}

// ttlSuffixes is ttlUnits' keys, longest first, so "secs" wins over "s".
var ttlSuffixes = func() []string {
	keys := make([]string, 0, len(ttlUnits))
	for k := range ttlUnits {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// ResolveTTL turns a duration expression such as "24h", "7 days" or "3600"
// into an absolute expiry relative to now. It returns nil for "", "0" and
// "none" (no expiry).
func ResolveTTL(expr string, now time.Time) (*time.Time, error) {
	value := strings.ToLower(strings.TrimSpace(expr))
	if value == "" || value == "0" || value == "none" {
		return nil, nil
	}

	number, unit := value, time.Second
	for _, suffix := range ttlSuffixes {
		if strings.HasSuffix(value, suffix) {
			number = strings.TrimSpace(strings.TrimSuffix(value, suffix))
			unit = ttlUnits[suffix]
			break
		}
	}

	magnitude, err := strconv.ParseFloat(number, 64)
	if err != nil || math.IsNaN(magnitude) || math.IsInf(magnitude, 0) {
		return nil, fmt.Errorf("%w %q: want seconds or a number with an s/m/h/d/w suffix (e.g. 24h)", ErrInvalidTTL, expr)
	}

	d := magnitude * float64(unit)
	if math.Abs(d) >= math.MaxInt64 {
		return nil, fmt.Errorf("%w %q: duration out of range", ErrInvalidTTL, expr)
	}

	expires := now.Add(time.Duration(d))
	return &expires, nil
}
