package normalizer

import (
	"fmt"
	"strconv"
	"strings"
)

// coerceInt converts any JSON scalar it reasonably can into an integer.
// Numeric strings with thousands separators ("1,234") and decimal suffixes
// ("950.0") are accepted; the fractional part is discarded. The second return
// is false when no integer could be derived.
func coerceInt(value any) (int, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		if idx := strings.IndexByte(cleaned, '.'); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		if cleaned == "" {
			return 0, false
		}
		n, err := strconv.Atoi(cleaned)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// coerceString renders a scalar as a string, leaving nil as empty.
func coerceString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
