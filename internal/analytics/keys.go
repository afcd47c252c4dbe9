package analytics

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"
)

const keyPrefix = "analytics"

// Cache namespaces.
const (
	NamespaceTimeSeries = "timeseries"
	NamespaceBreakeven  = "break_even"
)

// Params are the inputs identifying a cached computation.
type Params map[string]any

// BuildKey composes analytics:<namespace>:<version>:<digest>. The digest covers
// the canonical form of params, so equal parameter sets share a key under a
// given version regardless of map ordering.
func BuildKey(namespace, version string, params Params) string {
	sum := blake2b.Sum256([]byte(Canonical(params)))
	return strings.Join([]string{keyPrefix, namespace, version, hex.EncodeToString(sum[:])}, ":")
}

// Canonical serialises params as name=value pairs sorted by name.
func Canonical(params Params) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(canonicalValue(params[name]))
	}
	return b.String()
}

func canonicalValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(val)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if val == nil {
			return "null"
		}
		return val.UTC().Format(time.RFC3339Nano)
	case decimal.Decimal:
		return canonicalDecimal(val)
	case *decimal.Decimal:
		if val == nil {
			return "null"
		}
		return canonicalDecimal(*val)
	case *int64:
		if val == nil {
			return "null"
		}
		return strconv.FormatInt(*val, 10)
	case fmt.Stringer:
		return strconv.Quote(val.String())
	default:
		return fmt.Sprintf("%v", val)
	}
}

// canonicalDecimal drops trailing zeros so 2, 2.0 and 2.00 collide.
func canonicalDecimal(d decimal.Decimal) string {
	return d.String()
}
