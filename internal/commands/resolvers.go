package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RegisterType installs a resolver for a type name. Registered resolvers
// take precedence over the builtin types, so "number" or "user" can be
// overridden.
func (b *Bus) RegisterType(name string, resolver TypeResolver) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: type name is required", ErrInvalidResolver)
	}
	if resolver == nil {
		return fmt.Errorf("%w: nil resolver for %s", ErrInvalidResolver, name)
	}

	b.resolversMu.Lock()
	b.resolvers[name] = resolver
	b.resolversMu.Unlock()
	return nil
}

func (b *Bus) resolver(name ArgType) (TypeResolver, bool) {
	b.resolversMu.RLock()
	defer b.resolversMu.RUnlock()
	r, ok := b.resolvers[string(name)]
	return r, ok
}

// coerce converts value for arg using a registered resolver or a builtin.
func (b *Bus) coerce(ctx context.Context, value any, arg Arg, origin Origin) (any, error) {
	if r, ok := b.resolver(arg.Type); ok {
		return r(ctx, value, arg, origin)
	}

	switch arg.Type {
	case TypeString:
		return stringify(value), nil
	case TypeNumber:
		return toNumber(value)
	case TypeBoolean:
		return toBoolean(value), nil
	case TypeEnum:
		return toEnum(value, arg)
	case TypeUser:
		return b.toUser(value)
	case TypeRoom:
		return toRoom(value)
	case TypeDate:
		return toDate(value, b.now())
	default:
		return value, nil
	}
}

// stringify renders a scalar the way a chat user would type it.
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return formatNumber(v)
	case float32:
		return formatNumber(float64(v))
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case time.Time:
		return v.Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// encodeValue renders a value for previews: strings as-is, anything else
// JSON-encoded.
func encodeValue(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	if t, ok := value.(time.Time); ok {
		return t.Format(time.RFC3339)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return stringify(value)
	}
	return string(data)
}

var (
	errNotNumber = errors.New("must be a number")
	decimalRe    = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
)

// toNumber follows JavaScript Number() conversion: whitespace is trimmed,
// the empty string is 0, booleans are 0 or 1, and 0x/0o/0b prefixes select
// the radix. NaN is an error.
func toNumber(value any) (float64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case float64:
		if math.IsNaN(v) {
			return 0, errNotNumber
		}
		return v, nil
	case float32:
		return toNumber(float64(v))
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case json.Number:
		return toNumber(v.String())
	case string:
		return parseNumber(v)
	default:
		return 0, errNotNumber
	}
}

func parseNumber(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}

	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1), nil
	case "-Infinity":
		return math.Inf(-1), nil
	}

	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			return parseRadix(s[2:], base)
		}
	}

	if !decimalRe.MatchString(s) {
		return 0, errNotNumber
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, errNotNumber
	}
	return f, nil
}

func parseRadix(digits string, base int) (float64, error) {
	if strings.ContainsAny(digits, "+-_") {
		return 0, errNotNumber
	}
	n, err := strconv.ParseUint(digits, base, 64)
	if err == nil {
		return float64(n), nil
	}
	if !errors.Is(err, strconv.ErrRange) {
		return 0, errNotNumber
	}
	wide, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return 0, errNotNumber
	}
	f, _ := new(big.Float).SetInt(wide).Float64()
	return f, nil
}

var booleanWords = map[string]bool{
	"true": true, "t": true, "yes": true, "y": true, "1": true, "on": true,
	"false": false, "f": false, "no": false, "n": false, "0": false, "off": false,
}

// toBoolean maps the usual yes/no words, then falls back to truthiness.
func toBoolean(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		if b, ok := booleanWords[strings.ToLower(strings.TrimSpace(v))]; ok {
			return b
		}
		return v != ""
	default:
		if f, err := toNumber(v); err == nil {
			return f != 0
		}
		return true
	}
}

// truthy applies JavaScript truthiness.
func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	default:
		f, err := toNumber(v)
		if err != nil {
			return true
		}
		return f != 0 && !math.IsNaN(f)
	}
}

func toEnum(value any, arg Arg) (string, error) {
	if len(arg.Values) == 0 {
		return "", errors.New("enum has no allowed values")
	}
	s := stringify(value)
	for _, allowed := range arg.Values {
		if s == allowed {
			return s, nil
		}
	}
	return "", fmt.Errorf("must be one of: %s", strings.Join(arg.Values, ", "))
}

func (b *Bus) toUser(value any) (User, error) {
	s := stringify(value)
	if b.opts.Users != nil {
		users := b.opts.Users.Users()
		ids := make([]string, 0, len(users))
		for id := range users {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			u := users[id]
			if u.ID == "" {
				u.ID = id
			}
			if u.Name == s || u.ID == s {
				return u, nil
			}
		}
	}
	return User{}, fmt.Errorf("unknown user: %s", s)
}

func toRoom(value any) (string, error) {
	s := stringify(value)
	if !strings.HasPrefix(s, "#") {
		return "", fmt.Errorf("room must start with #: %s", s)
	}
	return s, nil
}

// dateLayouts are tried in order for free-form dates.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
}

// toDate accepts "today", "tomorrow" (local midnight) or a date string.
func toDate(value any, now time.Time) (time.Time, error) {
	if t, ok := value.(time.Time); ok {
		return t, nil
	}
	s := strings.TrimSpace(stringify(value))

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch strings.ToLower(s) {
	case "today":
		return midnight, nil
	case "tomorrow":
		return midnight.AddDate(0, 0, 1), nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date: %s", s)
}
