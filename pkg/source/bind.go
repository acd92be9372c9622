package source

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Bind substitutes $1..$n placeholders in stmt with SQL literals rendered
// from args. It is used by sources that can only accept a complete SQL
// text (HTTP SQL APIs). Placeholders inside quoted strings or quoted
// identifiers are left alone.
func Bind(stmt string, args []any) (string, error) {
	var b strings.Builder
	b.Grow(len(stmt))

	for i := 0; i < len(stmt); i++ {
		c := stmt[i]
		switch c {
		case '\'', '"':
			end := closingQuote(stmt, i)
			b.WriteString(stmt[i:end])
			i = end - 1
		case '$':
			j := i + 1
			for j < len(stmt) && stmt[j] >= '0' && stmt[j] <= '9' {
				j++
			}
			if j == i+1 {
				b.WriteByte(c)
				continue
			}
			n, err := strconv.Atoi(stmt[i+1 : j])
			if err != nil || n < 1 || n > len(args) {
				return "", fmt.Errorf("placeholder $%s has no argument (got %d)", stmt[i+1:j], len(args))
			}
			lit, err := Literal(args[n-1])
			if err != nil {
				return "", fmt.Errorf("argument $%d: %w", n, err)
			}
			b.WriteString(lit)
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// closingQuote returns the index just past the quoted run starting at
// start. A doubled quote character is an escaped quote.
func closingQuote(s string, start int) int {
	q := s[start]
	for i := start + 1; i < len(s); i++ {
		if s[i] != q {
			continue
		}
		if i+1 < len(s) && s[i+1] == q {
			i++
			continue
		}
		return i + 1
	}
	return len(s)
}

// Literal renders v as a SQL literal.
func Literal(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if x {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int:
		return signed(strconv.Itoa(x)), nil
	case int8:
		return signed(strconv.FormatInt(int64(x), 10)), nil
	case int16:
		return signed(strconv.FormatInt(int64(x), 10)), nil
	case int32:
		return signed(strconv.FormatInt(int64(x), 10)), nil
	case int64:
		return signed(strconv.FormatInt(x, 10)), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return Literal(float64(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", fmt.Errorf("non-finite float %v", x)
		}
		return signed(strconv.FormatFloat(x, 'g', -1, 64)), nil
	case string:
		if strings.ContainsRune(x, 0) {
			return "", fmt.Errorf("string contains NUL byte")
		}
		return "'" + strings.ReplaceAll(x, "'", "''") + "'", nil
	case time.Time:
		if x.Equal(x.Truncate(24*time.Hour)) && x.Location() == time.UTC {
			return "DATE '" + x.Format(time.DateOnly) + "'", nil
		}
		return "TIMESTAMPTZ '" + x.Format(time.RFC3339Nano) + "'", nil
	}
	return "", fmt.Errorf("unsupported argument type %T", v)
}

// signed parenthesizes negative numbers so a preceding "-" cannot turn the
// minus sign into a "--" comment.
func signed(n string) string {
	if strings.HasPrefix(n, "-") {
		return "(" + n + ")"
	}
	return n
}
