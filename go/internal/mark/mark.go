package mark

import (
	"encoding/json"
	"math"
	"strings"
)

// Mark is one of the two player symbols that can own a board cell.
type Mark int

const (
	None Mark = iota
	First
	Second
)

// Canonical symbols as the server writes them into a board.
const (
	SymbolFirst  = "X"
	SymbolSecond = "O"
)

// Normalize maps a raw server-side cell or owner value onto a Mark.
// 1 and "1" become First, 2 and "2" become Second, the canonical symbols map
// to themselves. Anything else is None.
func Normalize(raw any) Mark {
	switch v := raw.(type) {
	case Mark:
		if v.Valid() {
			return v
		}
		return None
	case string:
		return fromString(v)
	case json.Number:
		return fromString(v.String())
	case float64:
		if v != math.Trunc(v) {
			return None
		}
		return fromInt(int64(v))
	case float32:
		return Normalize(float64(v))
	case int:
		return fromInt(int64(v))
	case int8:
		return fromInt(int64(v))
	case int16:
		return fromInt(int64(v))
	case int32:
		return fromInt(int64(v))
	case int64:
		return fromInt(v)
	case uint:
		return fromInt(int64(v))
	case uint8:
		return fromInt(int64(v))
	case uint16:
		return fromInt(int64(v))
	case uint32:
		return fromInt(int64(v))
	case uint64:
		if v > 2 {
			return None
		}
		return fromInt(int64(v))
	}
	return None
}

func fromInt(n int64) Mark {
	switch n {
	case 1:
		return First
	case 2:
		return Second
	}
	return None
}

func fromString(s string) Mark {
	switch strings.TrimSpace(s) {
	case "1", SymbolFirst:
		return First
	case "2", SymbolSecond:
		return Second
	}
	return None
}

// Valid reports whether m is First or Second.
func (m Mark) Valid() bool {
	return m == First || m == Second
}

// Opponent returns the other player's mark, or None for None.
func (m Mark) Opponent() Mark {
	switch m {
	case First:
		return Second
	case Second:
		return First
	}
	return None
}

func (m Mark) String() string {
	switch m {
	case First:
		return SymbolFirst
	case Second:
		return SymbolSecond
	}
	return ""
}

// MarshalJSON writes the canonical symbol, or null for None.
func (m Mark) MarshalJSON() ([]byte, error) {
	if !m.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(m.String())
}
