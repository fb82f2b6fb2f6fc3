package extract

import (
	"encoding/json"
	"strings"
)

// Match is a JSON-RPC object found inside free text. Start and End are byte
// offsets into the scanned text, End exclusive.
type Match struct {
	Value map[string]any
	Raw   json.RawMessage
	Start int
	End   int
}

// Scanner finds balanced top-level {...} spans that decode to an object with
// a "jsonrpc" key. By default braces are counted naively, including braces
// inside string literals. StringAware skips over string contents instead.
type Scanner struct {
	StringAware bool
}

// Objects scans text with the default (naive) scanner.
func Objects(text string) []Match {
	return Scanner{}.Scan(text)
}

func (s Scanner) Scan(text string) []Match {
	var out []Match
	pos := 0
	for pos < len(text) {
		i := strings.IndexByte(text[pos:], '{')
		if i < 0 {
			break
		}
		start := pos + i
		end := s.closing(text, start)
		if end < 0 {
			break
		}
		raw := text[start:end]
		if value, err := decodeObject(raw); err == nil {
			if _, ok := value["jsonrpc"]; ok {
				out = append(out, Match{
					Value: value,
					Raw:   json.RawMessage(raw),
					Start: start,
					End:   end,
				})
			}
		}
		pos = end
	}
	return out
}

// decodeObject keeps numbers as json.Number so large integer ids survive.
func decodeObject(raw string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var value map[string]any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}

// closing returns the offset just past the brace that balances text[start],
// or -1 when the input ends first.
func (s Scanner) closing(text string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = s.StringAware
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}
