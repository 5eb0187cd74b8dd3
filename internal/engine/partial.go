package engine

import (
	"encoding/json"

	"github.com/kaptinlin/jsonrepair"
)

// ParsePartial decodes a possibly truncated JSON document, as produced midway
// through a structured streaming generation. Open strings and containers are
// closed and dangling keys or literals are dropped. It reports false when no
// usable prefix exists.
func ParsePartial(text string) (GeneratedContent, bool) {
	if c, err := ParseContent([]byte(text)); err == nil {
		return c, true
	}
	repaired, ok := repairJSON(text)
	if !ok {
		return GeneratedContent{}, false
	}
	c, err := ParseContent([]byte(repaired))
	if err != nil {
		return GeneratedContent{}, false
	}
	return c, true
}

// repairJSON cuts s back to a prefix that ends inside a value string, after a
// number, or at a complete value, then lets jsonrepair close what is still
// open. Cutting first keeps the repair from inventing members for dangling
// keys or half-written literals.
func repairJSON(s string) (string, bool) {
	var (
		stack       []byte
		inString    bool
		escaped     bool
		stringIsKey bool
		keyNext     bool
		pendingNum  bool // s ends inside a number

		safe = -1
	)
	top := func() byte {
		if len(stack) == 0 {
			return 0
		}
		return stack[len(stack)-1]
	}

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
				if !stringIsKey {
					safe = i + 1
				}
			}
			continue
		}
		switch ch {
		case ' ', '\t', '\n', '\r', ':':
		case '"':
			inString = true
			stringIsKey = top() == '{' && keyNext
			if stringIsKey {
				keyNext = false
			}
		case '{':
			stack = append(stack, ch)
			keyNext = true
			safe = i + 1
		case '[':
			stack = append(stack, ch)
			safe = i + 1
		case '}', ']':
			if len(stack) == 0 {
				return "", false
			}
			stack = stack[:len(stack)-1]
			safe = i + 1
		case ',':
			if top() == '{' {
				keyNext = true
			}
		default:
			j := i
			for j < len(s) && !isDelimiter(s[j]) {
				j++
			}
			if j < len(s) {
				safe = j
			} else {
				pendingNum = isNumber(s[i:])
			}
			i = j - 1
		}
	}

	var candidates []string
	switch {
	case inString && !stringIsKey:
		body := s
		if escaped {
			body = s[:len(s)-1]
		}
		candidates = append(candidates, body)
	case pendingNum:
		candidates = append(candidates, s)
	}
	if safe >= 0 {
		candidates = append(candidates, s[:safe])
	}
	for _, c := range candidates {
		repaired, err := jsonrepair.JSONRepair(c)
		if err != nil {
			continue
		}
		if json.Valid([]byte(repaired)) {
			return repaired, true
		}
	}
	return "", false
}

func isDelimiter(ch byte) bool {
	switch ch {
	case ',', '}', ']', ' ', '\t', '\n', '\r', ':', '"':
		return true
	}
	return false
}

// isNumber reports whether tok is a complete JSON number.
func isNumber(tok string) bool {
	var n json.Number
	return json.Unmarshal([]byte(tok), &n) == nil
}
