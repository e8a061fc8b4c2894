package config

import (
	"fmt"
	"strings"
)

func validateHeaderName(raw string) error {
	name := strings.TrimSpace(raw)
	if name == "" {
		return fmt.Errorf("header name must not be empty")
	}
	if raw != name {
		return fmt.Errorf("header %q has leading or trailing whitespace", raw)
	}
	for i := 0; i < len(name); i++ {
		if !isTokenByte(name[i]) {
			return fmt.Errorf("header %q has invalid field name", name)
		}
	}
	return nil
}

func isTokenByte(b byte) bool {
	if b >= '0' && b <= '9' {
		return true
	}
	if b >= 'A' && b <= 'Z' {
		return true
	}
	if b >= 'a' && b <= 'z' {
		return true
	}
	switch b {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	default:
		return false
	}
}

func validHeaderFieldValue(value string) bool {
	for i := 0; i < len(value); i++ {
		b := value[i]
		if b == '\r' || b == '\n' || b == 0x7f {
			return false
		}
		if b < 0x20 && b != '\t' {
			return false
		}
	}
	return true
}
