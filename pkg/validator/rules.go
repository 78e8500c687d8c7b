package validator

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Required fails on empty or whitespace-only values.
func Required(field, value string) Rule {
	return Rule{
		Check: func() bool { return strings.TrimSpace(value) != "" },
		Error: ValidationError{Field: field, Message: "field is required"},
	}
}

// MinLen counts runes, not bytes.
func MinLen(field, value string, min int) Rule {
	return Rule{
		Check: func() bool { return utf8.RuneCountInString(value) >= min },
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be at least %d characters long", min)},
	}
}

func MaxLen(field, value string, max int) Rule {
	return Rule{
		Check: func() bool { return utf8.RuneCountInString(value) <= max },
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters long", max)},
	}
}

// Email accepts a bare address. Empty values pass; combine with Required.
func Email(field, value string) Rule {
	return Rule{
		Check: func() bool {
			v := strings.TrimSpace(value)
			if v == "" {
				return true
			}
			addr, err := mail.ParseAddress(v)
			return err == nil && addr.Address == v && strings.Contains(v[strings.LastIndex(v, "@"):], ".")
		},
		Error: ValidationError{Field: field, Message: "must be a valid email address"},
	}
}

// When applies rule only if cond holds.
func When(cond bool, rule Rule) Rule {
	if !cond {
		return Rule{Check: func() bool { return true }}
	}
	return rule
}
