// Package validation collects field-level input problems into a single errorbank error.
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Additional-Code/brewline/pkg/errorbank"
)

var phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)

// Collector accumulates validation messages in the order they are found.
type Collector struct {
	messages []string
	details  map[string]any
}

// New returns an empty Collector.
func New() *Collector {
	return &Collector{}
}

// Add records a message unconditionally.
func (c *Collector) Add(format string, args ...any) {
	c.messages = append(c.messages, fmt.Sprintf(format, args...))
}

// Check records message when ok is false and reports ok.
func (c *Collector) Check(ok bool, format string, args ...any) bool {
	if !ok {
		c.Add(format, args...)
	}
	return ok
}

// Detail attaches structured context to the resulting error.
func (c *Collector) Detail(key string, value any) {
	if c.details == nil {
		c.details = make(map[string]any)
	}
	c.details[key] = value
}

// Required checks that value is not blank.
func (c *Collector) Required(field, value string) bool {
	return c.Check(strings.TrimSpace(value) != "", "%s is required", field)
}

// MaxLen checks the rune length of value.
func (c *Collector) MaxLen(field, value string, max int) bool {
	return c.Check(utf8.RuneCountInString(value) <= max, "%s must be at most %d characters", field, max)
}

// LenBetween checks min <= rune length <= max.
func (c *Collector) LenBetween(field, value string, min, max int) bool {
	n := utf8.RuneCountInString(value)
	return c.Check(n >= min && n <= max, "%s must be between %d and %d characters", field, min, max)
}

// Phone checks an optional mainland mobile number.
func (c *Collector) Phone(field, value string) bool {
	if value == "" {
		return true
	}
	return c.Check(IsPhone(value), "%s is not a valid phone number", field)
}

// Email checks a required email address.
func (c *Collector) Email(field, value string) bool {
	if !c.Required(field, value) {
		return false
	}
	return c.Check(IsEmail(value), "%s is not a valid email address", field)
}

// Valid reports whether nothing has been recorded.
func (c *Collector) Valid() bool {
	return len(c.messages) == 0
}

// Err returns a validation error carrying every message, or nil.
func (c *Collector) Err() error {
	if c.Valid() {
		return nil
	}
	opts := make([]errorbank.Option, 0, len(c.details))
	for k, v := range c.details {
		opts = append(opts, errorbank.WithDetail(k, v))
	}
	return errorbank.Validation(c.messages, opts...)
}

// IsPhone reports whether value is an 11 digit mainland mobile number.
func IsPhone(value string) bool {
	return phonePattern.MatchString(value)
}

// IsEmail reports whether value is a bare email address.
func IsEmail(value string) bool {
	addr, err := mail.ParseAddress(value)
	return err == nil && addr.Address == value
}
