package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// ValidationError перечисляет нарушенные поля запроса.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + strings.Join(e.Problems, "; ")
}

// Unwrap позволяет сопоставлять ошибку через errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError собирает ValidationError из одного или нескольких описаний.
func NewValidationError(problems ...string) error {
	return &ValidationError{Problems: problems}
}

// fieldChecker накапливает замечания по полям.
type fieldChecker struct {
	problems []string
}

func (c *fieldChecker) addf(format string, args ...any) {
	c.problems = append(c.problems, fmt.Sprintf(format, args...))
}

func (c *fieldChecker) requiredLength(field, value string, minLen, maxLen int) {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if n < minLen {
		c.addf("%s is required", field)
		return
	}
	if maxLen > 0 && utf8.RuneCountInString(value) > maxLen {
		c.addf("%s must be at most %d characters", field, maxLen)
	}
}

func (c *fieldChecker) maxLength(field, value string, maxLen int) {
	if utf8.RuneCountInString(value) > maxLen {
		c.addf("%s must be at most %d characters", field, maxLen)
	}
}

func (c *fieldChecker) email(field, value string) {
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		c.addf("%s must be a valid email address", field)
	}
}

func (c *fieldChecker) err() error {
	if len(c.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: c.problems}
}
