// Package validation checks user-supplied visitor fields before they reach
// the engine.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxNameLen    = 100
	maxPurposeLen = 200
	maxIDLen      = 50
)

var (
	phoneRegex = regexp.MustCompile(`^\+?[0-9][0-9 \-]{1,18}[0-9]$`)
	flatRegex  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9\-/ ]{0,19}$`)
	timeRegex  = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

var allowedIDTypes = map[string]struct{}{
	"aadhaar":         {},
	"pan":             {},
	"passport":        {},
	"driving_license": {},
	"voter_id":        {},
	"other":           {},
}

// ValidateVisitorName requires a non-empty name of at most 100 characters.
func ValidateVisitorName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("visitor name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return fmt.Errorf("visitor name must be at most %d characters", maxNameLen)
	}
	return nil
}

// ValidatePhone accepts digits with optional leading + and spaces or dashes.
func ValidatePhone(phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return fmt.Errorf("visitor phone is required")
	}
	if !phoneRegex.MatchString(phone) {
		return fmt.Errorf("visitor phone is not a valid number")
	}
	return nil
}

// ValidateFlatNumber checks the unit identifier format, e.g. A-101.
func ValidateFlatNumber(flat string) error {
	flat = strings.TrimSpace(flat)
	if flat == "" {
		return fmt.Errorf("flat number is required")
	}
	if !flatRegex.MatchString(flat) {
		return fmt.Errorf("flat number must be 1-20 letters, digits, '-', '/' or spaces")
	}
	return nil
}

// ValidatePurpose bounds the optional purpose text.
func ValidatePurpose(purpose string) error {
	if utf8.RuneCountInString(strings.TrimSpace(purpose)) > maxPurposeLen {
		return fmt.Errorf("purpose must be at most %d characters", maxPurposeLen)
	}
	return nil
}

// ValidateIDDocument checks the optional ID pair. Both are empty or both set.
func ValidateIDDocument(idType, idNumber string) error {
	idType = strings.ToLower(strings.TrimSpace(idType))
	idNumber = strings.TrimSpace(idNumber)
	if idType == "" && idNumber == "" {
		return nil
	}
	if idType == "" || idNumber == "" {
		return fmt.Errorf("id type and id number must be provided together")
	}
	if _, ok := allowedIDTypes[idType]; !ok {
		return fmt.Errorf("unsupported id type %q", idType)
	}
	if len(idNumber) > maxIDLen {
		return fmt.Errorf("id number must be at most %d characters", maxIDLen)
	}
	return nil
}

// ValidateExpectedTime accepts an empty value or HH:MM in 24h form.
func ValidateExpectedTime(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || timeRegex.MatchString(s) {
		return nil
	}
	return fmt.Errorf("expected time must be HH:MM")
}
