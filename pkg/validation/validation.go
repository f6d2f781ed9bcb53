package validation

import (
	"regexp"
	"strings"
)

var (
	e164Regex = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)
	codeRegex = regexp.MustCompile(`^\d{4,8}$`)

	codeSeparators = strings.NewReplacer(" ", "", "-", "", "\t", "")
)

// NormalizePhone trims surrounding whitespace.
func NormalizePhone(phone string) string {
	return strings.TrimSpace(phone)
}

// ValidatePhoneE164 reports whether phone is "+" followed by 7-15 digits
// with a non-zero leading digit.
func ValidatePhoneE164(phone string) bool {
	return e164Regex.MatchString(phone)
}

// NormalizeCode trims the code and drops spaces and dashes users paste in
// from the SMS ("123 456", "123-456").
func NormalizeCode(code string) string {
	return codeSeparators.Replace(strings.TrimSpace(code))
}

// ValidateCode reports whether code is 4-8 ASCII digits.
func ValidateCode(code string) bool {
	return codeRegex.MatchString(code)
}
