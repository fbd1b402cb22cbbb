package leak

import (
	"regexp"

	"github.com/papercomputeco/tracelens/pkg/observation"
)

// Pattern is a named content detector with the risk level a match implies.
type Pattern struct {
	Name  string
	Level observation.Level
	Expr  *regexp.Regexp
}

// Source tags for the built-in detectors.
const (
	SourceSSN               = "ssn"
	SourceCreditCard        = "credit_card"
	SourceEmailAddress      = "email_address"
	SourcePhoneNumber       = "phone_number"
	SourceAccountIdentifier = "account_identifier"
)

var defaultPatterns = []Pattern{
	{
		Name:  SourceSSN,
		Level: observation.LevelHigh,
		Expr:  regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	},
	{
		Name:  SourceCreditCard,
		Level: observation.LevelHigh,
		Expr:  regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`),
	},
	{
		Name:  SourceEmailAddress,
		Level: observation.LevelMedium,
		Expr:  regexp.MustCompile(`(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}\b`),
	},
	{
		Name:  SourcePhoneNumber,
		Level: observation.LevelMedium,
		Expr:  regexp.MustCompile(`\b(?:\+?\d{1,3}[ -]?)?(?:\(\d{3}\)|\d{3})[ -]?\d{3}[ -]?\d{4}\b`),
	},
	{
		Name:  SourceAccountIdentifier,
		Level: observation.LevelLow,
		Expr:  regexp.MustCompile(`(?i)\b(?:acct[-_][a-z0-9]+|iban|routing number)\b`),
	},
}

// DefaultPatterns returns the built-in detectors in evaluation order:
// national id numbers, payment card numbers, email addresses, phone numbers
// and account keywords.
func DefaultPatterns() []Pattern {
	out := make([]Pattern, len(defaultPatterns))
	copy(out, defaultPatterns)
	return out
}
