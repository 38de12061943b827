// Package phone turns user-entered phone numbers into transport addresses.
package phone

import "strings"

const DefaultSuffix = "@s.whatsapp.net"

// Plan maps a raw number onto a canonical transport address for one
// country's numbering plan. Normalize is total: malformed input comes back
// as a well-formed but likely unreachable address, and the reachability
// check catches it later.
type Plan interface {
	Normalize(raw string) string
}

// CountryPlan is a best-effort heuristic for a single country: it infers a
// missing country code from the digit count and strips the trunk prefix.
type CountryPlan struct {
	CountryCode string
	TrunkPrefix string
	Suffix      string
}

// Default is tuned to the Brazilian numbering plan (two-digit area code plus
// eight or nine subscriber digits).
func Default() CountryPlan {
	return CountryPlan{CountryCode: "55", TrunkPrefix: "0", Suffix: DefaultSuffix}
}

func (p CountryPlan) Normalize(raw string) string {
	digits := strings.Map(func(r rune) rune {
		if r < '0' || r > '9' {
			return -1
		}
		return r
	}, raw)

	// Trunk-prefixed forms of both the 10- and 11-digit subscriber
	// numbers lose the prefix and gain the country code instead.
	switch {
	case len(digits) == 11 && strings.HasPrefix(digits, p.TrunkPrefix):
		digits = p.CountryCode + digits[len(p.TrunkPrefix):]
	case len(digits) == 12 && strings.HasPrefix(digits, p.TrunkPrefix):
		digits = p.CountryCode + digits[len(p.TrunkPrefix):]
	case len(digits) == 10:
		digits = p.CountryCode + digits
	case len(digits) == 11 && !strings.HasPrefix(digits, p.CountryCode):
		digits = p.CountryCode + digits
	}

	return digits + p.Suffix
}
