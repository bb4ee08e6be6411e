package cli

import (
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestPropertyIndianCurrencyFormat(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("round-trips through comma removal", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatIndianCurrency(amount)

			stripped := strings.ReplaceAll(formatted, ",", "")
			stripped = strings.ReplaceAll(stripped, "₹", "")
			parsed, err := strconv.ParseFloat(stripped, 64)
			if err != nil {
				t.Logf("unparseable output %q for %v: %v", formatted, amount, err)
				return false
			}

			expected, _ := strconv.ParseFloat(strconv.FormatFloat(amount, 'f', 2, 64), 64)
			if parsed != expected {
				t.Logf("value changed: %v formatted as %q parsed back to %v", amount, formatted, parsed)
				return false
			}
			return true
		},
		gen.Float64Range(-1e12, 1e12),
	))

	properties.Property("grouping is 3 then 2s from the right", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatIndianCurrency(amount)

			intPart := strings.TrimPrefix(formatted, "-")
			intPart = strings.TrimPrefix(intPart, "₹")
			intPart = intPart[:strings.Index(intPart, ".")]

			groups := strings.Split(intPart, ",")
			last := groups[len(groups)-1]
			if len(groups) == 1 {
				return len(last) <= 3
			}
			if len(last) != 3 {
				t.Logf("rightmost group of %q has %d digits", formatted, len(last))
				return false
			}
			for _, g := range groups[1 : len(groups)-1] {
				if len(g) != 2 {
					t.Logf("inner group %q in %q is not 2 digits", g, formatted)
					return false
				}
			}
			lead := groups[0]
			if len(lead) < 1 || len(lead) > 2 {
				t.Logf("leading group %q in %q", lead, formatted)
				return false
			}
			return true
		},
		gen.Float64Range(0, 1e12),
	))

	properties.Property("sign placement and rupee prefix", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatIndianCurrency(amount)
			if amount < 0 {
				return strings.HasPrefix(formatted, "-₹")
			}
			return strings.HasPrefix(formatted, "₹")
		},
		gen.Float64Range(-1e9, 1e9),
	))

	properties.TestingRun(t)
}
