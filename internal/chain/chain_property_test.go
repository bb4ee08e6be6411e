package chain

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"tradebridge/internal/models"
)

func legGen() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(100, 500).Map(func(f float64) float64 {
			// Snap to a 50-point grid so strikes collide and pair up.
			return float64(int(f/50)) * 50
		}),
		gen.Bool(),
		gen.Float64Range(0.05, 500),
		gen.Int64Range(0, 5000000),
	).Map(func(values []interface{}) models.OptionLeg {
		kind := models.OptionCall
		if values[1].(bool) {
			kind = models.OptionPut
		}
		return models.OptionLeg{
			Strike:       values[0].(float64),
			Kind:         kind,
			LTP:          values[2].(float64),
			OpenInterest: values[3].(int64),
		}
	})
}

// Property: rows are strictly ascending by strike and every row has both
// sides, for any combination of raw legs.
func TestPropertyGroupLegs(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("rows ascend and are fully paired", prop.ForAll(
		func(legs []models.OptionLeg) bool {
			rows := GroupLegs(legs)

			for i := 1; i < len(rows); i++ {
				if rows[i].Strike <= rows[i-1].Strike {
					t.Logf("strikes not strictly ascending at %d", i)
					return false
				}
			}

			for _, row := range rows {
				var hasCall, hasPut bool
				for _, leg := range legs {
					if leg.Strike != row.Strike {
						continue
					}
					if leg.Kind == models.OptionCall {
						hasCall = true
					} else {
						hasPut = true
					}
				}
				if !hasCall || !hasPut {
					t.Logf("strike %.0f in output without both sides in input", row.Strike)
					return false
				}
			}
			return true
		},
		gen.SliceOf(legGen()),
	))

	properties.Property("a strike with both sides is never dropped", prop.ForAll(
		func(legs []models.OptionLeg) bool {
			rows := GroupLegs(legs)
			inRows := make(map[float64]bool, len(rows))
			for _, row := range rows {
				inRows[row.Strike] = true
			}

			calls := make(map[float64]bool)
			puts := make(map[float64]bool)
			for _, leg := range legs {
				if leg.Kind == models.OptionCall {
					calls[leg.Strike] = true
				} else {
					puts[leg.Strike] = true
				}
			}

			for strike := range calls {
				if puts[strike] && !inRows[strike] {
					t.Logf("paired strike %.0f missing from output", strike)
					return false
				}
			}
			return true
		},
		gen.SliceOf(legGen()),
	))

	properties.TestingRun(t)
}
