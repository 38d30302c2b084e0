package colorprofile

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var allCategories = []Category{
	Red, Orange, Yellow, Green, Cyan, Blue, Purple, Magenta, Gray, White, Black,
}

// genCategory generates a random palette category.
func genCategory() gopter.Gen {
	return gen.IntRange(0, len(allCategories)-1).Map(func(i int) Category {
		return allCategories[i]
	})
}

// genProfile generates a random profile.
func genProfile() gopter.Gen {
	return gopter.CombineGens(
		genCategory(), genCategory(), genCategory(), genCategory(),
		genCategory(), genCategory(), genCategory(),
	).Map(func(vals []interface{}) Profile {
		return Profile{
			TopLeft:     vals[0].(Category),
			TopRight:    vals[1].(Category),
			BottomLeft:  vals[2].(Category),
			BottomRight: vals[3].(Category),
			Center:      vals[4].(Category),
			Border:      vals[5].(Category),
			Dominant:    vals[6].(Category),
		}
	})
}

func TestCompare_Reflexive(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a profile compared with itself scores 1.0", prop.ForAll(
		func(p Profile) bool {
			return Compare(p, p) == 1.0
		},
		genProfile(),
	))

	properties.TestingRun(t)
}

func TestCompare_SymmetricAndBounded(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("comparison is symmetric and within [0,1]", prop.ForAll(
		func(a, b Profile) bool {
			ab := Compare(a, b)
			ba := Compare(b, a)
			return ab == ba && ab >= 0 && ab <= 1
		},
		genProfile(),
		genProfile(),
	))

	properties.Property("score is a multiple of 1/7", prop.ForAll(
		func(a, b Profile) bool {
			s := Compare(a, b) * NumFields
			return s == float64(int(s+0.5))
		},
		genProfile(),
		genProfile(),
	))

	properties.TestingRun(t)
}
