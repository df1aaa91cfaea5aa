package mapper

import (
	"math"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/stratadb/strata/internal/query"
)

// TestProperty_ParseStringRoundTrip validates that every int64 value
// survives the string rendering path: Parse(StringTerm(Itoa(v))) == v.
func TestProperty_ParseStringRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	ft := NewVersionFieldType()

	properties.Property("base-10 string of any int64 parses back to itself", prop.ForAll(
		func(v int64) bool {
			got, err := ft.Parse(StringTerm(strconv.FormatInt(v, 10)))
			return err == nil && got == v
		},
		gen.Int64(),
	))

	properties.Property("byte rendering parses the same as string rendering", prop.ForAll(
		func(v int64) bool {
			s := strconv.FormatInt(v, 10)
			fromStr, errStr := ft.Parse(StringTerm(s))
			fromBytes, errBytes := ft.Parse(BytesTerm([]byte(s)))
			return errStr == nil && errBytes == nil && fromStr == fromBytes
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

// TestProperty_ParseFloatDomain validates the float acceptance rule:
// integral floats inside the signed 64-bit domain parse to their exact
// value, and non-integral floats always fail.
func TestProperty_ParseFloatDomain(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	ft := NewVersionFieldType()

	// Stay within 2^53 so every generated int64 is exactly representable
	// as a float64 and the comparison is meaningful.
	properties.Property("exactly representable integral floats parse to their value", prop.ForAll(
		func(v int64) bool {
			got, err := ft.Parse(FloatTerm(float64(v)))
			return err == nil && got == v
		},
		gen.Int64Range(-(1<<53), 1<<53),
	))

	properties.Property("floats with a fractional part never parse", prop.ForAll(
		func(whole int64, frac float64) bool {
			f := float64(whole) + frac
			if math.Trunc(f) == f {
				return true
			}
			_, err := ft.Parse(FloatTerm(f))
			return err != nil
		},
		gen.Int64Range(-1<<40, 1<<40),
		gen.Float64Range(0.001, 0.999),
	))

	properties.TestingRun(t)
}

// TestProperty_SetQueryOrderIndependence validates that a set predicate
// renders and matches identically regardless of term order.
func TestProperty_SetQueryOrderIndependence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	ft := NewVersionFieldType()

	properties.Property("reversed term order yields the same rendered predicate", prop.ForAll(
		func(values []int64) bool {
			if len(values) == 0 {
				return true
			}
			forward := make([]Term, len(values))
			backward := make([]Term, len(values))
			for i, v := range values {
				forward[i] = IntTerm(v)
				backward[len(values)-1-i] = IntTerm(v)
			}
			q1, err1 := ft.TermsQuery(forward)
			q2, err2 := ft.TermsQuery(backward)
			return err1 == nil && err2 == nil && q1.String() == q2.String()
		},
		gen.SliceOf(gen.Int64()),
	))

	properties.TestingRun(t)
}

// TestProperty_RangeBoundAdjustment validates the exclusive bound rule:
// an exclusive bound behaves exactly like the adjacent inclusive bound,
// and bounds that cannot be adjusted produce an unsatisfiable predicate.
func TestProperty_RangeBoundAdjustment(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	ft := NewVersionFieldType()

	properties.Property("exclusive bounds shift inward by one", prop.ForAll(
		func(lo, hi int64) bool {
			if lo == math.MaxInt64 || hi == math.MinInt64 {
				return true
			}
			lt, ht := IntTerm(lo), IntTerm(hi)
			q, err := ft.RangeQuery(&lt, &ht, false, false)
			if err != nil {
				return false
			}
			rng, ok := q.(*query.PointRange)
			return ok && rng.Lower == lo+1 && rng.Upper == hi-1
		},
		gen.Int64(),
		gen.Int64(),
	))

	properties.Property("exclusive bound at the domain edge matches nothing", prop.ForAll(
		func(useLower bool) bool {
			if useLower {
				t := IntTerm(math.MaxInt64)
				q, err := ft.RangeQuery(&t, nil, false, true)
				if err != nil {
					return false
				}
				_, ok := q.(*query.MatchNone)
				return ok
			}
			t := IntTerm(math.MinInt64)
			q, err := ft.RangeQuery(nil, &t, true, false)
			if err != nil {
				return false
			}
			_, ok := q.(*query.MatchNone)
			return ok
		},
		gen.Bool(),
	))

	properties.TestingRun(t)
}
