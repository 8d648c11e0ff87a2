// Package similarity scores keyword overlap with the Jaccard index.
package similarity

import "math"

// Jaccard treats a and b as sets and returns 100·|A∩B|/|A∪B| rounded to two
// decimals. Either set being empty scores 0.
func Jaccard(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	common := 0
	for k := range setA {
		if _, ok := setB[k]; ok {
			common++
		}
	}
	union := len(setA) + len(setB) - common
	return Round2(100 * float64(common) / float64(union))
}

// Round2 rounds half away from zero to two decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Intersection returns the unique elements of b that also appear in a, in
// b's order.
func Intersection(a, b []string) []string {
	setA := toSet(a)
	out := make([]string, 0)
	seen := make(map[string]struct{}, len(b))
	for _, k := range b {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := setA[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Difference returns the unique elements of b that do not appear in a, in
// b's order.
func Difference(b, a []string) []string {
	setA := toSet(a)
	out := make([]string, 0)
	seen := make(map[string]struct{}, len(b))
	for _, k := range b {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := setA[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
