package llm

import "strings"

// ModelChain returns the models to try in order: the requested model, then
// the fallbacks, skipping blanks and duplicates.
func ModelChain(requested string, fallbacks []string) []string {
	seen := make(map[string]struct{}, len(fallbacks)+1)
	chain := make([]string, 0, len(fallbacks)+1)
	for _, m := range append([]string{requested}, fallbacks...) {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		chain = append(chain, m)
	}
	return chain
}
