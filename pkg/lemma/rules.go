package lemma

import "strings"

// applySuffixRules reduces regular French inflections. Every output is a
// fixed point of the rules so repeated application changes nothing.
func applySuffixRules(token string) string {
	if len([]rune(token)) <= 3 {
		return token
	}

	// Irregular-plural families.
	if strings.HasSuffix(token, "eaux") {
		return strings.TrimSuffix(token, "x")
	}
	if strings.HasSuffix(token, "aux") && len(token) > 4 {
		return strings.TrimSuffix(token, "ux") + "l"
	}
	if strings.HasSuffix(token, "oux") && len(token) > 4 {
		return strings.TrimSuffix(token, "x")
	}

	// First-group future/conditional forms keep the infinitive visible.
	for _, suffix := range []string{"eraient", "erions", "eriez", "erait", "erais", "eront", "erons", "erez", "erai", "eras", "era"} {
		if strings.HasSuffix(token, suffix) && len(token) > len(suffix)+2 {
			return strings.TrimSuffix(token, suffix) + "er"
		}
	}

	// Past participles, feminine and plural agreement collapse to the
	// masculine singular.
	for _, suffix := range []string{"ées", "és", "ée"} {
		if strings.HasSuffix(token, suffix) && len(token) > len(suffix)+2 {
			return strings.TrimSuffix(token, suffix) + "é"
		}
	}

	// Regular plural. Words whose singular also ends in s are excluded.
	if strings.HasSuffix(token, "s") {
		for _, keep := range []string{"ss", "us", "is", "as", "os", "ès"} {
			if strings.HasSuffix(token, keep) {
				return token
			}
		}
		return strings.TrimSuffix(token, "s")
	}

	return token
}
