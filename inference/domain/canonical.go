package domain

import (
	"sort"
	"strings"
)

// Canonicalize mapeia um rótulo livre para a chave da sua classe de equivalência:
// minúsculas, tudo fora de [a-z0-9 espaço -] vira espaço, tokens separados por
// espaço ou hífen, vazios descartados, ordenados e unidos por um espaço.
//
// "Sky Blue", "blue, sky!!" e "SKY-BLUE" resultam em "blue sky".
func Canonicalize(label string) string {
	lower := strings.ToLower(label)

	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	tokens := strings.FieldsFunc(b.String(), func(r rune) bool {
		return r == ' ' || r == '-'
	})
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
