package text

import "strings"

// HasCyrillics checks if the given string contains any Cyrillic characters
func HasCyrillics(content string) bool {
	for _, r := range content {
		if r >= 0x0400 && r <= 0x04FF {
			return true
		}
	}
	return false
}

// Spammers pad banned words with Cyrillic lookalikes to dodge naive
// substring checks. The fold maps the common homoglyphs back to Latin.
var homoglyphs = map[rune]rune{
	'а': 'a',
	'в': 'b',
	'е': 'e',
	'ё': 'e',
	'к': 'k',
	'м': 'm',
	'н': 'h',
	'о': 'o',
	'р': 'p',
	'с': 'c',
	'т': 't',
	'у': 'y',
	'х': 'x',
	'ѕ': 's',
	'і': 'i',
	'ї': 'i',
	'ј': 'j',
	'А': 'A',
	'В': 'B',
	'Е': 'E',
	'Ё': 'E',
	'К': 'K',
	'М': 'M',
	'Н': 'H',
	'О': 'O',
	'Р': 'P',
	'С': 'C',
	'Т': 'T',
	'У': 'Y',
	'Х': 'X',
	'Ѕ': 'S',
	'І': 'I',
	'Ї': 'I',
	'Ј': 'J',
}

// FoldHomoglyphs replaces Cyrillic lookalike characters with their Latin
// counterparts, leaving everything else untouched.
func FoldHomoglyphs(content string) string {
	if !HasCyrillics(content) {
		return content
	}
	var b strings.Builder
	b.Grow(len(content))
	for _, r := range content {
		if folded, ok := homoglyphs[r]; ok {
			b.WriteRune(folded)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
