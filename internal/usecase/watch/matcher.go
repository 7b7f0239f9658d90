package watch

import (
	"strings"
	"unicode"
)

// Normalize удаляет пробельные символы и приводит текст к нижнему регистру.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// NormalizeWord приводит слово к ключу реестра по тому же правилу, что и текст.
func NormalizeWord(word string) string {
	return Normalize(word)
}

// CountOccurrences считает непересекающиеся вхождения слов в нормализованном тексте.
// Слова с нулевым количеством в результат не попадают.
func CountOccurrences(normalized string, words []string) map[string]int {
	out := make(map[string]int)
	if normalized == "" {
		return out
	}
	for _, w := range words {
		if w == "" {
			continue
		}
		if n := strings.Count(normalized, w); n > 0 {
			out[w] = n
		}
	}
	return out
}
