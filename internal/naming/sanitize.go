package naming

import (
	"html"
	"strings"
)

// fileNameReplacer strips characters that are unsafe in filenames on at
// least one supported filesystem.
var fileNameReplacer = strings.NewReplacer(
	"/", "",
	"\\", "",
	":", "",
	"*", "",
	"?", "",
	"\"", "'",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName removes forbidden filename characters and collapses runs
// of whitespace to a single space.
func SanitizeFileName(name string) string {
	name = fileNameReplacer.Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

// SanitizeTitle normalizes a raw upstream cartridge title: drops a trailing
// ".tic", turns underscores into spaces, decodes HTML entities, collapses
// whitespace, and uppercases the first letter.
func SanitizeTitle(title string) string {
	if strings.HasSuffix(strings.ToLower(title), ".tic") {
		title = title[:len(title)-4]
	}
	title = strings.ReplaceAll(title, "_", " ")
	title = html.UnescapeString(title)
	title = strings.ReplaceAll(title, "\"", "'")
	title = strings.Join(strings.Fields(title), " ")

	runes := []rune(title)
	if len(runes) > 0 && runes[0] >= 'a' && runes[0] <= 'z' {
		runes[0] -= 'a' - 'A'
	}
	return string(runes)
}
