package vision

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// screenshotPrefixes are localized screenshot filename prefixes, stored
// lowercase with diacritics removed so "Snímek obrazovky" matches.
var screenshotPrefixes = []string{
	"screenshot",
	"screen shot",
	"snimek obrazovky", // cs
	"captura de pantalla", // es
	"capture d'ecran", // fr
	"bildschirmfoto", // de
	"zrzut ekranu", // pl
	"skarmavbild", // sv
}

// RemoveDiacritics removes diacritical marks from a string (e.g., "Snímek" -> "Snimek").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// IsScreenshotName reports whether a filename looks like a screenshot,
// matching localized prefixes case- and diacritics-insensitively.
func IsScreenshotName(name string) bool {
	normalized := strings.ToLower(RemoveDiacritics(name))
	for _, prefix := range screenshotPrefixes {
		if strings.HasPrefix(normalized, prefix) {
			return true
		}
	}
	return false
}

// knownScreenSizes are common device screen resolutions, portrait form.
var knownScreenSizes = map[[2]int]bool{
	{750, 1334}:  true, // iPhone 8
	{828, 1792}:  true, // iPhone 11
	{1080, 1920}: true, // common Android / iPhone Plus
	{1080, 2340}: true,
	{1080, 2400}: true,
	{1125, 2436}: true, // iPhone X
	{1170, 2532}: true, // iPhone 13
	{1179, 2556}: true, // iPhone 15
	{1290, 2796}: true, // iPhone 15 Pro Max
	{1440, 2560}: true,
	{1440, 3200}: true,
}

// IsScreenSize reports whether width x height matches a known device screen
// in either orientation.
func IsScreenSize(width, height int) bool {
	if width > height {
		width, height = height, width
	}
	return knownScreenSizes[[2]int{width, height}]
}
