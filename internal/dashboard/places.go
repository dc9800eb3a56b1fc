package dashboard

import "strings"

const (
	// SuggestMinLength は候補表示を始める最小入力文字数。
	SuggestMinLength = 2
	// SuggestMaxResults は候補の最大件数。
	SuggestMaxResults = 8
)

// knownPlaces は地域入力の補完候補。
var knownPlaces = []string{
	"New York, New York",
	"Los Angeles, California",
	"Chicago, Illinois",
	"Houston, Texas",
	"Phoenix, Arizona",
	"Philadelphia, Pennsylvania",
	"San Antonio, Texas",
	"San Diego, California",
	"Dallas, Texas",
	"San Jose, California",
	"Austin, Texas",
	"Jacksonville, Florida",
	"Fort Worth, Texas",
	"Columbus, Ohio",
	"Charlotte, North Carolina",
	"San Francisco, California",
	"Indianapolis, Indiana",
	"Seattle, Washington",
	"Denver, Colorado",
	"Washington, District of Columbia",
	"Boston, Massachusetts",
	"Nashville, Tennessee",
	"Detroit, Michigan",
	"Portland, Oregon",
	"Las Vegas, Nevada",
	"Miami, Florida",
	"Atlanta, Georgia",
	"Minneapolis, Minnesota",
	"New Orleans, Louisiana",
	"Salt Lake City, Utah",
	"Wilmington, Delaware",
	"Dover, Delaware",
	"Toronto, Ontario",
	"Vancouver, British Columbia",
	"London, United Kingdom",
	"Sydney, Australia",
	"Delhi, India",
	"Dehradun, India",
	"Mumbai, India",
	"Bengaluru, India",
}

// Suggest は部分入力に一致する地域名を返す。
// 2文字未満の場合は空、それ以外は大文字小文字を区別しない部分一致で先頭8件まで返す。
func Suggest(partial string) []string {
	needle := strings.ToLower(strings.TrimSpace(partial))
	if len([]rune(needle)) < SuggestMinLength {
		return []string{}
	}

	matches := make([]string, 0, SuggestMaxResults)
	for _, place := range knownPlaces {
		if strings.Contains(strings.ToLower(place), needle) {
			matches = append(matches, place)
			if len(matches) == SuggestMaxResults {
				break
			}
		}
	}
	return matches
}
