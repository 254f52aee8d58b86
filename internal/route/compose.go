package route

import (
	"strings"

	"backend-fieldroute/internal/stops"
)

// Separator joins city codes in a route string.
const Separator = " - "

// Compose renders stops as a route string such as "lj - kr - lj". Consecutive
// stops in the same city collapse into one code; repeats separated by another
// city are kept.
func Compose(stopList []stops.Stop) string {
	codes := make([]string, 0, len(stopList))
	for _, s := range stopList {
		code := s.City.ShortName
		if n := len(codes); n > 0 && codes[n-1] == code {
			continue
		}
		codes = append(codes, code)
	}
	return strings.Join(codes, Separator)
}
