package slot

import (
	"regexp"
	"strconv"
	"strings"
)

// Accepted intake amount range. Requests outside it are dropped
// silently.
const (
	MinAmount = 20
	MaxAmount = 5000
)

// Request formats accepted in the source room: a bare number, or the
// number combined with 群 / 微信 / 微信群 on either side.
var intakePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(\d+)$`),
	regexp.MustCompile(`^(\d+)\s*群$`),
	regexp.MustCompile(`^群\s*(\d+)$`),
	regexp.MustCompile(`^微信\s*(\d+)$`),
	regexp.MustCompile(`^(\d+)\s*微信$`),
	regexp.MustCompile(`^微信群\s*(\d+)$`),
	regexp.MustCompile(`^(\d+)\s*微信群$`),
	regexp.MustCompile(`^微信\s*群\s*(\d+)$`),
	regexp.MustCompile(`^(\d+)\s*微信\s*群$`),
}

var (
	numberRe     = regexp.MustCompile(`\d+`)
	plusNumberRe = regexp.MustCompile(`\+\d+`)
)

// ParseIntakeAmount extracts the requested amount from a source-room
// message. Relay echoes (leading "+"), unrecognized formats and
// out-of-range values all report ok=false.
func ParseIntakeAmount(text string) (int, bool) {
	text = strings.TrimSpace(text)
	if text == "" || strings.HasPrefix(text, "+") {
		return 0, false
	}
	for _, re := range intakePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < MinAmount || n > MaxAmount {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// ExtractNumbers pulls every number out of a fulfillment-room message.
// Numbers written with a "+" prefix are reported separately and take
// precedence during reconciliation.
func ExtractNumbers(text string) (raw, plus []int) {
	for _, m := range numberRe.FindAllString(text, -1) {
		if n, err := strconv.Atoi(m); err == nil {
			raw = append(raw, n)
		}
	}
	for _, m := range plusNumberRe.FindAllString(text, -1) {
		if n, err := strconv.Atoi(m[1:]); err == nil {
			plus = append(plus, n)
		}
	}
	return raw, plus
}
