package extract

import (
	"strings"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"

	"github.com/hpungsan/backseat/internal/errors"
)

// applyRegex returns every non-overlapping match of pattern in text, joined by
// newlines. No match yields "". A blank pattern returns text unchanged, as does
// a pattern that fails to compile or exceeds the match timeout.
func (e *Extractor) applyRegex(text, pattern string) string {
	if strings.TrimSpace(pattern) == "" {
		return text
	}

	re, err := regexp2.Compile(pattern, regexp2.ECMAScript)
	if err != nil {
		e.warnRegex(pattern, err)
		return text
	}
	re.MatchTimeout = e.regexTimeout

	matches, err := findAll(re, text)
	if err != nil {
		e.warnRegex(pattern, err)
		return text
	}
	return strings.Join(matches, "\n")
}

func findAll(re *regexp2.Regexp, text string) ([]string, error) {
	var matches []string
	m, err := re.FindStringMatch(text)
	for m != nil && err == nil {
		matches = append(matches, m.String())
		m, err = re.FindNextMatch(m)
	}
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (e *Extractor) warnRegex(pattern string, err error) {
	e.logger.Warn("skipping regex filter",
		zap.String("regex", pattern),
		zap.Error(errors.NewSelector("regex", pattern, err)),
	)
}
