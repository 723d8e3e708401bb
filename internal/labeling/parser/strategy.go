package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/vietddude/labeler/internal/core/domain"
)

// SplitStrategy splits once on the first colon and accepts the left side
// when it is exactly a known label.
type SplitStrategy struct {
	categories []Category
}

func (s *SplitStrategy) Name() string { return "split" }

func (s *SplitStrategy) Parse(text string) (Result, bool) {
	idx := strings.IndexFunc(text, isSeparator)
	if idx < 0 {
		return Result{}, false
	}
	left := strings.TrimSpace(text[:idx])
	_, size := utf8.DecodeRuneInString(text[idx:])
	right := strings.TrimSpace(text[idx+size:])

	for _, c := range s.categories {
		if left == c.Label {
			return Result{Score: c.Score, Reason: right}, true
		}
	}
	return Result{}, false
}

// FirstOccurrenceStrategy accepts the label that appears earliest in the text.
type FirstOccurrenceStrategy struct {
	pattern *regexp.Regexp
	scores  map[string]domain.Score
}

// NewFirstOccurrenceStrategy compiles an alternation of the category labels.
func NewFirstOccurrenceStrategy(categories []Category) *FirstOccurrenceStrategy {
	s := &FirstOccurrenceStrategy{scores: make(map[string]domain.Score, len(categories))}
	alts := make([]string, 0, len(categories))
	for _, c := range categories {
		if c.Label == "" {
			continue
		}
		if _, dup := s.scores[c.Label]; !dup {
			s.scores[c.Label] = c.Score
			alts = append(alts, regexp.QuoteMeta(c.Label))
		}
	}
	if len(alts) > 0 {
		s.pattern = regexp.MustCompile("(" + strings.Join(alts, "|") + ")")
	}
	return s
}

func (s *FirstOccurrenceStrategy) Name() string { return "first_occurrence" }

func (s *FirstOccurrenceStrategy) Parse(text string) (Result, bool) {
	if s.pattern == nil {
		return Result{}, false
	}
	label := s.pattern.FindString(text)
	if label == "" {
		return Result{}, false
	}
	return Result{Score: s.scores[label], Reason: removeLabel(text, label)}, true
}

// DeclarationOrderStrategy accepts the first category, in declaration
// order, whose label is a substring of the text.
type DeclarationOrderStrategy struct {
	categories []Category
}

func (s *DeclarationOrderStrategy) Name() string { return "declaration_order" }

func (s *DeclarationOrderStrategy) Parse(text string) (Result, bool) {
	for _, c := range s.categories {
		if c.Label != "" && strings.Contains(text, c.Label) {
			return Result{Score: c.Score, Reason: removeLabel(text, c.Label)}, true
		}
	}
	return Result{}, false
}

// UnparseableStrategy always matches with a neutral score.
type UnparseableStrategy struct{}

func (UnparseableStrategy) Name() string { return "unparseable" }

func (UnparseableStrategy) Parse(string) (Result, bool) {
	return Result{Score: domain.ScoreNeutral, Reason: domain.ReasonUnparseable}, true
}
