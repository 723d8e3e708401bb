// Package parser turns a free-text classifier reply into a score and reason.
//
// Replies are expected to look like "<label>: <reason>" but the format is
// advisory, so the parser tries an ordered list of strategies and the first
// one that matches wins. The last strategy always matches.
package parser

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/vietddude/labeler/internal/core/domain"
)

// Category maps a reply label to its score.
type Category struct {
	Label string
	Score domain.Score
}

// Result is a parsed reply.
type Result struct {
	Score    domain.Score
	Reason   string
	Strategy string // name of the strategy that matched
}

// Strategy is one independent way of reading a reply.
type Strategy interface {
	Name() string
	// Parse inspects normalized reply text. ok is false when the strategy
	// does not apply.
	Parse(text string) (res Result, ok bool)
}

// Parser applies strategies in order.
type Parser struct {
	strategies      []Strategy
	maxReasonLength int
}

// New builds the default strategy chain for the given categories, in
// declaration order.
func New(categories []Category, maxReasonLength int) *Parser {
	cats := append([]Category(nil), categories...)
	return NewWithStrategies(maxReasonLength,
		&SplitStrategy{categories: cats},
		NewFirstOccurrenceStrategy(cats),
		&DeclarationOrderStrategy{categories: cats},
		UnparseableStrategy{},
	)
}

// NewWithStrategies builds a parser from an explicit chain.
func NewWithStrategies(maxReasonLength int, strategies ...Strategy) *Parser {
	return &Parser{strategies: strategies, maxReasonLength: maxReasonLength}
}

// Parse resolves a raw reply. It never fails.
func (p *Parser) Parse(raw string) Result {
	text := Normalize(raw)
	for _, s := range p.strategies {
		if res, ok := s.Parse(text); ok {
			res.Strategy = s.Name()
			res.Reason = Truncate(res.Reason, p.maxReasonLength)
			return res
		}
	}
	return Result{Score: domain.ScoreNeutral, Reason: domain.ReasonUnparseable, Strategy: UnparseableStrategy{}.Name()}
}

// Normalize applies NFC, folds line breaks into spaces and trims.
func Normalize(raw string) string {
	text := norm.NFC.String(raw)
	text = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(text)
	return strings.TrimSpace(text)
}

// Truncate cuts s to at most n runes. n <= 0 disables the limit.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// isSeparator reports ASCII and full-width colons.
func isSeparator(r rune) bool {
	return r == ':' || r == '：'
}

// trimReason strips spaces and colons from both ends.
func trimReason(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || isSeparator(r)
	})
}

// removeLabel deletes every occurrence of label and trims the remainder.
func removeLabel(text, label string) string {
	return trimReason(strings.ReplaceAll(text, label, ""))
}
