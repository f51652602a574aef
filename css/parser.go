// Package css turns style sheets and style attributes into rules and
// resolves each node's style from them.
package css

import (
	"errors"
	"io"
	"maps"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

var ErrUnsupportedSelector = errors.New("unsupported selector")

// Parser reads style sheets and inline declaration lists. Anything it does
// not understand is skipped with a debug log; parsing never fails outright.
type Parser struct {
	log *zap.Logger
}

func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// ParseStylesheet returns one rule per selector of every ruleset, in source
// order. Rules inside @media (prefers-color-scheme: ...) carry that scheme
// as their Media; other at-rules are dropped.
func (p *Parser) ParseStylesheet(data []byte, source string) []Rule {
	rules := make([]Rule, 0)
	parser := css.NewParser(parse.NewInputBytes(data), false)

	media := ""
	skipDepth := 0
	var selectors []Selector
	var body map[string]string
	offset := -1

	for {
		gt, _, text := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			if recoverable(parser, &offset) {
				p.log.Debug("CSS parse error", zap.String("source", source), zap.Error(parser.Err()))
				continue
			}
			p.log.Debug("Parsed stylesheet", zap.String("source", source), zap.Int("rules", len(rules)))
			return rules

		case css.BeginAtRuleGrammar:
			if skipDepth > 0 || media != "" {
				skipDepth++
				continue
			}
			if m, ok := mediaScheme(string(text), parser.Values()); ok {
				media = m
			} else {
				p.log.Debug("Skipping at-rule", zap.String("rule", string(text)))
				skipDepth++
			}

		case css.EndAtRuleGrammar:
			if skipDepth > 0 {
				skipDepth--
			} else {
				media = ""
			}

		case css.BeginRulesetGrammar:
			selectors = p.parseSelectorList(text, parser.Values())
			body = map[string]string{}

		case css.DeclarationGrammar:
			if body != nil {
				body[strings.ToLower(string(text))] = joinValues(parser.Values())
			}

		case css.EndRulesetGrammar:
			if skipDepth == 0 {
				for _, sel := range selectors {
					rules = append(rules, NewRule(media, sel, maps.Clone(body)))
				}
			}
			selectors, body = nil, nil
		}
	}
}

// ParseDeclarations parses the body of a style attribute.
func (p *Parser) ParseDeclarations(style string) map[string]string {
	pairs := map[string]string{}
	parser := css.NewParser(parse.NewInputString(style), true)
	offset := -1
	for {
		gt, _, text := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			if recoverable(parser, &offset) {
				p.log.Debug("Inline style parse error", zap.String("style", style), zap.Error(parser.Err()))
				continue
			}
			return pairs
		case css.DeclarationGrammar:
			if value := joinValues(parser.Values()); value != "" {
				pairs[strings.ToLower(string(text))] = value
			}
		}
	}
}

// recoverable reports whether parsing can go on after an ErrorGrammar: the
// error is not the end of input and the parser has moved since the last one.
func recoverable(parser *css.Parser, lastOffset *int) bool {
	err := parser.Err()
	if err == nil || errors.Is(err, io.EOF) || parser.Offset() == *lastOffset {
		return false
	}
	*lastOffset = parser.Offset()
	return true
}

func (p *Parser) parseSelectorList(data []byte, values []css.Token) []Selector {
	var sb strings.Builder
	sb.Write(data)
	for _, v := range values {
		sb.Write(v.Data)
	}

	var selectors []Selector
	for text := range strings.SplitSeq(sb.String(), ",") {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		sel, err := ParseSelector(text)
		if err != nil {
			p.log.Debug("Skipping selector", zap.String("selector", text), zap.Error(err))
			continue
		}
		selectors = append(selectors, sel)
	}
	return selectors
}

// joinValues rebuilds a declaration value from its tokens, collapsing runs
// of whitespace and dropping a trailing !important.
func joinValues(tokens []css.Token) string {
	var sb strings.Builder
	pendingSpace := false
	for _, t := range tokens {
		if t.TokenType == css.WhitespaceToken {
			pendingSpace = sb.Len() > 0
			continue
		}
		if pendingSpace {
			sb.WriteByte(' ')
			pendingSpace = false
		}
		sb.Write(t.Data)
	}
	value := strings.TrimSpace(sb.String())
	if strings.HasSuffix(strings.ToLower(value), "!important") {
		value = strings.TrimSpace(value[:len(value)-len("!important")])
	}
	return value
}

func mediaScheme(rule string, values []css.Token) (string, bool) {
	if !strings.EqualFold(rule, "@media") {
		return "", false
	}
	query := strings.ToLower(joinValues(values))
	if !strings.Contains(query, "prefers-color-scheme") {
		return "", false
	}
	switch {
	case strings.Contains(query, "dark"):
		return "dark", true
	case strings.Contains(query, "light"):
		return "light", true
	}
	return "", false
}
