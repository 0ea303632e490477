package diff

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
)

// Style is the syntax role of a span, independent of its change status.
type Style string

const (
	StylePlain    Style = "plain"
	StyleKeyword  Style = "keyword"
	StyleString   Style = "string"
	StyleComment  Style = "comment"
	StyleConstant Style = "constant"
	StyleNumber   Style = "number"
)

type Span struct {
	Text  string `json:"text"`
	Style Style  `json:"style"`
}

// highlightLines tokenises src as JavaScript and returns the spans of every
// line. Tokenising the whole source keeps block comments and template
// strings that cross lines styled correctly.
func highlightLines(src string) [][]Span {
	lineCount := len(strings.Split(src, "\n"))
	out := make([][]Span, lineCount)

	lexer := lexers.Get("javascript")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	it, err := lexer.Tokenise(nil, src)
	if err != nil {
		for i, line := range strings.Split(src, "\n") {
			out[i] = plainSpans(line)
		}
		return out
	}

	row := 0
	for _, tok := range it.Tokens() {
		style := styleOf(tok.Type)
		parts := strings.Split(tok.Value, "\n")
		for i, part := range parts {
			if i > 0 {
				row++
			}
			if row >= lineCount {
				break
			}
			if part != "" {
				out[row] = appendSpan(out[row], part, style)
			}
		}
	}
	return out
}

func plainSpans(line string) []Span {
	if line == "" {
		return nil
	}
	return []Span{{Text: line, Style: StylePlain}}
}

func appendSpan(spans []Span, text string, style Style) []Span {
	if n := len(spans); n > 0 && spans[n-1].Style == style {
		spans[n-1].Text += text
		return spans
	}
	return append(spans, Span{Text: text, Style: style})
}

func styleOf(t chroma.TokenType) Style {
	switch {
	case t == chroma.KeywordConstant:
		return StyleConstant
	case t.InCategory(chroma.Keyword):
		return StyleKeyword
	case t.InCategory(chroma.Comment):
		return StyleComment
	case t.InSubCategory(chroma.LiteralString):
		return StyleString
	case t.InSubCategory(chroma.LiteralNumber):
		return StyleNumber
	default:
		return StylePlain
	}
}
