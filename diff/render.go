package diff

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var changePrefix = map[Status]string{
	StatusAdded:     "+ ",
	StatusRemoved:   "- ",
	StatusUnchanged: "  ",
}

// RenderPlain writes the report as text: headers prefixed with "@@", lines
// with "+", "-" or two spaces.
func RenderPlain(w io.Writer, r *Report) error {
	for _, in := range r.Instructions {
		var err error
		if in.Kind == InstructionHeader {
			_, err = fmt.Fprintf(w, "@@ %s\n", in.Text)
		} else {
			_, err = fmt.Fprintf(w, "%s%s\n", changePrefix[in.Change], in.Text)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Plain is RenderPlain into a string.
func (r *Report) Plain() string {
	var b strings.Builder
	_ = RenderPlain(&b, r)
	return b.String()
}

type palette struct {
	header *color.Color
	prefix map[Status]*color.Color
	syntax map[Style]*color.Color
	faint  *color.Color
}

func newPalette() *palette {
	p := &palette{
		header: color.New(color.FgCyan, color.Bold),
		prefix: map[Status]*color.Color{
			StatusAdded:     color.New(color.FgGreen, color.Bold),
			StatusRemoved:   color.New(color.FgRed, color.Bold),
			StatusUnchanged: color.New(color.Reset),
		},
		syntax: map[Style]*color.Color{
			StylePlain:    color.New(color.Reset),
			StyleKeyword:  color.New(color.FgMagenta),
			StyleString:   color.New(color.FgYellow),
			StyleComment:  color.New(color.FgHiBlack, color.Italic),
			StyleConstant: color.New(color.FgBlue),
			StyleNumber:   color.New(color.FgCyan),
		},
		faint: color.New(color.FgRed, color.Faint),
	}
	p.header.EnableColor()
	p.faint.EnableColor()
	for _, c := range p.prefix {
		c.EnableColor()
	}
	for _, c := range p.syntax {
		c.EnableColor()
	}
	return p
}

// RenderANSI writes the report with terminal colors. Added and removed
// lines get a colored marker; tokens keep their syntax colors, except on
// removed lines which are dimmed as a whole.
func RenderANSI(w io.Writer, r *Report) error {
	p := newPalette()
	for _, in := range r.Instructions {
		if in.Kind == InstructionHeader {
			if _, err := p.header.Fprintln(w, in.Text); err != nil {
				return err
			}
			continue
		}

		prefix := p.prefix[in.Change]
		if prefix == nil {
			prefix = p.prefix[StatusUnchanged]
		}
		if _, err := prefix.Fprint(w, changePrefix[in.Change]); err != nil {
			return err
		}

		if in.Change == StatusRemoved {
			if _, err := p.faint.Fprint(w, in.Text); err != nil {
				return err
			}
		} else {
			for _, span := range in.Spans {
				c := p.syntax[span.Style]
				if c == nil {
					c = p.syntax[StylePlain]
				}
				if _, err := c.Fprint(w, span.Text); err != nil {
					return err
				}
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}
