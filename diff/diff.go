package diff

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

type InstructionKind string

const (
	InstructionHeader InstructionKind = "header"
	InstructionLine   InstructionKind = "line"
)

// Instruction is one rendered row: a section header or a classified line.
type Instruction struct {
	Kind   InstructionKind `json:"kind"`
	Text   string          `json:"text"`
	Change Status          `json:"change,omitempty"`
	Spans  []Span          `json:"spans,omitempty"`
}

// Report is the full comparison of two versions of a source file.
type Report struct {
	Blocks       []Block       `json:"blocks"`
	Instructions []Instruction `json:"instructions"`
}

// Count returns how many blocks ended up with status.
func (r *Report) Count(status Status) int {
	n := 0
	for _, b := range r.Blocks {
		if b.Status == status {
			n++
		}
	}
	return n
}

// Changed reports whether any block or loose line differs.
func (r *Report) Changed() bool {
	for _, in := range r.Instructions {
		if in.Kind == InstructionLine && in.Change != StatusUnchanged {
			return true
		}
	}
	return false
}

// Generator compares two versions of JavaScript source at function and
// export granularity.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(ctx context.Context, originalCode, newCode string) (*Report, error) {
	oldSeg, err := segment(ctx, originalCode)
	if err != nil {
		return nil, fmt.Errorf("parse original code: %w", err)
	}
	newSeg, err := segment(ctx, newCode)
	if err != nil {
		return nil, fmt.Errorf("parse new code: %w", err)
	}

	c := &comparison{
		report:    &Report{Blocks: []Block{}, Instructions: []Instruction{}},
		oldSeg:    oldSeg,
		newSeg:    newSeg,
		oldSpans:  highlightLines(originalCode),
		newSpans:  highlightLines(newCode),
		oldFuncs:  oldSeg.functions(),
		oldLines:  make(map[string]bool),
		oldItems:  make(map[string]bool),
		oldExport: make(map[string]bool),
	}
	for _, line := range oldSeg.lines {
		c.oldLines[line] = true
	}
	for _, b := range oldSeg.exports() {
		c.oldExport[normalize(b.Lines)] = true
		for item := range b.items {
			c.oldItems[item] = true
		}
	}

	c.walkNew()
	c.removedFunctions(newCode)
	return c.report, nil
}

type comparison struct {
	report   *Report
	oldSeg   *segmentation
	newSeg   *segmentation
	oldSpans [][]Span
	newSpans [][]Span
	oldFuncs map[string]*Block

	oldLines  map[string]bool
	oldItems  map[string]bool
	oldExport map[string]bool
}

func (c *comparison) walkNew() {
	starts := make(map[int]*Block)
	for _, b := range c.newSeg.blocks {
		if _, taken := starts[b.Start]; !taken {
			starts[b.Start] = b
		}
	}

	for row := 0; row < len(c.newSeg.lines); {
		b, ok := starts[row]
		if !ok {
			line := c.newSeg.lines[row]
			status := StatusAdded
			if c.oldLines[line] {
				status = StatusUnchanged
			}
			c.line(line, status, c.newSpans[row])
			row++
			continue
		}

		switch b.Kind {
		case KindFunction:
			c.function(b)
		case KindExport:
			c.export(b)
		}
		row = b.End + 1
	}
}

func (c *comparison) function(b *Block) {
	old, exists := c.oldFuncs[b.Name]
	switch {
	case exists && slices.Equal(old.Lines, b.Lines):
		c.keep(b, StatusUnchanged)
		for i, line := range b.Lines {
			c.line(line, StatusUnchanged, c.newSpans[b.Start+i])
		}

	case exists:
		c.keep(b, StatusModified)
		c.header("Modified function: " + b.Name)
		oldSet := lineSet(old.Lines)
		for i, line := range b.Lines {
			status := StatusAdded
			if oldSet[line] {
				status = StatusUnchanged
			}
			c.line(line, status, c.newSpans[b.Start+i])
		}

		newSet := lineSet(b.Lines)
		var removed []int
		for i, line := range old.Lines {
			if !newSet[line] {
				removed = append(removed, i)
			}
		}
		if len(removed) > 0 {
			c.header("Removed lines:")
			for _, i := range removed {
				c.line(old.Lines[i], StatusRemoved, c.oldSpans[old.Start+i])
			}
		}

	default:
		c.keep(b, StatusAdded)
		c.header("New function: " + b.Name)
		for i, line := range b.Lines {
			c.line(line, StatusAdded, c.newSpans[b.Start+i])
		}
	}
}

func (c *comparison) export(b *Block) {
	if c.oldExport[normalize(b.Lines)] {
		c.keep(b, StatusUnchanged)
		for i, line := range b.Lines {
			c.line(line, StatusUnchanged, c.newSpans[b.Start+i])
		}
		return
	}

	c.keep(b, StatusModified)
	c.header("Modified exports")
	itemsByRow := make(map[int][]string)
	for item, row := range b.items {
		itemsByRow[row] = append(itemsByRow[row], item)
	}
	for i, line := range b.Lines {
		status := StatusUnchanged
		for _, item := range itemsByRow[b.Start+i] {
			if !c.oldItems[item] {
				status = StatusAdded
				break
			}
		}
		c.line(line, status, c.newSpans[b.Start+i])
	}
}

// removedFunctions lists old functions whose name or declaration line is gone
// from the new source. A function whose declaration line changed is listed
// here as well as under its modified block.
func (c *comparison) removedFunctions(newCode string) {
	var removed []*Block
	for _, b := range c.oldSeg.blocks {
		if b.Kind != KindFunction {
			continue
		}
		name := b.Name
		if i := strings.LastIndex(name, "."); i >= 0 {
			name = name[i+1:]
		}
		head := strings.TrimSpace(c.oldSeg.lines[b.head])
		if !strings.Contains(newCode, name) || !strings.Contains(newCode, head) {
			removed = append(removed, b)
		}
	}
	if len(removed) == 0 {
		return
	}

	c.header("Removed functions:")
	for _, b := range removed {
		c.keep(b, StatusRemoved)
		for i, line := range b.Lines {
			c.line(line, StatusRemoved, c.oldSpans[b.Start+i])
		}
	}
}

func (c *comparison) keep(b *Block, status Status) {
	out := *b
	out.Status = status
	out.Lines = append([]string{}, b.Lines...)
	c.report.Blocks = append(c.report.Blocks, out)
}

func (c *comparison) header(text string) {
	c.report.Instructions = append(c.report.Instructions, Instruction{Kind: InstructionHeader, Text: text})
}

func (c *comparison) line(text string, status Status, spans []Span) {
	c.report.Instructions = append(c.report.Instructions, Instruction{
		Kind:   InstructionLine,
		Text:   text,
		Change: status,
		Spans:  spans,
	})
}

func lineSet(lines []string) map[string]bool {
	set := make(map[string]bool, len(lines))
	for _, l := range lines {
		set[l] = true
	}
	return set
}

// normalize drops all whitespace so formatting-only edits compare equal.
func normalize(lines []string) string {
	return strings.Join(strings.Fields(strings.Join(lines, "\n")), "")
}
