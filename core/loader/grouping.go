package loader

import (
	"strings"

	mmerrors "github.com/FocuswithJustin/mmdb/core/errors"
)

// HeadingKind tells chapter headings from section headings.
type HeadingKind int

const (
	ChapterHeading HeadingKind = iota + 1
	SectionHeading
)

func (k HeadingKind) String() string {
	if k == ChapterHeading {
		return "chapter"
	}
	return "section"
}

// Heading is a chapter or section header found in a comment.
type Heading struct {
	Kind    HeadingKind
	Chapter int
	Section int // 0 for chapter headings
	Title   string
	Pos     mmerrors.Position
}

// Comment rulers that open a heading. Parts ("####") and chapters ("#*#*")
// both start a new chapter; "=-=-" starts a section.
var headingRulers = []struct {
	prefix string
	kind   HeadingKind
}{
	{"####", ChapterHeading},
	{"#*#*", ChapterHeading},
	{"=-=-", SectionHeading},
}

// commentBody strips the comment delimiters.
func commentBody(tok string) string {
	tok = strings.TrimPrefix(tok, "$(")
	tok = strings.TrimSuffix(tok, "$)")
	return strings.TrimSpace(tok)
}

// parseHeading recognizes a heading comment: a ruler line followed by the
// title line.
func parseHeading(body string) (HeadingKind, string, bool) {
	lines := strings.Split(body, "\n")
	first := strings.TrimSpace(lines[0])
	for _, r := range headingRulers {
		if !strings.HasPrefix(first, r.prefix) {
			continue
		}
		for _, line := range lines[1:] {
			if title := strings.TrimSpace(line); title != "" {
				return r.kind, title, true
			}
		}
		return r.kind, "", true
	}
	return 0, "", false
}

// grouping tracks the current chapter and section and numbers the
// statements in each section.
type grouping struct {
	chapter    int
	section    int
	sectionSeq int
	headings   []Heading
}

func (g *grouping) heading(kind HeadingKind, title string, pos mmerrors.Position) {
	switch kind {
	case ChapterHeading:
		g.chapter++
		g.section = 0
	case SectionHeading:
		g.section++
	}
	g.sectionSeq = 0
	g.headings = append(g.headings, Heading{
		Kind:    kind,
		Chapter: g.chapter,
		Section: g.section,
		Title:   title,
		Pos:     pos,
	})
}

// next returns the grouping for the next statement.
func (g *grouping) next() (chapter, section, sectionSeq int) {
	g.sectionSeq++
	return g.chapter, g.section, g.sectionSeq
}
