package speech

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// Narrator flattens markdown into plain speakable text. Story boards
// render to markdown for reading; when that markdown (or any piped-in
// document) is spoken, headings become sentences, formatting is
// dropped, and code and images are skipped entirely.
type Narrator struct {
	md goldmark.Markdown
}

// NewNarrator returns a Narrator with the default parser.
func NewNarrator() *Narrator {
	return &Narrator{md: goldmark.New()}
}

// Speakable extracts one speakable string per block element, in
// document order. Blocks with no voice content are omitted.
func (n *Narrator) Speakable(source string) []string {
	src := []byte(source)
	doc := n.md.Parser().Parse(gmtext.NewReader(src))

	var blocks []string
	ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node.(type) {
		case *ast.Paragraph, *ast.Heading, *ast.Blockquote, *ast.ListItem:
			text := CleanForSpeech(extractText(node, src))
			if text != "" {
				blocks = append(blocks, text)
			}
			// Children already collected; skip so nested
			// paragraphs are not emitted twice.
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return blocks
}

// Narration joins all speakable blocks into a single text, with
// sentence-terminated blocks so pauses land between them.
func (n *Narrator) Narration(source string) string {
	blocks := n.Speakable(source)
	for i, b := range blocks {
		if !strings.ContainsAny(b[len(b)-1:], ".!?") {
			blocks[i] = b + "."
		}
	}
	return strings.Join(blocks, " ")
}

// extractText collects the raw text under a node, skipping images and
// code spans and keeping link labels.
func extractText(node ast.Node, src []byte) string {
	var b strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch c := child.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(src))
			if c.SoftLineBreak() || c.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.Image, *ast.CodeSpan:
			// not voiced
		default:
			b.WriteString(extractText(c, src))
		}
	}
	return strings.TrimSpace(b.String())
}

var (
	spaceRE   = regexp.MustCompile(`\s+`)
	repunctRE = regexp.MustCompile(`([.!?])+`)
)

// symbolWords converts characters narration voices badly into words.
// Story text is prose, so the table stays small.
var symbolWords = strings.NewReplacer(
	"&", " and ",
	"+", " plus ",
	"%", " percent ",
	"·", ", ",
	"*", "",
	"_", " ",
	"~", "",
	"#", "",
)

// CleanForSpeech normalizes text for synthesis.
func CleanForSpeech(text string) string {
	text = symbolWords.Replace(text)
	text = repunctRE.ReplaceAllString(text, "$1")
	text = spaceRE.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
