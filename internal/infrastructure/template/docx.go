package template

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"path"
	"regexp"
	"strings"

	"loan_report/internal/domain/report"
)

const documentPart = "word/document.xml"

var (
	// tokenRe matches paragraph boundaries and text nodes. Paragraphs nest
	// (text boxes carry their own <w:p> inside a run), so boundaries are
	// tracked with a stack rather than matched pairwise.
	tokenRe = regexp.MustCompile(`<w:p(?:\s[^>]*)?/?>|</w:p>|(<w:t(?:\s[^>]*)?>)([^<]*)(</w:t>)`)
	tagRe   = regexp.MustCompile(`<[^>]*>`)
)

// contentParts lists the parts of a Word package that carry visible text.
var contentParts = []string{
	documentPart,
	"word/header*.xml",
	"word/footer*.xml",
	"word/footnotes.xml",
	"word/endnotes.xml",
}

// DOCXFiller implements TemplateFiller for docx templates.
//
// Word splits typed text into runs at arbitrary points (spell check, edits,
// formatting), so a placeholder may span several <w:t> nodes. The filler
// joins the text of each paragraph, substitutes there, and writes the result
// back into the original runs: the first run of a match gets the value, the
// runs it swallowed are emptied. Run formatting of the first run wins.
type DOCXFiller struct{}

// NewDOCX returns a DOCX filler.
func NewDOCX() DOCXFiller { return DOCXFiller{} }

// Fill substitutes fields into the template and returns the new package.
// Any placeholder without a value fails the whole fill.
func (DOCXFiller) Fill(tmpl []byte, fields report.Fields) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(tmpl), int64(len(tmpl)))
	if err != nil {
		return nil, report.NewError(report.KindRender, "open docx template", err)
	}
	if !hasPart(zr, documentPart) {
		return nil, report.NewError(report.KindRender, "open docx template",
			fmt.Errorf("%s not found, not a Word document", documentPart))
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	missing := missingSet{}

	for _, f := range zr.File {
		if !isContentPart(f.Name) {
			if err := zw.Copy(f); err != nil {
				return nil, report.NewError(report.KindRender, "copy "+f.Name, err)
			}
			continue
		}

		raw, err := readPart(f)
		if err != nil {
			return nil, report.NewError(report.KindRender, "read "+f.Name, err)
		}
		for _, name := range leftoverPlaceholders(string(raw), fields) {
			missing.add(name)
		}
		filled, changed := fillXML(string(raw), fields, missing)
		if !changed {
			if err := zw.Copy(f); err != nil {
				return nil, report.NewError(report.KindRender, "copy "+f.Name, err)
			}
			continue
		}

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: f.Modified,
		})
		if err != nil {
			return nil, report.NewError(report.KindRender, "write "+f.Name, err)
		}
		if _, err := io.WriteString(w, filled); err != nil {
			return nil, report.NewError(report.KindRender, "write "+f.Name, err)
		}
	}

	if err := missing.err(); err != nil {
		return nil, report.NewError(report.KindRender, "fill docx template", err)
	}
	if err := zw.Close(); err != nil {
		return nil, report.NewError(report.KindRender, "finalize docx", err)
	}
	return buf.Bytes(), nil
}

// DocumentText returns the plain text of the main document part, one line
// per paragraph.
func DocumentText(docx []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(docx), int64(len(docx)))
	if err != nil {
		return "", err
	}
	for _, f := range zr.File {
		if f.Name != documentPart {
			continue
		}
		raw, err := readPart(f)
		if err != nil {
			return "", err
		}
		doc := string(raw)
		paras := scanParagraphs(doc)
		lines := make([]string, len(paras))
		for i, nodes := range paras {
			var sb strings.Builder
			for _, n := range nodes {
				sb.WriteString(html.UnescapeString(doc[n[4]:n[5]]))
			}
			lines[i] = sb.String()
		}
		return strings.Join(lines, "\n"), nil
	}
	return "", fmt.Errorf("%s not found", documentPart)
}

// scanParagraphs groups the text nodes of doc by their innermost enclosing
// paragraph, in paragraph opening order. Each node is the submatch index
// slice of tokenRe. Text outside any paragraph forms its own trailing group.
func scanParagraphs(doc string) [][][]int {
	var (
		paras [][][]int
		stack []int
		loose [][]int
	)
	for _, m := range tokenRe.FindAllStringSubmatchIndex(doc, -1) {
		tok := doc[m[0]:m[1]]
		switch {
		case m[2] >= 0:
			if len(stack) == 0 {
				loose = append(loose, m)
				continue
			}
			top := stack[len(stack)-1]
			paras[top] = append(paras[top], m)
		case strings.HasPrefix(tok, "</"):
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case strings.HasSuffix(tok, "/>"):
			// Empty paragraph.
			paras = append(paras, nil)
		default:
			paras = append(paras, nil)
			stack = append(stack, len(paras)-1)
		}
	}
	if len(loose) > 0 {
		paras = append(paras, loose)
	}
	return paras
}

// fillXML substitutes placeholders paragraph by paragraph and rewrites only
// the text nodes that changed.
func fillXML(doc string, fields report.Fields, missing missingSet) (string, bool) {
	replaced := map[int]string{}
	for _, nodes := range scanParagraphs(doc) {
		for start, text := range fillParagraph(doc, nodes, fields, missing) {
			replaced[start] = text
		}
	}
	if len(replaced) == 0 {
		return doc, false
	}

	var sb strings.Builder
	prev := 0
	for _, m := range tokenRe.FindAllStringSubmatchIndex(doc, -1) {
		text, ok := replaced[m[0]]
		if !ok {
			continue
		}
		sb.WriteString(doc[prev:m[0]])
		sb.WriteString(preserveSpace(doc[m[2]:m[3]]))
		sb.WriteString(escapeXML(text))
		sb.WriteString(doc[m[6]:m[7]])
		prev = m[1]
	}
	sb.WriteString(doc[prev:])
	return sb.String(), true
}

// fillParagraph substitutes placeholders across the text nodes of one
// paragraph and returns the new text of every node it touched, keyed by
// the node's offset in doc.
func fillParagraph(doc string, nodes [][]int, fields report.Fields, missing missingSet) map[int]string {
	if len(nodes) == 0 {
		return nil
	}

	texts := make([]string, len(nodes))
	offsets := make([]int, len(nodes))
	var full strings.Builder
	for i, n := range nodes {
		offsets[i] = full.Len()
		texts[i] = html.UnescapeString(doc[n[4]:n[5]])
		full.WriteString(texts[i])
	}

	joined := full.String()
	matches := placeholderRe.FindAllStringSubmatchIndex(joined, -1)
	if len(matches) == 0 {
		return nil
	}

	dirty := make([]bool, len(nodes))
	// Right to left keeps offsets of earlier matches valid.
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		name := joined[m[2]:m[3]]
		value, ok := fields[name]
		if !ok {
			missing.add(name)
			continue
		}

		first := segmentAt(offsets, m[0])
		last := segmentAt(offsets, m[1]-1)
		if first == last {
			t := texts[first]
			texts[first] = t[:m[0]-offsets[first]] + value + t[m[1]-offsets[first]:]
		} else {
			texts[first] = texts[first][:m[0]-offsets[first]] + value
			for k := first + 1; k < last; k++ {
				texts[k] = ""
				dirty[k] = true
			}
			texts[last] = texts[last][m[1]-offsets[last]:]
			dirty[last] = true
		}
		dirty[first] = true
	}

	out := map[int]string{}
	for i, n := range nodes {
		if dirty[i] {
			out[n[0]] = texts[i]
		}
	}
	return out
}

// leftoverPlaceholders reports placeholder names without a field in the
// tag-stripped text of a part, independent of paragraph structure.
func leftoverPlaceholders(doc string, fields report.Fields) []string {
	var names []string
	for _, name := range Placeholders(html.UnescapeString(tagRe.ReplaceAllString(doc, ""))) {
		if _, ok := fields[name]; !ok {
			names = append(names, name)
		}
	}
	return names
}

// segmentAt returns the index of the text node holding byte pos of the
// joined paragraph text.
func segmentAt(offsets []int, pos int) int {
	i := len(offsets) - 1
	for i > 0 && offsets[i] > pos {
		i--
	}
	return i
}

func preserveSpace(open string) string {
	if strings.Contains(open, "xml:space") {
		return open
	}
	return strings.Replace(open, "<w:t", `<w:t xml:space="preserve"`, 1)
}

func escapeXML(s string) string {
	var sb strings.Builder
	// EscapeText only fails when the writer does.
	_ = xml.EscapeText(&sb, []byte(s))
	return sb.String()
}

func isContentPart(name string) bool {
	for _, pattern := range contentParts {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func hasPart(zr *zip.Reader, name string) bool {
	for _, f := range zr.File {
		if f.Name == name {
			return true
		}
	}
	return false
}

func readPart(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
