package similarity

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"gitlab.com/golang-commonmark/markdown"
	"golang.org/x/text/unicode/norm"
)

// MaxTextRunes caps extracted text per document.
const MaxTextRunes = 200_000

var md = markdown.New(markdown.HTML(true), markdown.Linkify(false), markdown.Typographer(false))

const blockElements = "p,div,br,li,tr,td,th,h1,h2,h3,h4,h5,h6,pre,blockquote,section,article"

var plainExtensions = map[string]bool{
	".txt": true, ".text": true, ".csv": true, ".tsv": true, ".log": true, ".json": true,
	".xml": true, ".yaml": true, ".yml": true, ".tex": true, ".rst": true,
	".go": true, ".py": true, ".java": true, ".js": true, ".ts": true, ".c": true,
	".h": true, ".cpp": true, ".cs": true, ".rb": true, ".rs": true, ".php": true,
	".sql": true, ".sh": true, ".kt": true, ".swift": true, ".scala": true,
}

// ExtractText turns raw attachment bytes into normalised plain text. It never
// fails: unreadable content yields an empty string.
func ExtractText(filename, mimeType string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(filename))
	mimeType = strings.ToLower(mimeType)

	var text string
	switch {
	case ext == ".md" || ext == ".markdown" || mimeType == "text/markdown":
		text = htmlText(md.RenderToString(data))
	case ext == ".html" || ext == ".htm" || strings.HasPrefix(mimeType, "text/html"):
		text = htmlText(string(data))
	case ext == ".docx":
		text = zipXMLText(data, "word/document.xml", "p")
	case ext == ".odt":
		text = zipXMLText(data, "content.xml", "p", "h")
	case plainExtensions[ext] || strings.HasPrefix(mimeType, "text/"):
		text = decodeUTF8(data)
	default:
		text = bestEffort(data)
	}
	return Normalize(text)
}

// Normalize applies NFKC, collapses whitespace and truncates to MaxTextRunes.
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	var b strings.Builder
	b.Grow(len(text))
	space := false
	runes := 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			if runes+1 >= MaxTextRunes {
				break
			}
			b.WriteByte(' ')
			runes++
		}
		space = false
		if runes >= MaxTextRunes {
			break
		}
		b.WriteRune(r)
		runes++
	}
	return b.String()
}

func htmlText(src string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		slog.Debug("HTML parse failed, using raw text", "error", err)
		return src
	}
	doc.Find("script,style,noscript").Remove()
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AfterHtml("\n")
	})
	return doc.Text()
}

// zipXMLText reads one XML member of an office archive and joins the character
// data of the given element names (matched by local name) as paragraphs.
func zipXMLText(data []byte, member string, paragraphs ...string) string {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	var f *zip.File
	for _, zf := range zr.File {
		if zf.Name == member {
			f = zf
			break
		}
	}
	if f == nil {
		return ""
	}
	rc, err := f.Open()
	if err != nil {
		return ""
	}
	defer rc.Close()

	isPara := make(map[string]bool, len(paragraphs))
	for _, p := range paragraphs {
		isPara[p] = true
	}

	dec := xml.NewDecoder(io.LimitReader(rc, 64<<20))
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.StartElement:
			if t.Name.Local == "tab" {
				b.WriteByte(' ')
			}
		case xml.EndElement:
			if isPara[t.Name.Local] {
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}

func decodeUTF8(data []byte) string {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "")
}

// bestEffort decodes unknown formats, giving up on mostly binary content.
func bestEffort(data []byte) string {
	text := decodeUTF8(data)
	if text == "" {
		return ""
	}
	total, printable := 0, 0
	for _, r := range text {
		total++
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	if printable*10 < total*8 {
		return ""
	}
	return text
}
