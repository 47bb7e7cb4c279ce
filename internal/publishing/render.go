package publishing

import (
	"bytes"
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/workitem"
)

var (
	markdown = goldmark.New()
	policy   = newPolicy()
)

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("figure")
	p.AllowAttrs("class").OnElements("div", "figure", "section")
	return p
}

// Render builds the post for item: block Markdown converted to sanitized
// HTML in sequence order, the SEO meta description as excerpt and a slug
// derived from the title. Image blocks without an uploaded image are
// skipped.
func Render(item *workitem.WorkItem) (Content, error) {
	var buf bytes.Buffer
	for _, b := range item.Blocks {
		if err := renderBlock(&buf, b); err != nil {
			return Content{}, err
		}
	}
	content := Content{
		ExternalID: item.ExternalID,
		Title:      item.Title,
		HTML:       policy.Sanitize(buf.String()),
		Slug:       Slugify(item.Title),
	}
	if item.SEO != nil {
		content.Excerpt = item.SEO.MetaDescription
	}
	return content, nil
}

func renderBlock(buf *bytes.Buffer, b workitem.Block) error {
	switch b.Type {
	case workitem.BlockH2:
		writeHeading(buf, "h2", b.Heading)
	case workitem.BlockH3, workitem.BlockFAQ:
		writeHeading(buf, "h3", b.Heading)
	case workitem.BlockImage:
		if b.ImageURL == "" {
			return nil
		}
		buf.WriteString(`<figure class="image"><img src="` + html.EscapeString(b.ImageURL) +
			`" alt="` + html.EscapeString(b.ImageAlt) + `"></figure>` + "\n")
		return nil
	case workitem.BlockCallout:
		buf.WriteString(`<div class="callout">` + "\n")
		defer buf.WriteString("</div>\n")
	}
	if strings.TrimSpace(b.Content) == "" {
		return nil
	}
	return markdown.Convert([]byte(b.Content), buf)
}

func writeHeading(buf *bytes.Buffer, tag, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	buf.WriteString("<" + tag + ">" + html.EscapeString(text) + "</" + tag + ">\n")
}

// Slugify returns a lowercase ASCII slug: accents are stripped and runs of
// other characters collapse to a single hyphen.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, s)
	if err != nil {
		plain = s
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(plain) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
