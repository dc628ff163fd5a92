package extract

import (
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/licitawatch/licitawatch/internal/record"
)

// attachmentExtensions maps file extensions to attachment types.
var attachmentExtensions = map[string]string{
	".pdf":  "pdf",
	".doc":  "doc",
	".docx": "doc",
	".xls":  "xls",
	".xlsx": "xls",
	".zip":  "archive",
	".rar":  "archive",
	".odt":  "doc",
	".ods":  "xls",
}

// documentIndicators flag a link as an attachment by its visible text
// even when the URL has no recognizable extension (download endpoints
// with opaque ids are common).
var documentIndicators = []string{
	"pliego",
	"anexo",
	"adjunto",
	"descargar",
	"bases",
	"circular",
	"especificaciones",
	"documento",
}

// FindAttachments scans hyperlinks in markup, keeping those that look
// like notice documents. Relative URLs resolve against base; results are
// deduplicated by resolved URL, order preserved.
func FindAttachments(html string, base *url.URL) []record.Attachment {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var out []record.Attachment
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		resolved := resolveURL(href, base)
		if resolved == "" {
			return
		}

		linkText := strings.TrimSpace(sel.Text())
		attachType, ok := classifyLink(resolved, linkText)
		if !ok {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}

		name := linkText
		if name == "" {
			name = path.Base(resolved)
		}
		out = append(out, record.Attachment{
			Name: name,
			URL:  resolved,
			Type: attachType,
		})
	})
	return out
}

func classifyLink(resolved, linkText string) (string, bool) {
	if u, err := url.Parse(resolved); err == nil {
		ext := strings.ToLower(path.Ext(u.Path))
		if typ, ok := attachmentExtensions[ext]; ok {
			return typ, true
		}
	}
	lower := strings.ToLower(stripAccents(linkText))
	for _, kw := range documentIndicators {
		if strings.Contains(lower, kw) {
			return "document", true
		}
	}
	return "", false
}

func resolveURL(href string, base *url.URL) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
