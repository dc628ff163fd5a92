package source

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/licitawatch/licitawatch/internal/fetch"
)

// defaultMaxNotices bounds one listing pass so a runaway index page
// cannot turn a run into a full-site crawl.
const defaultMaxNotices = 50

// HTMLConfig describes a scraped listing-page source: an index of links
// to notice detail pages.
type HTMLConfig struct {
	Name         string
	Jurisdiction string
	// BaseURL is the listing page to start from.
	BaseURL string
	// ListSelector picks the anchors pointing at notice pages. Empty
	// selects every same-host anchor.
	ListSelector string
	// MaxNotices caps how many detail pages one pass fetches.
	MaxNotices int
	Hints      Hints
}

// HTMLAdapter scrapes sources that publish notices as plain HTML pages.
type HTMLAdapter struct {
	cfg HTMLConfig
}

// NewHTMLAdapter validates the config and builds an adapter.
func NewHTMLAdapter(cfg HTMLConfig) (*HTMLAdapter, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("source name is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("source %s: invalid base url %q", cfg.Name, cfg.BaseURL)
	}
	if cfg.MaxNotices <= 0 {
		cfg.MaxNotices = defaultMaxNotices
	}
	return &HTMLAdapter{cfg: cfg}, nil
}

func (a *HTMLAdapter) Name() string         { return a.cfg.Name }
func (a *HTMLAdapter) Jurisdiction() string { return a.cfg.Jurisdiction }
func (a *HTMLAdapter) Hints() Hints         { return a.cfg.Hints }

// Notices fetches the listing page, follows each notice link, and
// returns one raw Notice per detail page. A failing detail page is
// skipped, not fatal; cancellation returns what was gathered so far.
func (a *HTMLAdapter) Notices(ctx context.Context, client *fetch.Client) ([]Notice, error) {
	listing, err := client.Fetch(ctx, fetch.Request{URL: a.cfg.BaseURL})
	if err != nil {
		return nil, fmt.Errorf("fetch listing %s: %w", a.cfg.BaseURL, err)
	}
	links, err := a.noticeLinks(listing.Body)
	if err != nil {
		return nil, fmt.Errorf("parse listing %s: %w", a.cfg.BaseURL, err)
	}

	var notices []Notice
	for _, link := range links {
		if ctx.Err() != nil {
			return notices, nil
		}
		page, err := client.Fetch(ctx, fetch.Request{URL: link})
		if err != nil {
			continue
		}
		n, err := a.parseNotice(link, page.Body)
		if err != nil {
			continue
		}
		notices = append(notices, n)
	}
	return notices, nil
}

// noticeLinks extracts detail-page URLs from the listing markup,
// deduplicated and limited to the listing's host.
func (a *HTMLAdapter) noticeLinks(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(a.cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	selector := a.cfg.ListSelector
	if selector == "" {
		selector = "a[href]"
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		resolved := base.ResolveReference(ref)
		if resolved.Host != base.Host || resolved.Scheme != base.Scheme {
			return true
		}
		resolved.Fragment = ""
		link := resolved.String()
		if link == a.cfg.BaseURL || seen[link] {
			return true
		}
		seen[link] = true
		links = append(links, link)
		return len(links) < a.cfg.MaxNotices
	})
	return links, nil
}

// parseNotice turns one detail page into a raw Notice. Structured
// fields come from definition lists and labeled table rows; everything
// else is left to the extraction engine.
func (a *HTMLAdapter) parseNotice(pageURL string, body []byte) (Notice, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Notice{}, err
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	fields := make(map[string]string)
	doc.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		terms := dl.Find("dt")
		values := dl.Find("dd")
		terms.Each(func(i int, dt *goquery.Selection) {
			if i >= values.Length() {
				return
			}
			key := fieldKey(dt.Text())
			val := strings.TrimSpace(values.Eq(i).Text())
			if key != "" && val != "" {
				fields[key] = val
			}
		})
	})
	doc.Find("table tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("th, td")
		if cells.Length() < 2 {
			return
		}
		key := fieldKey(cells.Eq(0).Text())
		val := strings.TrimSpace(cells.Eq(1).Text())
		if key != "" && val != "" && fields[key] == "" {
			fields[key] = val
		}
	})

	description := strings.TrimSpace(doc.Find("main").First().Text())
	if description == "" {
		description = strings.TrimSpace(doc.Find("body").First().Text())
	}

	n := Notice{
		Title:        title,
		Jurisdiction: a.cfg.Jurisdiction,
		URL:          pageURL,
		Description:  collapseSpaces(description),
		Fields:       fields,
		HTML:         string(body),
	}
	n.Organization = firstField(fields, "organismo", "reparticion", "entidad")
	n.Expedient = firstField(fields, "expediente", "expediente_n", "numero_de_expediente")
	n.PublicationDateRaw = firstField(fields, "fecha_de_publicacion", "fecha_publicacion", "publicado")
	n.OpeningDateRaw = firstField(fields, "fecha_de_apertura", "fecha_apertura", "apertura")
	n.BudgetRaw = firstField(fields, "presupuesto_oficial", "presupuesto", "monto", "importe")
	return n, nil
}

func firstField(fields map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := fields[k]; v != "" {
			return v
		}
	}
	return ""
}

var labelFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fieldKey normalizes a label like "Fecha de Publicación:" into
// "fecha_de_publicacion" so hints and the built-in lookups can address
// it regardless of how the portal accents it.
func fieldKey(label string) string {
	key := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(label), ":")))
	if folded, _, err := transform.String(labelFold, key); err == nil {
		key = folded
	}
	return strings.Join(strings.Fields(key), "_")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
