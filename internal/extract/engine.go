package extract

import (
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/licitawatch/licitawatch/internal/metrics"
	"github.com/licitawatch/licitawatch/internal/record"
	"github.com/licitawatch/licitawatch/internal/source"
)

// Engine runs the full extraction pass over raw notices. Misses leave
// fields empty and count a metric; they never fail the notice.
type Engine struct {
	logger *zap.Logger
}

// NewEngine builds an Engine.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// BuildCandidate converts one raw notice into a pre-identity candidate
// record, applying the source's field hints before heuristics.
func (e *Engine) BuildCandidate(n source.Notice, srcName string, hints source.Hints) record.Candidate {
	cand := record.Candidate{
		Organization: strings.TrimSpace(n.Organization),
		Jurisdiction: strings.TrimSpace(n.Jurisdiction),
		Source:       srcName,
		SourceURL:    n.URL,
		NativeID:     n.NativeID,
		Description:  strings.TrimSpace(n.Description),
	}

	cand.Expedient = strings.TrimSpace(n.Expedient)
	if cand.Expedient == "" && hints.ExpedientField != "" {
		cand.Expedient = strings.TrimSpace(n.Fields[hints.ExpedientField])
	}

	if t, ok := e.parseDate(n.PublicationDateRaw, hints.DateLayouts, "publication_date"); ok {
		cand.PublicationDate = &t
	}
	if t, ok := e.parseDate(n.OpeningDateRaw, hints.DateLayouts, "opening_date"); ok {
		cand.OpeningDate = &t
	}

	structured := ""
	if hints.ObjectField != "" {
		structured = n.Fields[hints.ObjectField]
	}
	if obj, ok := SynthesizeObject(structured, n.Description); ok {
		cand.ProcurementObject = obj
	} else if n.Description != "" {
		metrics.IncParseFailure("procurement_object")
	}

	budgetText := n.BudgetRaw
	if budgetText == "" {
		budgetText = n.Description
	}
	if b, ok := ParseBudgetDefault(budgetText, hints.DefaultCurrency); ok {
		cand.Budget = &b
	} else if n.BudgetRaw != "" {
		metrics.IncParseFailure("budget")
	}

	if n.HTML != "" {
		base, _ := url.Parse(n.URL)
		cand.Attachments = FindAttachments(n.HTML, base)
	}

	cand.DescriptiveName = ""
	if hints.DescriptiveNameField != "" {
		cand.DescriptiveName = strings.TrimSpace(n.Fields[hints.DescriptiveNameField])
	}
	cand.Title = BestTitle(n.Title, cand.DescriptiveName)
	if cand.Title == "" {
		cand.Title = cand.ProcurementObject
	}

	return cand
}

func (e *Engine) parseDate(raw string, layouts []string, field string) (time.Time, bool) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, false
	}
	t, ok := ParseDateWithLayouts(raw, layouts)
	if !ok {
		metrics.IncParseFailure(field)
		e.logger.Debug("unparseable date", zap.String("field", field), zap.String("raw", raw))
	}
	return t, ok
}
