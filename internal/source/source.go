// Package source defines the contract between the ingestion core and
// per-source adapters. Adapters know how to turn one government site's
// responses into raw notices; everything downstream is source-agnostic.
package source

import (
	"context"

	"github.com/licitawatch/licitawatch/internal/fetch"
)

// Hints carries optional per-source field mappings consumed by the
// extraction engine. Hints are data, never logic: a named field that the
// source reliably provides, used before falling back to heuristics.
type Hints struct {
	// ObjectField names a structured field holding the procurement object.
	ObjectField string `mapstructure:"object_field"`
	// DescriptiveNameField names a field with a human-readable notice name,
	// used when the raw title is low-information.
	DescriptiveNameField string `mapstructure:"descriptive_name_field"`
	// ExpedientField names the expedient/process-number field.
	ExpedientField string `mapstructure:"expedient_field"`
	// DateLayouts lists extra Go time layouts this source is known to use.
	DateLayouts []string `mapstructure:"date_layouts"`
	// DefaultCurrency overrides the currency assumed when no marker is found.
	DefaultCurrency string `mapstructure:"default_currency"`
}

// Notice is one raw observation of a procurement notice as the adapter
// saw it, before extraction and identity resolution.
type Notice struct {
	Title        string
	Organization string
	Jurisdiction string
	URL          string
	NativeID     string
	Expedient    string
	Description  string
	// Fields holds structured values keyed by source-native field names,
	// addressed through Hints.
	Fields map[string]string
	// HTML is the raw page markup when the source is scraped rather than
	// consumed through an API. Attachment discovery and label scans run
	// over it.
	HTML string
	// PublicationDateRaw and OpeningDateRaw are unparsed date strings.
	PublicationDateRaw string
	OpeningDateRaw     string
	BudgetRaw          string
}

// Adapter converts one source's content into raw notices. Implementations
// drive the fetch client themselves since pagination and endpoints are
// source-specific.
type Adapter interface {
	// Name is the stable source identifier used in fingerprints.
	Name() string
	// Jurisdiction is the governmental scope this source covers.
	Jurisdiction() string
	// Hints exposes the source's optional field mappings.
	Hints() Hints
	// Notices fetches and parses the source's current notices. It must
	// honor ctx cancellation between fetches and return what it has.
	Notices(ctx context.Context, client *fetch.Client) ([]Notice, error)
}
