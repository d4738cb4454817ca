package dynamics

import (
	"strings"
)

// APIStyle is the addressing convention of a Dynamics service root.
type APIStyle int

const (
	// LegacyOData addresses companies as Company('<id>') style pages, ODataV4 web services.
	LegacyOData APIStyle = iota
	// ModernAPI addresses companies(<id>) on the Business Central API.
	ModernAPI
)

func (s APIStyle) String() string {
	switch s {
	case ModernAPI:
		return "api"
	default:
		return "odata"
	}
}

// CollectionSegment is the company collection appended to the service root.
func (s APIStyle) CollectionSegment() string {
	if s == ModernAPI {
		return "/companies"
	}
	return "/Company"
}

// DetectAPIStyle classifies a service root. OData is checked first so that a
// host name containing "api" does not hide an ODataV4 path.
func DetectAPIStyle(serviceRoot string) APIStyle {
	switch {
	case strings.Contains(serviceRoot, "OData"):
		return LegacyOData
	case strings.Contains(serviceRoot, "api"):
		return ModernAPI
	default:
		return LegacyOData
	}
}

// Endpoint is a path relative to the company collection root, e.g.
// ("ACME")/workflowVendors.
type Endpoint string

// CompanyKey renders the company segment for a style.
func CompanyKey(style APIStyle, company string) string {
	if style == ModernAPI {
		return "(" + company + ")"
	}
	return `("` + company + `")`
}

// ResolveEndpoint builds the endpoint for entityPath. The record's subsidiary
// selects the company when present, the configured company otherwise.
func ResolveEndpoint(record Source, style APIStyle, defaultCompany, entityPath string) Endpoint {
	company := defaultCompany
	if subsidiary, exists := record.StringForPath("subsidiary"); exists && strings.TrimSpace(subsidiary) != "" {
		company = subsidiary
	}
	return Endpoint(CompanyKey(style, company) + entityPath)
}

// LeadingSegment is everything before the first "/", i.e. the company key.
func (e Endpoint) LeadingSegment() Endpoint {
	before, _, _ := strings.Cut(string(e), "/")
	return Endpoint(before)
}

// Sibling replaces the entity path, keeping the company key.
func (e Endpoint) Sibling(path string) Endpoint {
	return e.LeadingSegment() + Endpoint(path)
}

// Keyed addresses one entity in the collection: <endpoint>(<key>).
func (e Endpoint) Keyed(key string) Endpoint {
	return e + Endpoint("("+key+")")
}

// Join appends a navigation path.
func (e Endpoint) Join(path string) Endpoint {
	return e + Endpoint(path)
}

func (e Endpoint) String() string {
	return string(e)
}
