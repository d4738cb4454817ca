package dynamics

import (
	"github.com/iancoleman/strcase"
	"github.com/rotisserie/eris"
)

// EntityKind is the closed set of entity families the target writes.
type EntityKind int

const (
	VendorEntity EntityKind = iota
	ItemEntity
	PurchaseDocumentEntity
	LegacyPurchaseInvoiceEntity
	PurchaseInvoiceEntity
)

func (k EntityKind) String() string {
	switch k {
	case VendorEntity:
		return "vendor"
	case ItemEntity:
		return "item"
	case PurchaseDocumentEntity:
		return "purchase document"
	case LegacyPurchaseInvoiceEntity:
		return "purchase invoice (legacy)"
	case PurchaseInvoiceEntity:
		return "purchase invoice"
	default:
		return "unknown"
	}
}

// EntityDescriptor is everything the mapper and orchestrator need to know
// about one API surface.
type EntityDescriptor struct {
	Kind EntityKind
	// MappingKey selects the field tables under mappings.<key>.
	MappingKey string
	Path       string
	// IDField is read from the header response; it is the record's external id.
	IDField     string
	Lines       *LineSurface
	Attachments *AttachmentSurface
	// DeleteKey renders the key segment for deleting the created header.
	// ok is false when the response carries nothing to address it by.
	DeleteKey func(header Source) (key string, ok bool)
	// SupportsDimensions routes DSL custom fields on lines to dimension lines.
	SupportsDimensions bool
}

// LineSurface describes where and how lines are posted.
type LineSurface struct {
	Path string
	// Nested lines live under the header: <endpoint>(<header id>)<Path>.
	// Otherwise they are a sibling collection under the company.
	Nested bool
	// BackRefs decorates each line with values read from the header
	// response, as a field table.
	BackRefs FieldMappings
	// IDField is read from each line response to address its sub-lines.
	IDField      string
	SubLinesPath string
}

type AttachmentSurface struct {
	Path       string
	ParentType string
	// ParentIDField is read from the header response.
	ParentIDField string
}

var purchaseInvoiceAttachments = &AttachmentSurface{
	Path:          "/attachments",
	ParentType:    "Purchase_x0020_Invoice",
	ParentIDField: "id || Id",
}

var (
	VendorDescriptor = &EntityDescriptor{
		Kind:       VendorEntity,
		MappingKey: "vendors",
		Path:       "/workflowVendors",
		IDField:    "No",
		DeleteKey:  parenthesisedKey("No"),
	}

	ItemDescriptor = &EntityDescriptor{
		Kind:       ItemEntity,
		MappingKey: "items",
		Path:       "/workflowItems",
		IDField:    "No",
		DeleteKey:  parenthesisedKey("No"),
	}

	PurchaseDocumentDescriptor = &EntityDescriptor{
		Kind:       PurchaseDocumentEntity,
		MappingKey: "purchaseDocuments",
		Path:       "/purchaseDocuments",
		IDField:    "number",
		Lines: &LineSurface{
			Path: "/purchaseDocumentLines",
			BackRefs: FieldMappings{Strings: map[string]string{
				"documentType":   "documentType",
				"documentNumber": "number",
			}},
		},
		DeleteKey: parenthesisedKey("id"),
	}

	LegacyPurchaseInvoiceDescriptor = &EntityDescriptor{
		Kind:       LegacyPurchaseInvoiceEntity,
		MappingKey: "purchaseInvoiceLegacy",
		Path:       "/Purchase_Invoice",
		IDField:    "No",
		Lines: &LineSurface{
			Path: "/Purchase_InvoicePurchLines",
			BackRefs: FieldMappings{Strings: map[string]string{
				"Document_Type": "`Invoice`",
				"Document_No":   "No",
			}},
		},
		Attachments: purchaseInvoiceAttachments,
		DeleteKey: func(header Source) (string, bool) {
			no, exists := header.StringForPath("No")
			if !exists || no == "" {
				return "", false
			}
			return "('Invoice','" + no + "')", true
		},
	}

	PurchaseInvoiceDescriptor = &EntityDescriptor{
		Kind:       PurchaseInvoiceEntity,
		MappingKey: "purchaseInvoices",
		Path:       "/purchaseInvoices",
		IDField:    "id",
		Lines: &LineSurface{
			Path:         "/purchaseInvoiceLines",
			Nested:       true,
			IDField:      "id",
			SubLinesPath: "/dimensionSetLines",
		},
		Attachments:        purchaseInvoiceAttachments,
		DeleteKey:          parenthesisedKey("id"),
		SupportsDimensions: true,
	}
)

func parenthesisedKey(field string) func(Source) (string, bool) {
	return func(header Source) (string, bool) {
		id, exists := header.StringForPath(field)
		if !exists || id == "" {
			return "", false
		}
		return "(" + id + ")", true
	}
}

// Route is the descriptor chosen for a stream plus the document type the
// purchase-document surface needs.
type Route struct {
	Stream       string
	Descriptor   *EntityDescriptor
	DocumentType string
}

// Stream names, after strcase.ToCamel normalisation.
const (
	VendorsStream          = "Vendors"
	ItemsStream            = "Items"
	PurchaseOrdersStream   = "PurchaseOrders"
	BillsStream            = "Bills"
	PurchaseInvoicesStream = "PurchaseInvoices"
)

// KnownStreams lists the streams RouteStream accepts.
var KnownStreams = []string{
	VendorsStream,
	ItemsStream,
	PurchaseOrdersStream,
	BillsStream,
	PurchaseInvoicesStream,
}

// RouteStream picks the entity surface for a stream.
//
// Bills go to purchase documents as invoices unless usePurchaseInvoice is
// set. The invoice surface is /purchaseInvoices when bills_endpoint names it
// and the legacy /Purchase_Invoice page otherwise.
func RouteStream(stream string, cfg Config) (Route, error) {
	name := strcase.ToCamel(stream)
	invoice := LegacyPurchaseInvoiceDescriptor
	if cfg.ModernInvoices() {
		invoice = PurchaseInvoiceDescriptor
	}
	route := Route{Stream: name}
	switch name {
	case VendorsStream:
		route.Descriptor = VendorDescriptor
	case ItemsStream:
		route.Descriptor = ItemDescriptor
	case PurchaseOrdersStream:
		route.Descriptor = PurchaseDocumentDescriptor
		route.DocumentType = "Order"
	case BillsStream:
		if cfg.UsePurchaseInvoice {
			route.Descriptor = invoice
		} else {
			route.Descriptor = PurchaseDocumentDescriptor
			route.DocumentType = "Invoice"
		}
	case PurchaseInvoicesStream:
		route.Descriptor = invoice
	default:
		return route, eris.Errorf("unsupported stream %q", stream)
	}
	return route, nil
}
