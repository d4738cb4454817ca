package dynamics

import (
	"github.com/tidwall/gjson"
)

// MappedPayload is one record ready to be written: the header, its ordered
// lines and any attachments, plus the endpoints resolved for the record.
type MappedPayload struct {
	Route               Route
	Endpoint            Endpoint
	AttachmentsEndpoint Endpoint
	Header              Payload
	Lines               []Line
	Attachments         []Attachment
}

// Line is one line payload and the dimension lines to post beneath it.
type Line struct {
	Fields     Payload
	Dimensions []DimensionLine
}

// Attachment is a file to attach to the created header, given inline as
// base64 content or by URL.
type Attachment struct {
	FileName string
	Content  string
	URL      string
}

var attachmentMappings = FieldMappings{Strings: map[string]string{
	"fileName": "fileName || name || file_name",
	"content":  "content || data || base64",
	"url":      "url || link",
}}

// FieldMapper turns canonical records into payloads. It performs no I/O.
type FieldMapper struct {
	Config Config
}

// Map builds the payload for a record on route.
func (m FieldMapper) Map(route Route, record Source) MappedPayload {
	desc := route.Descriptor
	style := m.Config.APIStyle()
	result := MappedPayload{
		Route:    route,
		Endpoint: ResolveEndpoint(record, style, m.Config.CompanyID, desc.Path),
	}
	if desc.Attachments != nil {
		result.AttachmentsEndpoint = ResolveEndpoint(record, style, m.Config.CompanyID, desc.Attachments.Path)
	}

	tables := m.Config.FieldMappings(desc.MappingKey)

	switch desc.Kind {
	case VendorEntity, ItemEntity:
		header := Payload{}
		MapFields(tables.Header, record, header)
		result.Header = header.Clean()
	case PurchaseDocumentEntity:
		result.Header = m.header(tables.Header, record, Payload{"documentType": route.DocumentType})
		result.Lines = m.purchaseDocumentLines(tables.Lines, record, route.DocumentType)
	case LegacyPurchaseInvoiceEntity:
		result.Header = m.header(tables.Header, record, nil)
		result.Lines = m.legacyInvoiceLines(tables.Lines, record)
		result.Attachments = mapAttachments(record)
	case PurchaseInvoiceEntity:
		result.Header = m.header(tables.Header, record, nil)
		result.Lines = m.invoiceLines(tables.Lines, record)
		result.Attachments = mapAttachments(record)
	}
	return result
}

// header maps the table, applies fixed values, then the record's custom
// fields, and cleans the result.
func (m FieldMapper) header(table FieldMappings, record Source, fixed Payload) Payload {
	header := Payload{}
	MapFields(table, record, header)
	header.Merge(fixed)
	header.Merge(NormalizeCustomFields(record.Get("customFields"), nil))
	return header.Clean()
}

func (m FieldMapper) purchaseDocumentLines(table FieldMappings, record Source, documentType string) []Line {
	var lines []Line
	for _, item := range record.Array("lineItems") {
		fields := Payload{}
		MapFields(table, item, fields)
		if documentType == "Order" {
			fields["type"] = "Item"
			fields["number"] = stringOrNil(item, "productId")
		} else {
			fields["type"] = "G/L Account"
			fields["number"] = stringOrNil(item, "accountNumber")
		}
		fields.Merge(NormalizeCustomFields(item.Get("customFields"), nil))
		fields = fields.Clean()
		// assigned after cleaning so line 0 keeps its number
		fields["lineNumber"] = len(lines)
		lines = append(lines, Line{Fields: fields})
	}
	return lines
}

func (m FieldMapper) legacyInvoiceLines(table FieldMappings, record Source) []Line {
	var lines []Line
	for _, item := range record.Array("lineItems") {
		fields := Payload{}
		MapFields(table, item, fields)
		switch {
		case item.Truthy("accountNumber"):
			fields["Type"] = "G/L Account"
			fields["No"] = stringOrNil(item, "accountNumber")
		case item.Truthy("productNumber"):
			fields["Type"] = "Item"
			fields["No"] = stringOrNil(item, "productNumber")
		}
		fields.Merge(NormalizeCustomFields(item.Get("customFields"), nil))
		lines = append(lines, Line{Fields: fields.Clean()})
	}
	return lines
}

func (m FieldMapper) invoiceLines(table FieldMappings, record Source) []Line {
	var lines []Line
	for _, item := range record.Array("lineItems") {
		fields := Payload{}
		MapFields(table, item, fields)
		switch {
		case item.Truthy("accountNumber"):
			fields["lineType"] = "Account"
		case item.Truthy("productNumber"):
			fields["lineType"] = "Item"
		}
		var dimensions []DimensionLine
		fields.Merge(NormalizeCustomFields(item.Get("customFields"), &dimensions))
		lines = append(lines, Line{Fields: fields.Clean(), Dimensions: dimensions})
	}
	return lines
}

func mapAttachments(record Source) []Attachment {
	var attachments []Attachment
	for _, item := range record.Array("attachments") {
		fields := Payload{}
		MapFields(attachmentMappings, item, fields)
		a := Attachment{}
		a.FileName, _ = fields["fileName"].(string)
		a.Content, _ = fields["content"].(string)
		a.URL, _ = fields["url"].(string)
		if a.Content == "" && a.URL == "" {
			continue
		}
		attachments = append(attachments, a)
	}
	return attachments
}

// stringOrNil renders a scalar as a string, numbers as written in the record.
func stringOrNil(s Source, path string) any {
	result := s.Get(path)
	switch result.Type {
	case gjson.String:
		return result.String()
	case gjson.Number:
		return result.Raw
	case gjson.Null:
		return nil
	default:
		if !result.Exists() {
			return nil
		}
		return result.String()
	}
}
