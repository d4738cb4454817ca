package dynamics

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"github.com/iancoleman/strcase"
)

// FieldDocRow represents a single row in the field mapping documentation.
type FieldDocRow struct {
	Section    string // "Header" or "Lines"
	FieldName  string // Dynamics field name, e.g. "Buy_from_Vendor_No"
	FieldType  string // String, Number, Boolean, Value or Computed
	SourcePath string // record path, alternatives joined with " or "
	Notes      string // modifiers, static values and computed behaviour
}

// FieldDocumentation lists how one stream's records become Dynamics fields.
type FieldDocumentation struct {
	Stream   string
	Entity   string
	Endpoint string
	Rows     []FieldDocRow
}

// computedFields are set in code rather than by the field tables.
var computedFields = map[EntityKind][]FieldDocRow{
	PurchaseDocumentEntity: {
		{Section: "Header", FieldName: "documentType", Notes: "Order for PurchaseOrders, Invoice for Bills"},
		{Section: "Lines", FieldName: "type", Notes: "Item for orders, G/L Account for invoices"},
		{Section: "Lines", FieldName: "number", SourcePath: "productId or accountNumber", Notes: "productId for orders, accountNumber for invoices"},
		{Section: "Lines", FieldName: "lineNumber", Notes: "Position of the line, from 0"},
		{Section: "Lines", FieldName: "documentType", Notes: "Copied from the created header"},
		{Section: "Lines", FieldName: "documentNumber", Notes: "Copied from the created header's number"},
	},
	LegacyPurchaseInvoiceEntity: {
		{Section: "Lines", FieldName: "Type", Notes: "G/L Account when accountNumber is set, else Item when productNumber is set"},
		{Section: "Lines", FieldName: "No", SourcePath: "accountNumber or productNumber", Notes: "Sent as text"},
		{Section: "Lines", FieldName: "Document_Type", Notes: "Always Invoice"},
		{Section: "Lines", FieldName: "Document_No", Notes: "Copied from the created header's No"},
	},
	PurchaseInvoiceEntity: {
		{Section: "Lines", FieldName: "lineType", Notes: "Account when accountNumber is set, else Item when productNumber is set"},
		{Section: "Lines", FieldName: "dimensionSetLines", SourcePath: "customFields", Notes: "DSL-<code> custom fields become dimension lines {code, valueCode}"},
	},
}

// GenerateFieldDocumentation documents the tables configured for a stream.
func GenerateFieldDocumentation(config Config, stream string) (FieldDocumentation, error) {
	route, err := RouteStream(stream, config)
	if err != nil {
		return FieldDocumentation{}, err
	}
	desc := route.Descriptor
	doc := FieldDocumentation{
		Stream:   route.Stream,
		Entity:   strcase.ToCamel(desc.MappingKey),
		Endpoint: CompanyKey(config.APIStyle(), "<company>") + desc.Path,
		Rows:     []FieldDocRow{},
	}

	tables := config.FieldMappings(desc.MappingKey)
	processFieldMappings(&doc.Rows, "Header", tables.Header)
	processFieldMappings(&doc.Rows, "Lines", tables.Lines)
	for _, row := range computedFields[desc.Kind] {
		row.FieldType = "Computed"
		doc.Rows = append(doc.Rows, row)
	}
	if desc.Kind != VendorEntity && desc.Kind != ItemEntity {
		doc.Rows = append(doc.Rows, FieldDocRow{
			Section:    "Header",
			FieldName:  "(custom fields)",
			FieldType:  "Computed",
			SourcePath: "customFields",
			Notes:      "Each {name, value} is sent as a field of its own; DSL- fields are dropped",
		})
	}

	// Sort rows for deterministic output:
	// - header fields before line fields
	// - within each section, alphabetically by field name
	sort.SliceStable(doc.Rows, func(i, j int) bool {
		if doc.Rows[i].Section != doc.Rows[j].Section {
			return doc.Rows[i].Section == "Header"
		}
		return doc.Rows[i].FieldName < doc.Rows[j].FieldName
	})
	return doc, nil
}

func processFieldMappings(rows *[]FieldDocRow, section string, mappings FieldMappings) {
	for _, field := range mappings.AllKeys() {
		path, fieldType := mappings.PathFor(field)
		*rows = append(*rows, createFieldDocRow(section, field, fieldType, path))
	}
}

func createFieldDocRow(section, field, fieldType, path string) FieldDocRow {
	row := FieldDocRow{
		Section:   section,
		FieldName: field,
		FieldType: fieldType,
	}
	var sources, notes []string
	for _, alternative := range strings.Split(path, "||") {
		alternative = strings.TrimSpace(alternative)
		if len(alternative) >= 2 && alternative[0] == '`' && alternative[len(alternative)-1] == '`' {
			notes = append(notes, fmt.Sprintf("Defaults to %s", alternative[1:len(alternative)-1]))
			continue
		}
		source, transforms := parseSourcePath(alternative)
		sources = append(sources, source)
		for _, transform := range transforms {
			notes = append(notes, formatTransformNote(transform))
		}
	}
	row.SourcePath = strings.Join(sources, " or ")
	if row.SourcePath == "" {
		row.SourcePath = "(static)"
	}
	row.Notes = strings.Join(notes, " | ")
	return row
}

// parseSourcePath extracts the source path and inline transforms from a mapping value.
// e.g., "addresses.0.country|@countryCode" -> ("addresses.0.country", ["@countryCode"])
func parseSourcePath(value string) (string, []string) {
	parts := strings.Split(value, "|")
	var transforms []string
	for _, part := range parts[1:] {
		if strings.HasPrefix(part, "@") {
			transforms = append(transforms, part)
		}
	}
	return parts[0], transforms
}

// formatTransformNote formats a transform into a human-readable note.
func formatTransformNote(transform string) string {
	switch {
	case transform == "@date":
		return "Date part only"
	case transform == "@countryCode":
		return "Converted to ISO alpha-2 country code"
	case transform == "@phone":
		return "Sent as received unless phone_region is set"
	case strings.HasPrefix(transform, "@phone:"):
		arg := strings.TrimPrefix(transform, "@phone:")
		return fmt.Sprintf("Formatted as E.164, default region %s", arg)
	default:
		return fmt.Sprintf("Transform: %s", transform)
	}
}

// FormatCSV formats the field documentation as CSV.
func (d FieldDocumentation) FormatCSV() (string, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{fmt.Sprintf("# Stream: %s (%s %s)", d.Stream, d.Entity, d.Endpoint)}); err != nil {
		return "", err
	}
	if err := writer.Write([]string{"Section", "Dynamics Field", "Field Type", "Record Source Path", "Mapping Notes"}); err != nil {
		return "", err
	}
	for _, row := range d.Rows {
		if err := writer.Write([]string{row.Section, row.FieldName, row.FieldType, row.SourcePath, row.Notes}); err != nil {
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
