package dynamics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapRecord(t *testing.T, cfg Config, stream, record string) MappedPayload {
	t.Helper()
	sink, err := NewSink(stream, cfg, nil)
	require.NoError(t, err)
	payload, err := sink.PreprocessRecord([]byte(record))
	require.NoError(t, err)
	return payload
}

func TestFieldMapper_Vendor(t *testing.T) {
	cfg := testConfig(t)
	payload := mapRecord(t, cfg, "Vendors", `{
		"vendorName": "Acme Supplies",
		"contactName": "Jo Bloggs",
		"emailAddress": "jo@acme.test",
		"phoneNumber": ["+44 113 496 0000", "+44 113 496 0001"],
		"currency": "GBP",
		"addresses": [
			{"line1": "1 High St", "line2": "", "city": "Leeds", "state": "West Yorkshire", "country": "United Kingdom", "postalCode": "LS1 1AA"},
			{"line1": "2 Low St", "city": "York"}
		]
	}`)

	assert.Equal(t, Endpoint(`("ACME")/workflowVendors`), payload.Endpoint)
	assert.Equal(t, Payload{
		"name":              "Acme Supplies",
		"name2":             "Jo Bloggs",
		"eMail":             "jo@acme.test",
		"phoneNumber":       "+44 113 496 0000",
		"currencyCode":      "GBP",
		"address":           "1 High St",
		"city":              "Leeds",
		"county":            "West Yorkshire",
		"countryRegionCode": "GB",
		"postCode":          "LS1 1AA",
	}, payload.Header)
	assert.Empty(t, payload.Lines)
}

func TestFieldMapper_VendorWithoutAddresses(t *testing.T) {
	cfg := testConfig(t)
	for _, record := range []string{
		`{"vendorName": "Acme", "addresses": []}`,
		`{"vendorName": "Acme"}`,
	} {
		payload := mapRecord(t, cfg, "Vendors", record)
		assert.Equal(t, Payload{"name": "Acme"}, payload.Header)
	}
}

func TestFieldMapper_ItemMergesBillItem(t *testing.T) {
	cfg := testConfig(t)
	payload := mapRecord(t, cfg, "Items", `{
		"name": "Widget",
		"type": "Inventory",
		"reorderPoint": 0,
		"category": "PARTS",
		"billItem": "{\"description\": \"Blue widget\", \"unitPrice\": 9.5}"
	}`)

	assert.Equal(t, Endpoint(`("ACME")/workflowItems`), payload.Endpoint)
	assert.Equal(t, Payload{
		"description":      "Widget",
		"type":             "Inventory",
		"itemCategoryCode": "PARTS",
		"description2":     "Blue widget",
		"unitPrice":        9.5,
	}, payload.Header)
}

func TestFieldMapper_PurchaseOrder(t *testing.T) {
	cfg := testConfig(t)
	payload := mapRecord(t, cfg, "PurchaseOrders", `{
		"vendorId": "V0001",
		"vendorName": "Acme",
		"currency": "GBP",
		"dueDate": "2024-03-15T10:30:00Z",
		"subsidiary": "CRONUS",
		"customFields": [{"name": "Memo", "value": "rush"}, {"name": "DSL-DEPT", "value": "100"}],
		"lineItems": [
			{"productId": "1000", "accountNumber": "6100", "quantity": 2, "unitPrice": 10, "productName": "Bolt", "serviceDate": "2024-03-01T00:00:00Z"},
			{},
			{"productId": 2000, "customFields": "[{'name': 'Colour', 'value': 'red'}]"}
		]
	}`)

	assert.Equal(t, Endpoint(`("CRONUS")/purchaseDocuments`), payload.Endpoint)
	assert.Equal(t, Payload{
		"buyFromVendorNumber": "V0001",
		"payToVendorNumber":   "V0001",
		"payToName":           "Acme",
		"currencyCode":        "GBP",
		"dueDate":             "2024-03-15",
		"documentType":        "Order",
		"Memo":                "rush",
	}, payload.Header)

	require.Len(t, payload.Lines, 3)
	for i, line := range payload.Lines {
		assert.Equal(t, i, line.Fields["lineNumber"])
		assert.Equal(t, "Item", line.Fields["type"])
	}
	assert.Equal(t, Payload{
		"quantity":       2.0,
		"jobUnitPrice":   10.0,
		"directUnitCost": 10.0,
		"description":    "Bolt",
		"orderDate":      "2024-03-01",
		"type":           "Item",
		"number":         "1000",
		"lineNumber":     0,
	}, payload.Lines[0].Fields)
	assert.Equal(t, Payload{"type": "Item", "lineNumber": 1}, payload.Lines[1].Fields)
	assert.Equal(t, "2000", payload.Lines[2].Fields["number"])
	assert.Equal(t, "red", payload.Lines[2].Fields["Colour"])
}

func TestFieldMapper_BillAsPurchaseDocument(t *testing.T) {
	cfg := testConfig(t)
	payload := mapRecord(t, cfg, "Bills", `{"vendorId": "V1", "lineItems": [{"productId": "1000", "accountNumber": "6100"}]}`)

	assert.Equal(t, PurchaseDocumentEntity, payload.Route.Descriptor.Kind)
	assert.Equal(t, "Invoice", payload.Header["documentType"])
	assert.Equal(t, "G/L Account", payload.Lines[0].Fields["type"])
	assert.Equal(t, "6100", payload.Lines[0].Fields["number"])
}

func TestFieldMapper_LegacyPurchaseInvoice(t *testing.T) {
	cfg := testConfig(t, "usePurchaseInvoice: true\n")
	payload := mapRecord(t, cfg, "Bills", `{
		"vendorId": "V1",
		"vendorName": "Acme",
		"issueDate": "2024-03-01T00:00:00Z",
		"lineItems": "[{\"accountNumber\": 6100, \"totalPrice\": 50, \"description\": \"Fees\"}, {\"productNumber\": \"P-1\", \"unitPrice\": 5, \"quantity\": 3}, {\"description\": \"note\"}]",
		"attachments": [{"fileName": "inv.pdf", "content": "JVBERi0="}, {"fileName": "empty.txt"}]
	}`)

	assert.Equal(t, LegacyPurchaseInvoiceEntity, payload.Route.Descriptor.Kind)
	assert.Equal(t, Endpoint(`("ACME")/Purchase_Invoice`), payload.Endpoint)
	assert.Equal(t, Endpoint(`("ACME")/attachments`), payload.AttachmentsEndpoint)
	assert.Equal(t, Payload{
		"Buy_from_Vendor_Name": "Acme",
		"Buy_from_Vendor_No":   "V1",
		"Invoice_Receipt_Date": "2024-03-01",
		"Document_Type":        "Invoice",
	}, payload.Header)

	require.Len(t, payload.Lines, 3)
	assert.Equal(t, Payload{
		"Type":             "G/L Account",
		"No":               "6100",
		"Line_Amount":      50.0,
		"Description":      "Fees",
		"Quantity":         1.0,
		"Direct_Unit_Cost": 50.0,
	}, payload.Lines[0].Fields)
	assert.Equal(t, Payload{
		"Type":             "Item",
		"No":               "P-1",
		"Quantity":         3.0,
		"Direct_Unit_Cost": 5.0,
	}, payload.Lines[1].Fields)
	assert.Equal(t, Payload{"Description": "note", "Quantity": 1.0}, payload.Lines[2].Fields)

	assert.Equal(t, []Attachment{{FileName: "inv.pdf", Content: "JVBERi0="}}, payload.Attachments)
}

func TestFieldMapper_PurchaseInvoiceDimensions(t *testing.T) {
	cfg := testConfig(t, "bills_endpoint: /purchaseInvoices\n")
	payload := mapRecord(t, cfg, "PurchaseInvoices", `{
		"vendorId": "V1",
		"totalAmount": 120,
		"customFields": [{"name": "DSL-AREA", "value": "NORTH"}],
		"lineItems": [
			{"accountNumber": "6100", "unitPrice": 100, "customFields": [{"name": "DSL-DEPT", "value": "100"}, {"name": "DSL-PROJ", "value": 7}, {"name": "Memo", "value": "x"}]},
			{"productNumber": "1000", "totalPrice": 20}
		]
	}`)

	assert.Equal(t, PurchaseInvoiceEntity, payload.Route.Descriptor.Kind)
	assert.Equal(t, Payload{"vendorNumber": "V1", "totalAmountIncludingTax": 120.0}, payload.Header)

	require.Len(t, payload.Lines, 2)
	assert.Equal(t, Payload{
		"lineType":           "Account",
		"lineObjectNumber":   "6100",
		"quantity":           1.0,
		"amountIncludingTax": 100.0,
		"Memo":               "x",
	}, payload.Lines[0].Fields)
	assert.Equal(t, []DimensionLine{{Code: "DEPT", ValueCode: "100"}, {Code: "PROJ", ValueCode: "7"}}, payload.Lines[0].Dimensions)
	assert.NotContains(t, payload.Lines[0].Fields, "DSL-DEPT")

	assert.Equal(t, "Item", payload.Lines[1].Fields["lineType"])
	assert.Equal(t, 20.0, payload.Lines[1].Fields["amountIncludingTax"])
	assert.Empty(t, payload.Lines[1].Dimensions)
}

func TestRouteStream(t *testing.T) {
	tests := []struct {
		name         string
		stream       string
		overrides    string
		kind         EntityKind
		documentType string
	}{
		{"orders", "PurchaseOrders", "", PurchaseDocumentEntity, "Order"},
		{"snake case stream", "purchase_orders", "", PurchaseDocumentEntity, "Order"},
		{"bills default", "Bills", "", PurchaseDocumentEntity, "Invoice"},
		{"bills on legacy invoices", "Bills", "usePurchaseInvoice: true", LegacyPurchaseInvoiceEntity, ""},
		{"bills on modern invoices", "Bills", "usePurchaseInvoice: true\nbills_endpoint: purchaseInvoices", PurchaseInvoiceEntity, ""},
		{"invoices ignore the flag", "PurchaseInvoices", "", LegacyPurchaseInvoiceEntity, ""},
		{"invoices on modern surface", "PurchaseInvoices", "bills_endpoint: /purchaseInvoices", PurchaseInvoiceEntity, ""},
		{"vendors", "vendors", "", VendorEntity, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			if tt.overrides != "" {
				cfg = testConfig(t, tt.overrides)
			} else {
				cfg = testConfig(t)
			}
			route, err := RouteStream(tt.stream, cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, route.Descriptor.Kind)
			assert.Equal(t, tt.documentType, route.DocumentType)
		})
	}

	_, err := RouteStream("Customers", testConfig(t))
	assert.Error(t, err)
}

func TestFieldMapper_VendorPhoneRegion(t *testing.T) {
	record := `{"vendorName": "Acme", "phoneNumber": ["0113 496 0000"]}`

	payload := mapRecord(t, testConfig(t), "Vendors", record)
	assert.Equal(t, "0113 496 0000", payload.Header["phoneNumber"])

	payload = mapRecord(t, testConfig(t, "phone_region: GB\n"), "Vendors", record)
	assert.Equal(t, "+441134960000", payload.Header["phoneNumber"])
}
