package dynamics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestModifiers(t *testing.T) {
	json := `{
		"due": "2024-03-15T10:30:00Z",
		"countryName": "United Kingdom",
		"countryAlpha3": "DEU",
		"countryUnknown": "Atlantis",
		"phone": "020 7946 0958",
		"badPhone": "call me",
		"amount": 5
	}`
	tests := []struct {
		path string
		want string
	}{
		{"due|@date", "2024-03-15"},
		{"amount|@date", "5"},
		{"countryName|@countryCode", "GB"},
		{"countryAlpha3|@countryCode", "DE"},
		{"countryUnknown|@countryCode", "Atlantis"},
		{"phone|@phone:GB", "+442079460958"},
		{"badPhone|@phone:GB", "call me"},
		{"phone|@phone", "020 7946 0958"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, gjson.Get(json, tt.path).String())
		})
	}
}

func TestModifiers_MissingValue(t *testing.T) {
	assert.False(t, gjson.Get(`{}`, "due|@date").Exists())
}
