package dynamics

import (
	"encoding/json"
	"strings"

	"github.com/biter777/countries"
	"github.com/tidwall/gjson"
	"github.com/ttacon/libphonenumber"
	"go.uber.org/zap"
)

func init() {

	// @date keeps the date part of a timestamp, "2024-03-15T10:30:00Z" -> "2024-03-15"
	gjson.AddModifier("date", func(json, arg string) string {
		res := gjson.Parse(json)
		if !res.Exists() {
			return ""
		}
		if res.Type != gjson.String {
			return json
		}
		return jsonString(ConvertDate(res.String()))
	})

	// @countryCode converts names and alpha-3 codes to the ISO alpha-2 code
	// that countryRegionCode expects; unknown values pass through
	gjson.AddModifier("countryCode", func(json, arg string) string {
		res := gjson.Parse(json)
		if !res.Exists() || res.Type != gjson.String {
			return json
		}
		c := countries.ByName(res.String()) // will match on Alpha-2 / Alpha-3 / Name
		if countries.Unknown == c {
			return json
		}
		return jsonString(c.Alpha2())
	})

	// @phone:GB formats a number as E.164 using the region as the default
	gjson.AddModifier("phone", func(json, arg string) string {
		res := gjson.Parse(json)
		if !res.Exists() || res.Type != gjson.String {
			return json
		}
		region := strings.ToUpper(strings.Trim(arg, `"`))
		if region == "" {
			return json
		}
		num, err := libphonenumber.Parse(res.String(), region)
		if err != nil {
			zap.L().Warn("failed to parse phone number, sending as received",
				zap.String("region", region),
				zap.Error(err),
			)
			return json
		}
		return jsonString(libphonenumber.Format(num, libphonenumber.E164))
	})

}

func jsonString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
