package dynamics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
username: user
password: secret
company_id: ACME
tenant: BC
url_base: bc-server:7048
`

// testConfig loads the embedded defaults plus a minimal config and any
// overrides, without reading the environment.
func testConfig(t *testing.T, overrides ...string) Config {
	t.Helper()
	var extra []MappingFile
	for i, o := range overrides {
		extra = append(extra, MappingFileFromBytes("override"+string(rune('a'+i))+".yaml", []byte(o)))
	}
	cfg, err := LoadConfig(
		MappingFileFromBytes("config.yaml", []byte(testConfigYAML)),
		ConfigWithEnv(ChainedEnvVar{}),
		ConfigWithOverrides(extra...),
	)
	require.NoError(t, err)
	return cfg
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := testConfig(t)

	assert.Equal(t, "ACME", cfg.CompanyID)
	assert.Equal(t, 10, cfg.Parallelism())
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.ModernInvoices())
	assert.Equal(t, "vendorName", cfg.FieldMappings("vendors").Header.Strings["name"])
	assert.Equal(t, "`Invoice`", cfg.FieldMappings("purchaseInvoiceLegacy").Header.Strings["Document_Type"])
	assert.Equal(t, "http://bc-server:7048/BC/ODataV4/Company", cfg.CollectionRoot())
}

func TestLoadConfig_JSONConfigOverridesDefaults(t *testing.T) {
	json := `{
		"username": "user",
		"password": "secret",
		"company_id": "CRONUS",
		"url_base": "https://bc.example.com/BC/api/v2.0",
		"basic_auth": true,
		"usePurchaseInvoice": true,
		"bills_endpoint": "purchaseInvoices",
		"max_parallelism": 3,
		"mappings": {"vendors": {"header": {"strings": {"name": "displayName"}}}}
	}`
	cfg, err := LoadConfig(MappingFileFromBytes("config.json", []byte(json)), ConfigWithEnv(ChainedEnvVar{}))
	require.NoError(t, err)

	assert.True(t, cfg.BasicAuth)
	assert.True(t, cfg.UsePurchaseInvoice)
	assert.True(t, cfg.ModernInvoices())
	assert.Equal(t, 3, cfg.Parallelism())
	assert.Equal(t, ModernAPI, cfg.APIStyle())
	// single entries override, the rest of the table is kept
	assert.Equal(t, "displayName", cfg.FieldMappings("vendors").Header.Strings["name"])
	assert.Equal(t, "emailAddress", cfg.FieldMappings("vendors").Header.Strings["eMail"])
}

func TestLoadConfig_ExpandsVariables(t *testing.T) {
	t.Setenv(ConfigEnvVar, `{"BC_PASSWORD": "from-json"}`)
	yaml := `
username: user
password: ${BC_PASSWORD}
company_id: ACME
url_base: bc:7048
tenant: ${BC_TENANT:BC}
`
	cfg, err := LoadConfig(MappingFileFromBytes("config.yaml", []byte(yaml)))
	require.NoError(t, err)

	assert.Equal(t, "from-json", cfg.Password)
	assert.Equal(t, "BC", cfg.Tenant)
}

func TestLoadConfig_KeepsDollarSigns(t *testing.T) {
	t.Setenv("sw0rd", "expanded")
	json := `{
		"username": "user",
		"password": "Pa$sw0rd",
		"company_id": "ACME",
		"url_base": "bc:7048",
		"tenant": "$$BC"
	}`
	cfg, err := LoadConfig(MappingFileFromBytes("config.json", []byte(json)))
	require.NoError(t, err)

	assert.Equal(t, "Pa$sw0rd", cfg.Password)
	assert.Equal(t, "$$BC", cfg.Tenant)
}

func TestLoadConfig_UnsetVariableWithoutDefault(t *testing.T) {
	yaml := testConfigYAML + "tenant: ${DYNAMICS_TEST_UNSET_TENANT}\n"
	_, err := LoadConfig(MappingFileFromBytes("config.yaml", []byte(yaml)), ConfigWithEnv(ChainedEnvVar{}))
	assert.ErrorContains(t, err, "DYNAMICS_TEST_UNSET_TENANT")
}

func TestExpandReferences(t *testing.T) {
	env := ChainedEnvVar{JSONCompositeEnvVar{Parent: "TEST_DYNAMICS_EXPAND"}}
	t.Setenv("TEST_DYNAMICS_EXPAND", `{"USER": "admin"}`)

	tests := []struct {
		in   string
		want string
	}{
		{"username: ${USER}", "username: admin"},
		{"tenant: ${TENANT:BC}", "tenant: BC"},
		{"tenant: ${TENANT:}", "tenant: "},
		{"password: Pa$sw0rd", "password: Pa$sw0rd"},
		{"password: $USER", "password: $USER"},
		{"password: a$$b${USER}", "password: a$$badmin"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := expandReferences([]byte(tt.in), env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestConfig_PhoneRegionBindsBareModifiers(t *testing.T) {
	cfg := testConfig(t)
	assert.Equal(t, "phoneNumber.0|@phone", cfg.FieldMappings("vendors").Header.Strings["phoneNumber"])

	cfg = testConfig(t, "phone_region: GB\nmappings:\n  vendors:\n    header:\n      strings:\n        name2: \"contactName || altPhone|@phone:US\"\n")
	header := cfg.FieldMappings("vendors").Header
	assert.Equal(t, "phoneNumber.0|@phone:GB", header.Strings["phoneNumber"])
	assert.Equal(t, "contactName || altPhone|@phone:US", header.Strings["name2"])
	assert.Equal(t, "phoneNumber.0|@phone", cfg.Mappings["vendors"].Header.Strings["phoneNumber"], "stored tables are not modified")
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	_, err := LoadConfig(MappingFileFromBytes("config.yaml", []byte("username: user\n")), ConfigWithEnv(ChainedEnvVar{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url_base")
	assert.Contains(t, err.Error(), "company_id")
	assert.Contains(t, err.Error(), "password")
}

func TestJSONCompositeEnvVar(t *testing.T) {
	t.Setenv("TEST_DYNAMICS_VARS", `{"A": "1"}`)
	env := JSONCompositeEnvVar{Parent: "TEST_DYNAMICS_VARS"}

	v, ok := env.LookupEnv("A")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	_, ok = env.LookupEnv("B")
	assert.False(t, ok)

	_, ok = JSONCompositeEnvVar{}.LookupEnv("A")
	assert.False(t, ok)
}

func TestChainedEnvVar(t *testing.T) {
	t.Setenv("TEST_DYNAMICS_PLAIN", "plain")
	t.Setenv("TEST_DYNAMICS_VARS", `{"TEST_DYNAMICS_PLAIN": "json"}`)

	env := ChainedEnvVar{JSONCompositeEnvVar{Parent: "TEST_DYNAMICS_VARS"}, ProcessEnvVar{}}
	v, _ := env.LookupEnv("TEST_DYNAMICS_PLAIN")
	assert.Equal(t, "json", v)

	v, _ = ChainedEnvVar{ProcessEnvVar{}}.LookupEnv("TEST_DYNAMICS_PLAIN")
	assert.Equal(t, "plain", v)
}
