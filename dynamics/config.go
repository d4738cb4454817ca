package dynamics

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/config"
)

type Config struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// CompanyID is used when a record carries no subsidiary of its own.
	CompanyID string `yaml:"company_id"`
	Tenant    string `yaml:"tenant"`
	URLBase   string `yaml:"url_base"`
	// BasicAuth sends plain basic auth instead of negotiating NTLM.
	BasicAuth          bool   `yaml:"basic_auth"`
	UsePurchaseInvoice bool   `yaml:"usePurchaseInvoice"`
	BillsEndpoint      string `yaml:"bills_endpoint"`
	// PhoneRegion is the default region for @phone modifiers written without
	// one, e.g. GB. Empty leaves phone numbers as received.
	PhoneRegion        string `yaml:"phone_region"`

	MaxParallelism    int     `yaml:"max_parallelism"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`

	Retry    RetrySettings                  `yaml:"retry"`
	Log      LogSettings                    `yaml:"log"`
	Mappings map[string]EntityFieldMappings `yaml:"mappings"`
}

type LogSettings struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is "json" or "console".
	Format string `yaml:"format"`
}

// Validate checks the settings every run needs.
func (c Config) Validate() error {
	var missing []string
	if c.URLBase == "" {
		missing = append(missing, "url_base")
	}
	if c.CompanyID == "" {
		missing = append(missing, "company_id")
	}
	if c.Username == "" {
		missing = append(missing, "username")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return eris.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	if c.MaxParallelism < 0 {
		return eris.New("max_parallelism must not be negative")
	}
	return nil
}

func (c Config) Parallelism() int {
	if c.MaxParallelism <= 0 {
		return 10
	}
	return c.MaxParallelism
}

func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return HTTPRequestTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ServiceRoot is url_base when it already names a service (it contains api or
// OData), otherwise http://<url_base>/<tenant>/ODataV4.
func (c Config) ServiceRoot() string {
	base := strings.TrimRight(c.URLBase, "/")
	if strings.Contains(base, "api") || strings.Contains(base, "OData") {
		return withScheme(base)
	}
	return withScheme(base) + "/" + strings.Trim(c.Tenant, "/") + "/ODataV4"
}

func withScheme(base string) string {
	if strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://") {
		return base
	}
	return "http://" + base
}

// APIStyle reports which address style the service root uses.
func (c Config) APIStyle() APIStyle {
	return DetectAPIStyle(c.ServiceRoot())
}

// CollectionRoot is the URL every resolved endpoint is appended to.
func (c Config) CollectionRoot() string {
	return c.ServiceRoot() + c.APIStyle().CollectionSegment()
}

// ModernInvoices reports whether purchase invoices go to /purchaseInvoices
// rather than the legacy /Purchase_Invoice page.
func (c Config) ModernInvoices() bool {
	return strings.TrimPrefix(strings.TrimSpace(c.BillsEndpoint), "/") == "purchaseInvoices"
}

// FieldMappings returns the tables configured for an entity, with
// phone_region bound to bare @phone modifiers.
func (c Config) FieldMappings(entity string) EntityFieldMappings {
	tables := c.Mappings[entity]
	if region := strings.TrimSpace(c.PhoneRegion); region != "" {
		tables.Header = tables.Header.WithModifierArg("phone", region)
		tables.Lines = tables.Lines.WithModifierArg("phone", region)
	}
	return tables
}

type ConfigUnmarshaler interface {
	Unmarshal(compev CompositeEnvVar, sources ...MappingFile) (Config, error)
}

type CompositeEnvVar interface {
	LookupEnv(child string) (string, bool)
}

// JSONCompositeEnvVar reads variables from a single env var holding a JSON object.
type JSONCompositeEnvVar struct {
	Parent string
}

func (c JSONCompositeEnvVar) LookupEnv(child string) (string, bool) {
	if c.Parent != "" {
		s := os.Getenv(c.Parent)
		if s != "" {
			m := make(map[string]string)
			err := json.Unmarshal([]byte(s), &m)
			if err == nil {
				v, exists := m[child]
				return v, exists
			}
		}
	}
	return "", false
}

// ProcessEnvVar reads plain environment variables.
type ProcessEnvVar struct{}

func (ProcessEnvVar) LookupEnv(child string) (string, bool) {
	return os.LookupEnv(child)
}

// ChainedEnvVar returns the first lookup that finds the variable.
type ChainedEnvVar []CompositeEnvVar

func (c ChainedEnvVar) LookupEnv(child string) (string, bool) {
	for _, env := range c {
		if v, exists := env.LookupEnv(child); exists {
			return v, true
		}
	}
	return "", false
}

type YAMLConfigUnmarshaler struct{}

// Unmarshal layers the sources in order, later sources win, and expands
// ${VAR} and ${VAR:default} references with compev. Any other "$" is kept
// as written, so secrets such as Pa$sw0rd load unchanged.
func (u YAMLConfigUnmarshaler) Unmarshal(compev CompositeEnvVar, sources ...MappingFile) (Config, error) {
	var result Config
	var options []config.YAMLOption
	for _, s := range sources {
		if s.Length == 0 {
			continue
		}
		data, err := io.ReadAll(s.Reader)
		if err != nil {
			return result, eris.Wrapf(err, "failed to read %s", s.Name)
		}
		expanded, err := expandReferences(data, compev)
		if err != nil {
			return result, eris.Wrapf(err, "failed to expand %s", s.Name)
		}
		options = append(options, config.RawSource(bytes.NewReader(expanded)))
	}
	yaml, err := config.NewYAML(options...)
	if err != nil {
		return result, eris.Wrap(err, "failed to read yaml config")
	}
	readError := func(key string, cause error) error {
		return eris.Wrapf(cause, "failed to read '%s' from yaml config", key)
	}
	err = yaml.Get(config.Root).Populate(&result)
	if err != nil {
		return result, readError("root", err)
	}
	for name, entity := range result.Mappings {
		if entity.Header.IsEmpty() && entity.Lines.IsEmpty() {
			return result, readError("mappings."+name, eris.New("no header or lines table"))
		}
	}
	return result, nil
}

var referencePattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([^}]*))?\}`)

// expandReferences replaces ${VAR} and ${VAR:default}. A reference to an
// unset variable without a default is an error.
func expandReferences(data []byte, compev CompositeEnvVar) ([]byte, error) {
	var missing []string
	expanded := referencePattern.ReplaceAllFunc(data, func(match []byte) []byte {
		groups := referencePattern.FindSubmatch(match)
		name := string(groups[1])
		if v, exists := compev.LookupEnv(name); exists {
			return []byte(v)
		}
		if bytes.Contains(match, []byte(":")) {
			return groups[2]
		}
		missing = append(missing, name)
		return match
	})
	if len(missing) > 0 {
		return nil, eris.Errorf("variables not set and without default: %s", strings.Join(missing, ", "))
	}
	return expanded, nil
}
