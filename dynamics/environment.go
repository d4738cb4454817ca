package dynamics

import (
	"github.com/rotisserie/eris"
)

// ConfigEnvVar is the JSON object env var whose keys can be referenced as
// ${KEY} in the config file, ahead of plain environment variables.
const ConfigEnvVar = "DYNAMICS_TARGET_CONFIG"

// configOptions holds optional configuration for LoadConfig.
type configOptions struct {
	env      CompositeEnvVar
	defaults EmbeddedMappings
	extra    []MappingFile
}

// ConfigOption is a functional option for configuring LoadConfig.
type ConfigOption func(*configOptions)

// ConfigWithEnv replaces the variable lookup used for ${VAR} expansion.
func ConfigWithEnv(env CompositeEnvVar) ConfigOption {
	return func(o *configOptions) {
		o.env = env
	}
}

// ConfigWithDefaults replaces the embedded defaults.
func ConfigWithDefaults(defaults EmbeddedMappings) ConfigOption {
	return func(o *configOptions) {
		o.defaults = defaults
	}
}

// ConfigWithOverrides layers more files after the config file.
func ConfigWithOverrides(files ...MappingFile) ConfigOption {
	return func(o *configOptions) {
		o.extra = append(o.extra, files...)
	}
}

// LoadConfig layers the embedded defaults and the given config file and
// validates the result.
func LoadConfig(configFile MappingFile, opts ...ConfigOption) (Config, error) {
	options := configOptions{
		env:      ChainedEnvVar{JSONCompositeEnvVar{Parent: ConfigEnvVar}, ProcessEnvVar{}},
		defaults: DefaultMappings,
	}
	for _, opt := range opts {
		opt(&options)
	}

	var result Config
	defaultsMappingFile, err := options.defaults.MustFindDefaultsMappingFile()
	if err != nil {
		return result, eris.Wrap(err, "failed to read defaults mapping file")
	}

	sources := append([]MappingFile{defaultsMappingFile, configFile}, options.extra...)
	result, err = YAMLConfigUnmarshaler{}.Unmarshal(options.env, sources...)
	if err != nil {
		return result, eris.Wrap(err, "failed to load config")
	}
	if err := result.Validate(); err != nil {
		return result, err
	}
	return result, nil
}

// LoadConfigFile is LoadConfig for a file on disk.
func LoadConfigFile(name string, opts ...ConfigOption) (Config, error) {
	configFile, err := ReadMappingFile(name)
	if err != nil {
		return Config{}, err
	}
	return LoadConfig(configFile, opts...)
}
