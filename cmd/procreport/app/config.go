package app

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/agentstation/procreport/pkg/constants"
	"github.com/agentstation/procreport/pkg/errors"
)

// envPrefix namespaces environment variables, e.g. PROCREPORT_SPEC_URL.
const envPrefix = "PROCREPORT"

// Config holds the application configuration loaded from flags, environment
// variables, .env files and the optional config file.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Report configuration
	Providers      []string
	AggregatorURL  string
	SpecURL        string
	OutputDir      string
	FilePattern    string
	RulesFile      string
	HTTPTimeout    time.Duration
	MaxConcurrency int

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (applied later by UpdateFromFlags)
// 2. Environment variables (PROCREPORT_*)
// 3. .env files
// 4. Config file (configFile, else ~/.procreport.yaml or ./.procreport.yaml)
// 5. Defaults
func LoadConfig(configFile string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Unprefixed LOG_* variables are honoured as well.
	for _, key := range []string{"log_level", "log_format", "log_output"} {
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(key), strings.ToUpper(key)); err != nil {
			return nil, errors.NewConfigError("env", "cannot bind "+key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".procreport")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// An explicitly named file must exist; the default locations are optional.
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.NewConfigError("config file", err.Error(), err)
		}
	}

	config := &Config{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		NoColor: v.GetBool("no_color"),
		Format:  v.GetString("format"),

		ConfigFile: v.ConfigFileUsed(),

		Providers:      splitList(v.GetStringSlice("providers")),
		AggregatorURL:  v.GetString("aggregator_url"),
		SpecURL:        v.GetString("spec_url"),
		OutputDir:      v.GetString("output_dir"),
		FilePattern:    v.GetString("file_pattern"),
		RulesFile:      v.GetString("rules_file"),
		HTTPTimeout:    v.GetDuration("http_timeout"),
		MaxConcurrency: v.GetInt("max_concurrency"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
		LogOutput: v.GetString("log_output"),
	}

	if config.RulesFile != "" && config.ConfigFile != "" && !filepath.IsAbs(config.RulesFile) {
		config.RulesFile = filepath.Join(filepath.Dir(config.ConfigFile), config.RulesFile)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("providers", constants.DefaultProviders)
	v.SetDefault("aggregator_url", constants.DefaultAggregatorURL)
	v.SetDefault("spec_url", constants.DefaultSpecURL)
	v.SetDefault("output_dir", constants.DefaultOutputDir)
	v.SetDefault("file_pattern", constants.DefaultFilePattern)
	v.SetDefault("http_timeout", constants.DefaultHTTPTimeout)
	v.SetDefault("max_concurrency", constants.MaxConcurrentProviders)
	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")
}

// UpdateFromFlags applies flags the user set explicitly. It is called after
// cobra parses flags so flag values take precedence over the config file and
// environment. Flags not defined on the running command are skipped.
func (c *Config) UpdateFromFlags(flags *pflag.FlagSet) error {
	var err error
	set := func(name string, apply func(*pflag.Flag) error) {
		f := flags.Lookup(name)
		if err != nil || f == nil || !f.Changed {
			return
		}
		err = apply(f)
	}

	set("verbose", func(*pflag.Flag) (e error) { c.Verbose, e = flags.GetBool("verbose"); return })
	set("quiet", func(*pflag.Flag) (e error) { c.Quiet, e = flags.GetBool("quiet"); return })
	set("no-color", func(*pflag.Flag) (e error) { c.NoColor, e = flags.GetBool("no-color"); return })
	set("format", func(f *pflag.Flag) error { c.Format = f.Value.String(); return nil })
	set("log-level", func(f *pflag.Flag) error { c.LogLevel = f.Value.String(); return nil })

	set("provider", func(*pflag.Flag) (e error) {
		var providers []string
		providers, e = flags.GetStringSlice("provider")
		c.Providers = splitList(providers)
		return
	})
	set("aggregator-url", func(f *pflag.Flag) error { c.AggregatorURL = f.Value.String(); return nil })
	set("spec-url", func(f *pflag.Flag) error { c.SpecURL = f.Value.String(); return nil })
	set("output-dir", func(f *pflag.Flag) error { c.OutputDir = f.Value.String(); return nil })
	set("rules", func(f *pflag.Flag) error { c.RulesFile = f.Value.String(); return nil })
	set("timeout", func(*pflag.Flag) (e error) { c.HTTPTimeout, e = flags.GetDuration("timeout"); return })
	set("max-concurrency", func(*pflag.Flag) (e error) { c.MaxConcurrency, e = flags.GetInt("max-concurrency"); return })

	if err != nil {
		return errors.NewConfigError("flags", err.Error(), err)
	}
	return nil
}

// loadEnvFiles loads environment variables from .env files.
// .env.local is loaded first so its values win; godotenv never overrides
// variables that are already set.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}

// splitList accepts both list values and comma separated strings, as
// environment variables only carry the latter.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
