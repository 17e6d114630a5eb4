package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/verivote/dreip-backend/internal"
)

const (
	defaultAPIHost   = "0.0.0.0"
	defaultAPIPort   = 8000
	defaultLogLevel  = "info"
	defaultLogOutput = "stdout"
	defaultOtpTTL    = 5 * time.Minute
	defaultAuthTTL   = time.Hour
	defaultDbName    = "dreip"
)

// Version is the build version, set at build time with -ldflags.
var Version = internal.Version

// Config holds the application configuration.
type Config struct {
	API      APIConfig
	Db       DbConfig
	Aws      AwsConfig
	Log      LogConfig
	Admin    AdminConfig
	Hostname string `mapstructure:"hostname"`
	// Valid lifetime of OTP challenges.
	OtpTTL time.Duration `mapstructure:"otpTTL"`
	// Valid lifetime of session cookies.
	AuthTTL time.Duration `mapstructure:"authTTL"`
	// Secret used to sign challenge and session tokens.
	JwtSecret string `mapstructure:"jwtSecret"`
	// Secret used to HMAC voter phone numbers.
	HmacSecret string `mapstructure:"hmacSecret"`
	// Secret key for reCAPTCHA verification. Empty disables verification.
	RecaptchaSecret string `mapstructure:"recaptchaSecret"`
}

// APIConfig holds the API-specific configuration.
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DbConfig holds the MongoDB configuration.
type DbConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

// AwsConfig holds the SNS credentials. Empty credentials switch SMS delivery
// to log-only mode.
type AwsConfig struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"accessKeyID"`
	SecretAccessKey string `mapstructure:"secretAccessKey"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// AdminConfig holds the seed credentials for the initial admin account,
// created only when no admin exists yet.
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// loadConfig loads configuration from flags, environment variables, and
// defaults.
func loadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("api.host", defaultAPIHost)
	v.SetDefault("api.port", defaultAPIPort)
	v.SetDefault("db.name", defaultDbName)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.output", defaultLogOutput)
	v.SetDefault("otpTTL", defaultOtpTTL)
	v.SetDefault("authTTL", defaultAuthTTL)
	v.SetDefault("admin.username", "admin")

	flag.StringP("api.host", "h", defaultAPIHost, "API host")
	flag.IntP("api.port", "p", defaultAPIPort, "API port")
	flag.String("db.uri", "", "MongoDB connection string (required)")
	flag.String("db.name", defaultDbName, "MongoDB database name")
	flag.String("hostname", "", "hostname used for reCAPTCHA verification")
	flag.Duration("otpTTL", defaultOtpTTL, "OTP challenge lifetime")
	flag.Duration("authTTL", defaultAuthTTL, "session cookie lifetime")
	flag.String("jwtSecret", "", "secret used to sign tokens (required)")
	flag.String("hmacSecret", "", "secret used to HMAC phone numbers (required)")
	flag.String("recaptchaSecret", "", "reCAPTCHA secret, empty disables verification")
	flag.String("aws.region", "", "AWS region for SNS")
	flag.String("aws.accessKeyID", "", "AWS access key ID for SNS")
	flag.String("aws.secretAccessKey", "", "AWS secret access key for SNS")
	flag.String("admin.username", "admin", "seed admin username")
	flag.String("admin.password", "", "seed admin password, empty skips seeding")
	flag.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error)")
	flag.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr or filepath)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "dreip-backend v%s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: dreip-backend [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables are also available with the same name as flags,\n")
		fmt.Fprintf(os.Stderr, "  except dots (.) are replaced by underscores (_).\n")
		fmt.Fprintf(os.Stderr, "  For example, DREIP_DB_URI or DREIP_JWTSECRET\n")
	}

	flag.CommandLine.SortFlags = false
	flag.Parse()

	v.SetEnvPrefix("DREIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flag.CommandLine); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}

// validateConfig validates the loaded configuration.
func validateConfig(cfg *Config) error {
	if cfg.Db.URI == "" {
		return fmt.Errorf("database URI is required (use --db.uri or DREIP_DB_URI)")
	}
	if cfg.JwtSecret == "" {
		return fmt.Errorf("JWT secret is required (use --jwtSecret or DREIP_JWTSECRET)")
	}
	if cfg.HmacSecret == "" {
		return fmt.Errorf("HMAC secret is required (use --hmacSecret or DREIP_HMACSECRET)")
	}
	return nil
}
