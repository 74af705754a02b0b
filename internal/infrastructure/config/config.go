package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Saltoleto/consulta-produtos/internal/application/usecase"
	"github.com/Saltoleto/consulta-produtos/pkg/auth"
	pkgkafka "github.com/Saltoleto/consulta-produtos/pkg/kafka"
	pgpkg "github.com/Saltoleto/consulta-produtos/pkg/postgres"
	"github.com/Saltoleto/consulta-produtos/pkg/tlsutil"
	"github.com/Saltoleto/consulta-produtos/pkg/workerpool"
)

// Config holds all configuration for the import service.
type Config struct {
	// Service name for observability
	ServiceName string
	LogLevel    string
	LogFormat   string
	// Database configuration
	Database pgpkg.Config
	// Directory holding the golang-migrate files
	MigrationsDir string
	// Kafka configuration
	Kafka pkgkafka.Config
	// Telemetry
	Telemetry TelemetryConfig
	// JWT validation for the gRPC surface
	Auth auth.JWTConfig
	// TLS for the gRPC server; both empty means plaintext
	TLS TLSConfig
	// Import pipeline
	Import ImportConfig
	// Async emission pool
	Emitter EmitterConfig
	// gRPC server port
	GRPCPort int
	// HTTP metrics/health port
	HTTPPort int
	// Grace period for in-flight work on shutdown
	ShutdownTimeout time.Duration
}

// TelemetryConfig holds tracing settings. An empty endpoint disables export.
type TelemetryConfig struct {
	OTLPEndpoint string
	Insecure     bool
	SampleRatio  float64
}

// TLSConfig points at the gRPC server key pair and optional client CA.
type TLSConfig = tlsutil.ServerFiles

// ImportConfig tunes the import pipeline.
type ImportConfig struct {
	EmissionMode        usecase.EmissionMode
	LotSize             int
	StoreTimeout        time.Duration
	SinkTimeout         time.Duration
	DiffExisting        bool
	CaptureRevokedViews bool
}

// EmitterConfig sizes the async emission pool.
type EmitterConfig struct {
	OverflowPolicy workerpool.OverflowPolicy
	Workers        int
	QueueSize      int
	SubmitTimeout  time.Duration
	TaskTimeout    time.Duration
}

// Load reads configuration from environment variables with defaults.
// Malformed values are reported by Validate.
func Load() (Config, error) {
	var errs []error

	policy, err := workerpool.ParsePolicy(getEnv("EMITTER_OVERFLOW_POLICY", string(workerpool.PolicyBlock)))
	errs = append(errs, err)

	cfg := Config{
		GRPCPort:        getEnvInt("GRPC_PORT", 8090, &errs),
		HTTPPort:        getEnvInt("HTTP_PORT", 9090, &errs),
		ServiceName:     getEnv("SERVICE_NAME", "conta-import"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		MigrationsDir:   getEnv("MIGRATIONS_DIR", "internal/infrastructure/postgres/migrations"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second, &errs),
		Database: pgpkg.Config{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432, &errs),
			User:            getEnv("DB_USER", "contas"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "consulta_produtos"),
			SSLMode:         getEnv("DB_SSLMODE", "require"),
			ApplicationName: getEnv("SERVICE_NAME", "conta-import"),
			MaxConns:        int32(getEnvInt("DB_MAX_CONNS", 10, &errs)),
			MinConns:        int32(getEnvInt("DB_MIN_CONNS", 2, &errs)),
		},
		Kafka: pkgkafka.Config{
			Brokers:       splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			ClientID:      getEnv("KAFKA_CLIENT_ID", "conta-import"),
			BatchTimeout:  getEnvDuration("KAFKA_BATCH_TIMEOUT", 10*time.Millisecond, &errs),
			TLS:           getEnvBool("KAFKA_TLS", false, &errs),
			SASLEnabled:   getEnvBool("KAFKA_SASL_ENABLED", false, &errs),
			SASLMechanism: getEnv("KAFKA_SASL_MECHANISM", "PLAIN"),
			SASLUsername:  getEnv("KAFKA_SASL_USERNAME", ""),
			SASLPassword:  getEnv("KAFKA_SASL_PASSWORD", ""),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Insecure:     getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true, &errs),
			SampleRatio:  getEnvFloat("OTEL_TRACES_SAMPLE_RATIO", 1, &errs),
		},
		Auth: auth.JWTConfig{
			Secret:       getEnv("JWT_SECRET", ""),
			PublicKeyPEM: readFileEnv("JWT_PUBLIC_KEY_FILE", &errs),
			Issuer:       getEnv("JWT_ISSUER", "consulta-produtos"),
			Leeway:       getEnvDuration("JWT_LEEWAY", 30*time.Second, &errs),
		},
		TLS: TLSConfig{
			CertFile:     getEnv("GRPC_TLS_CERT_FILE", ""),
			KeyFile:      getEnv("GRPC_TLS_KEY_FILE", ""),
			ClientCAFile: getEnv("GRPC_TLS_CLIENT_CA_FILE", ""),
		},
		Import: ImportConfig{
			EmissionMode:        usecase.EmissionMode(getEnv("IMPORT_EMISSION_MODE", string(usecase.EmissionSync))),
			LotSize:             getEnvInt("IMPORT_LOT_SIZE", usecase.DefaultLotSize, &errs),
			StoreTimeout:        getEnvDuration("IMPORT_STORE_TIMEOUT", 30*time.Second, &errs),
			SinkTimeout:         getEnvDuration("IMPORT_SINK_TIMEOUT", 10*time.Second, &errs),
			DiffExisting:        getEnvBool("IMPORT_DIFF_EXISTING", false, &errs),
			CaptureRevokedViews: getEnvBool("IMPORT_REVOKE_CAPTURE_VIEWS", false, &errs),
		},
		Emitter: EmitterConfig{
			Workers:        getEnvInt("EMITTER_WORKERS", 8, &errs),
			QueueSize:      getEnvInt("EMITTER_QUEUE_SIZE", 1000, &errs),
			OverflowPolicy: policy,
			SubmitTimeout:  getEnvDuration("EMITTER_SUBMIT_TIMEOUT", 5*time.Second, &errs),
			TaskTimeout:    getEnvDuration("EMITTER_TASK_TIMEOUT", 30*time.Second, &errs),
		},
	}
	cfg.Kafka.SASLEnabled = cfg.Kafka.SASLEnabled || cfg.Kafka.SASLUsername != ""

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate checks required and mutually dependent configuration values.
func (c Config) Validate() error {
	var errs []error
	if c.Database.Password == "" {
		errs = append(errs, fmt.Errorf("DB_PASSWORD environment variable is required"))
	}
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, fmt.Errorf("KAFKA_BROKERS must list at least one broker"))
	}
	if c.Auth.Secret == "" && c.Auth.PublicKeyPEM == "" {
		errs = append(errs, fmt.Errorf("one of JWT_SECRET or JWT_PUBLIC_KEY_FILE is required"))
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		errs = append(errs, fmt.Errorf("GRPC_TLS_CERT_FILE and GRPC_TLS_KEY_FILE must be set together"))
	}
	if c.TLS.ClientCAFile != "" && !c.TLS.Enabled() {
		errs = append(errs, fmt.Errorf("GRPC_TLS_CLIENT_CA_FILE requires GRPC_TLS_CERT_FILE and GRPC_TLS_KEY_FILE"))
	}
	switch c.Import.EmissionMode {
	case usecase.EmissionSync, usecase.EmissionAsync:
	default:
		errs = append(errs, fmt.Errorf("IMPORT_EMISSION_MODE must be sync or async, got %q", c.Import.EmissionMode))
	}
	if c.Import.LotSize <= 0 {
		errs = append(errs, fmt.Errorf("IMPORT_LOT_SIZE must be positive, got %d", c.Import.LotSize))
	}
	if c.Import.EmissionMode == usecase.EmissionAsync {
		if c.Emitter.Workers <= 0 {
			errs = append(errs, fmt.Errorf("EMITTER_WORKERS must be positive, got %d", c.Emitter.Workers))
		}
		if c.Emitter.QueueSize < 0 {
			errs = append(errs, fmt.Errorf("EMITTER_QUEUE_SIZE must not be negative, got %d", c.Emitter.QueueSize))
		}
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("OTEL_TRACES_SAMPLE_RATIO must be within [0,1], got %v", c.Telemetry.SampleRatio))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int, errs *[]error) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, val))
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64, errs *[]error) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid number %q", key, val))
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool, errs *[]error) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid boolean %q", key, val))
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration, errs *[]error) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, val))
		return defaultVal
	}
	return d
}

func readFileEnv(key string, errs *[]error) string {
	path := os.Getenv(key)
	if path == "" {
		return ""
	}
	data, err := auth.LoadKeyFromFile(path)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return ""
	}
	return string(data)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
