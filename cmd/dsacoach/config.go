package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"dsacoach/internal/domain/execution"
	"dsacoach/internal/observability"
	"dsacoach/internal/runtime/docker"
)

const (
	pythonDockerImage        = "python:3.12-alpine"
	containerWorkdir         = "/tmp"
	sandboxUser              = "65534:65534"
	defaultTimeLimit         = 10 * time.Second
	defaultMemoryLimit       = 256 << 20
	defaultKafkaBrokers      = "kafka:9092"
	defaultKafkaTopic        = "submissions"
	defaultKafkaResultsTopic = "evaluations"
	defaultKafkaGroupID      = "dsacoach-evaluator"
	defaultHTTPAddr          = ":8080"
)

type appConfig struct {
	LogLevel string

	HTTPAddr  string
	JWTSecret string

	KafkaBrokers     []string
	SubmissionsTopic string
	ResultsTopic     string
	GroupID          string
	MaxSubmissions   int
	MaxParallel      int

	Tracing observability.TracingConfig
}

func loadAppConfig() appConfig {
	return appConfig{
		LogLevel:         logLevel(),
		HTTPAddr:         envOrDefault("HTTP_ADDR", defaultHTTPAddr),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		KafkaBrokers:     parseBrokerList(envOrDefault("KAFKA_BROKERS", defaultKafkaBrokers)),
		SubmissionsTopic: envOrDefault("KAFKA_TOPIC", defaultKafkaTopic),
		ResultsTopic:     envOrDefault("KAFKA_RESULTS_TOPIC", defaultKafkaResultsTopic),
		GroupID:          envOrDefault("KAFKA_GROUP_ID", defaultKafkaGroupID),
		MaxSubmissions:   parseMaxSubmissions(os.Getenv("SUBMISSIONS_EXPECTED")),
		MaxParallel:      parseMaxParallel(os.Getenv("RUNNER_MAX_PARALLEL")),
		Tracing: observability.TracingConfig{
			Enabled:     parseBool(os.Getenv("OTEL_ENABLED")),
			Endpoint:    envOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			Insecure:    parseBool(envOrDefault("OTEL_EXPORTER_OTLP_INSECURE", "true")),
			ServiceName: envOrDefault("OTEL_SERVICE_NAME", "dsacoach"),
		},
	}
}

// logLevel honours DEBUG_MODE as a shortcut for LOG_LEVEL=debug.
func logLevel() string {
	if parseBool(os.Getenv("DEBUG_MODE")) {
		return "debug"
	}
	return envOrDefault("LOG_LEVEL", "info")
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseBrokerList(raw string) []string {
	fields := strings.Split(raw, ",")
	brokers := make([]string, 0, len(fields))
	for _, field := range fields {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}

func parseMaxSubmissions(raw string) int {
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	if value < 0 {
		return 0
	}
	return value
}

func parseMaxParallel(raw string) int {
	if raw == "" {
		return 1
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 1
	}
	return value
}

func parseBool(raw string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && value
}

func dockerConfigFromEnv() docker.Config {
	return docker.Config{
		Languages: map[execution.Language]docker.LanguageConfig{
			execution.LanguagePython: {
				Image:   envOrDefault("RUNNER_IMAGE", pythonDockerImage),
				Workdir: envOrDefault("RUNNER_WORKDIR", containerWorkdir),
			},
		},
		DefaultLimits: defaultLimitsFromEnv(),
		User:          envOrDefault("RUNNER_USER", sandboxUser),
		AllowNetwork:  parseBool(os.Getenv("RUNNER_ALLOW_NETWORK")),
	}
}

func defaultLimitsFromEnv() execution.RunLimits {
	memory := parseBytes(os.Getenv("RUNNER_MEMORY_LIMIT"))
	if memory == 0 {
		memory = defaultMemoryLimit
	}
	return execution.RunLimits{
		TimeLimit:        parseDuration(os.Getenv("RUNNER_TIME_LIMIT"), defaultTimeLimit),
		MemoryLimitBytes: memory,
	}
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseBytes(raw string) int64 {
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return 0
	}
	return value
}
