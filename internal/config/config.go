// Package config provides configuration parsing and validation for the
// event-push service. Flags are bound in main; Load fills anything left
// empty from the environment (including a local .env file), and Validate
// checks the result.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration parameters for the service.
//
// TenantURL and APIToken may stay empty: direct calls are allowed to carry
// their own coordinates, and per-record validation catches the gap then.
type Config struct {
	Port      string `validate:"required"`
	TenantURL string `validate:"omitempty,url"`
	APIToken  string
	AWSRegion string `validate:"required"`

	// Kafka ingest is optional; topic and group are only required once
	// brokers are configured.
	KafkaBrokers string
	KafkaTopic   string `validate:"required_with=KafkaBrokers"`
	KafkaGroupID string `validate:"required_with=KafkaBrokers"`

	// RedisAddr enables the Redis-backed metrics collector when set.
	RedisAddr string
}

// flagNames maps struct fields to the flag a validation message should name.
var flagNames = map[string]string{
	"Port":         "port",
	"TenantURL":    "dt-tenant-url",
	"APIToken":     "dt-api-token",
	"AWSRegion":    "aws-region",
	"KafkaBrokers": "kafka-brokers",
	"KafkaTopic":   "kafka-topic",
	"KafkaGroupID": "kafka-group-id",
	"RedisAddr":    "redis-addr",
}

// Load fills empty fields from the environment. A .env file in the working
// directory is read first; explicit flag values always win.
func (c *Config) Load() {
	_ = godotenv.Load()

	fillEnv(&c.TenantURL, "DT_TENANT_URL")
	fillEnv(&c.APIToken, "DT_API_TOKEN")
	fillEnv(&c.AWSRegion, "AWS_REGION")
	fillEnv(&c.KafkaBrokers, "KAFKA_BROKERS")
	fillEnv(&c.RedisAddr, "REDIS_ADDR")
}

func fillEnv(field *string, key string) {
	if *field == "" {
		*field = os.Getenv(key)
	}
}

// Validate checks that the configuration is complete and well formed.
// Messages name the offending flag.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	first := errs[0]
	flag := flagNames[first.StructField()]
	if flag == "" {
		flag = first.StructField()
	}

	switch first.Tag() {
	case "required":
		return fmt.Errorf("%s cannot be empty", flag)
	case "required_with":
		return fmt.Errorf("%s cannot be empty when kafka-brokers is set", flag)
	case "url":
		return fmt.Errorf("%s must be a valid URL", flag)
	default:
		return fmt.Errorf("%s is invalid", flag)
	}
}

// MaskToken masks an API token for startup logs.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "***" + token[len(token)-4:]
}
