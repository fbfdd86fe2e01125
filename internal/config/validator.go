package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"fieldparty/internal/blob"
	"fieldparty/internal/codec"
	"fieldparty/internal/logging"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config key (e.g., "sessions.max_attempts")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

const (
	maxAttemptsCeiling = 100
	maxRetryBackoff    = time.Second
)

// ValidStorageDrivers returns the accepted storage.driver values
func ValidStorageDrivers() []string {
	return []string{"memory", "sqlite", "postgres"}
}

// ValidBlobDrivers returns the accepted blob.driver values
func ValidBlobDrivers() []string {
	return []string{string(blob.DriverFilesystem), string(blob.DriverS3), string(blob.DriverMemory)}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError
	errors = append(errors, c.validateStorage()...)
	errors = append(errors, c.validateSessions()...)
	errors = append(errors, c.validateBlob()...)
	errors = append(errors, c.validateLogging()...)
	return errors
}

func (c *Config) validateStorage() []ValidationError {
	var errors []ValidationError
	if !slices.Contains(ValidStorageDrivers(), c.Storage.Driver) {
		errors = append(errors, ValidationError{
			Field:   "storage.driver",
			Value:   c.Storage.Driver,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidStorageDrivers(), ", ")),
		})
	}
	if c.Storage.Driver == "sqlite" && strings.TrimSpace(c.Storage.SQLitePath) == "" {
		errors = append(errors, ValidationError{
			Field:   "storage.sqlite_path",
			Value:   c.Storage.SQLitePath,
			Message: "required when storage.driver is sqlite",
		})
	}
	if _, err := codec.New(codec.Name(c.Storage.Codec)); err != nil {
		var names []string
		for _, n := range codec.Names() {
			names = append(names, string(n))
		}
		errors = append(errors, ValidationError{
			Field:   "storage.codec",
			Value:   c.Storage.Codec,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(names, ", ")),
		})
	}
	return errors
}

func (c *Config) validateSessions() []ValidationError {
	var errors []ValidationError
	if c.Sessions.MaxAttempts < 1 || c.Sessions.MaxAttempts > maxAttemptsCeiling {
		errors = append(errors, ValidationError{
			Field:   "sessions.max_attempts",
			Value:   c.Sessions.MaxAttempts,
			Message: fmt.Sprintf("must be between 1 and %d", maxAttemptsCeiling),
		})
	}
	if c.Sessions.RetryBackoff < 0 || c.Sessions.RetryBackoff > maxRetryBackoff {
		errors = append(errors, ValidationError{
			Field:   "sessions.retry_backoff",
			Value:   c.Sessions.RetryBackoff,
			Message: fmt.Sprintf("must be between 0 and %s", maxRetryBackoff),
		})
	}
	return errors
}

func (c *Config) validateBlob() []ValidationError {
	var errors []ValidationError
	if !slices.Contains(ValidBlobDrivers(), string(c.Blob.Driver)) {
		errors = append(errors, ValidationError{
			Field:   "blob.driver",
			Value:   c.Blob.Driver,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBlobDrivers(), ", ")),
		})
	}
	if c.Blob.Driver == blob.DriverS3 && strings.TrimSpace(c.Blob.S3.Bucket) == "" {
		errors = append(errors, ValidationError{
			Field:   "blob.s3.bucket",
			Value:   c.Blob.S3.Bucket,
			Message: "required when blob.driver is s3",
		})
	}
	if c.Blob.S3.SecretAccessKey != "" && c.Blob.S3.AccessKeyID == "" {
		errors = append(errors, ValidationError{
			Field:   "blob.s3.access_key_id",
			Value:   "",
			Message: "required when blob.s3.secret_access_key is set",
		})
	}
	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError
	level := strings.ToUpper(c.Logging.Level)
	if level != "" && !slices.Contains(logging.ValidLevels(), level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.ToLower(strings.Join(logging.ValidLevels(), ", "))),
		})
	}
	return errors
}
