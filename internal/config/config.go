package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	dserrors "github.com/systmms/snowcred/internal/errors"
	"github.com/systmms/snowcred/internal/logging"
	"github.com/systmms/snowcred/internal/secretsource"
)

//go:embed schema.json
var invocationSchema string

// Config holds the runtime configuration
type Config struct {
	Path       string
	Logger     *logging.Logger
	Invocation *Invocation

	// Output is the result format: "text" or "json".
	Output string
	// MetricsFile, when set, receives the metrics in textfile format after an
	// action.
	MetricsFile string
}

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// Invocation is the file a host hands to snowcred: the accounts an action runs
// against. Secrets are never inlined; they are references resolved at run time.
type Invocation struct {
	Version   int          `yaml:"version"`
	TimeoutMs int          `yaml:"timeout_ms,omitempty"`
	UserAgent string       `yaml:"user_agent,omitempty"`
	Target    *AccountSpec `yaml:"target"`
	Reconcile *AccountSpec `yaml:"reconcile,omitempty"`

	// Sources configures the cloud secret sources the references may use.
	Sources secretsource.Config `yaml:"sources,omitempty"`
}

// AccountSpec describes one account. Password and NewPassword are secret
// references such as "env:SNOW_PASSWORD" or "awssm:prod/servicenow#password".
type AccountSpec struct {
	Properties  map[string]string `yaml:"properties"`
	Password    string            `yaml:"password,omitempty"`
	NewPassword string            `yaml:"newPassword,omitempty"`
}

// Timeout returns the per-action deadline, or zero when the host set none.
func (i *Invocation) Timeout() time.Duration {
	if i == nil || i.TimeoutMs <= 0 {
		return 0
	}
	return time.Duration(i.TimeoutMs) * time.Millisecond
}

// Load reads, validates and parses the invocation file
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return dserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "invocation file not found",
				Suggestion: "Pass the file written by the host with --config",
			}
		}
		return dserrors.UserError{
			Message:    "Failed to read invocation file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	inv, err := Parse(data)
	if err != nil {
		return err
	}
	if c.Logger != nil {
		c.Logger.Debug("Loaded invocation file %s", c.Path)
	}
	c.Invocation = inv
	return nil
}

// Parse validates data against the invocation schema and decodes it.
func Parse(data []byte) (*Invocation, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, dserrors.ConfigError{
			Message:    "invalid YAML syntax in invocation file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}
	if raw == nil {
		return nil, dserrors.ConfigError{
			Message:    "invocation file is empty",
			Suggestion: "Describe at least the target account",
		}
	}

	if err := validateWithSchema(raw); err != nil {
		return nil, err
	}

	var inv Invocation
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, dserrors.ConfigError{
			Message:    fmt.Sprintf("invalid invocation file: %v", err),
			Suggestion: "Check the field types against the documented format",
		}
	}

	if inv.Version != 0 {
		return nil, dserrors.ConfigError{
			Field:      "version",
			Value:      inv.Version,
			Message:    "unsupported invocation file version",
			Suggestion: "Set 'version: 0' or leave it out",
		}
	}
	return &inv, nil
}

// validateWithSchema checks a decoded YAML document against the embedded schema
func validateWithSchema(doc interface{}) error {
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return dserrors.ConfigError{
			Message:    "invocation file cannot be represented as JSON",
			Suggestion: "Use string keys and plain scalar values only",
		}
	}

	schemaLoader := gojsonschema.NewStringLoader(invocationSchema)
	documentLoader := gojsonschema.NewBytesLoader(jsonData)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return dserrors.ConfigError{
			Message:    fmt.Sprintf("schema validation failed:\n  - %s", strings.Join(errorMessages, "\n  - ")),
			Suggestion: "Secret fields take a reference like env:NAME, file:PATH, keyring:SERVICE/ACCOUNT, awssm:, ssm:, azkv: or gcpsm:",
		}
	}

	return nil
}
