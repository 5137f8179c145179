package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// ProviderError enhances secret source errors with context
func ProviderError(source string, operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s secret source error during %s", source, operation),
		Suggestion: getProviderSuggestion(source, err),
		Err:        err,
	}
}

// getProviderSuggestion returns helpful suggestions based on the secret source and error
func getProviderSuggestion(source string, err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()

	switch source {
	case "env":
		if strings.Contains(errStr, "not set") {
			return "Export the variable in the environment the host launches snowcred from"
		}

	case "file":
		if strings.Contains(errStr, "no such file or directory") {
			return "Verify the secret file path. Mounted secrets are usually under /run/secrets"
		}
		if strings.Contains(errStr, "permission denied") {
			return "Make the secret file readable by the user running snowcred"
		}

	case "keyring":
		if strings.Contains(errStr, "not found") {
			return "Store the item first, e.g. with 'secret-tool store' or Keychain Access"
		}
		if strings.Contains(errStr, "SERVICE/ACCOUNT") {
			return "Use keyring:SERVICE/ACCOUNT"
		}

	case "awssm", "ssm":
		if strings.Contains(errStr, "credentials") || strings.Contains(errStr, "authorization") {
			return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
		}
		if strings.Contains(errStr, "AccessDenied") {
			if source == "ssm" {
				return "Check IAM permissions for ssm:GetParameter and kms:Decrypt"
			}
			return "Check IAM permissions for secretsmanager:GetSecretValue"
		}
		if strings.Contains(errStr, "not found") {
			return "Verify the secret name and region"
		}
		if strings.Contains(errStr, "ThrottlingException") {
			return "AWS rate limit exceeded. Wait a moment and try again"
		}

	case "azkv":
		if strings.Contains(errStr, "denied") {
			return "Grant the identity 'Key Vault Secrets User' on the vault"
		}
		if strings.Contains(errStr, "not found") {
			return "Verify the vault and secret names with 'az keyvault secret list'"
		}
		if strings.Contains(errStr, "credential") {
			return "Run 'az login' or configure a managed identity"
		}

	case "gcpsm":
		if strings.Contains(errStr, "denied") {
			return "Check IAM permissions: secretmanager.versions.access"
		}
		if strings.Contains(errStr, "not found") {
			return "Verify the project, secret and version with 'gcloud secrets versions list'"
		}
		if strings.Contains(errStr, "credentials") {
			return "Run 'gcloud auth application-default login' or set credentials_file"
		}
	}

	// Generic suggestions
	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and secret source configuration"
	}

	return ""
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Unwrap to get the root cause
	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	// Already a user-friendly error
	var userErr UserError
	if errors.As(err, &userErr) {
		return err
	}
	var configErr ConfigError
	if errors.As(err, &configErr) {
		return err
	}
	var pluginErr *PluginError
	if errors.As(err, &pluginErr) {
		return err
	}

	// Simplify common technical errors
	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "json:") {
		return ConfigError{
			Message:    "Invalid JSON format",
			Suggestion: "Validate your JSON at https://jsonlint.com/",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	// Return original error if we can't simplify it
	return err
}
