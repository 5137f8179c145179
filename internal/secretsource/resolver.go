// Package secretsource resolves the secret references in an invocation file to
// protected secrets. Cloud clients are created on first use and can be replaced
// with fakes through options.
package secretsource

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/tidwall/gjson"

	dserrors "github.com/systmms/snowcred/internal/errors"
	"github.com/systmms/snowcred/internal/logging"
	"github.com/systmms/snowcred/internal/secure"
)

// Config selects regions, profiles and credentials for the cloud sources.
type Config struct {
	AWS   AWSConfig   `yaml:"aws,omitempty"`
	Azure AzureConfig `yaml:"azure,omitempty"`
	GCP   GCPConfig   `yaml:"gcp,omitempty"`
}

// Resolver turns secret references into secrets.
type Resolver struct {
	cfg    Config
	logger *logging.Logger

	lookupEnv func(string) (string, bool)
	readFile  func(string) ([]byte, error)
	keyring   KeyringAPI

	mu             sync.Mutex
	secretsManager SecretsManagerAPI
	ssm            SSMAPI
	newKeyVault    func(vaultURL string) (KeyVaultAPI, error)
	keyVaults      map[string]KeyVaultAPI
	secretManager  SecretManagerAPI
	closers        []io.Closer
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithConfig sets the cloud source configuration.
func WithConfig(cfg Config) Option {
	return func(r *Resolver) {
		r.cfg = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithLookupEnv replaces os.LookupEnv (for testing).
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(r *Resolver) {
		r.lookupEnv = fn
	}
}

// WithKeyring replaces the OS keyring (for testing).
func WithKeyring(k KeyringAPI) Option {
	return func(r *Resolver) {
		r.keyring = k
	}
}

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing).
func WithSecretsManagerClient(c SecretsManagerAPI) Option {
	return func(r *Resolver) {
		r.secretsManager = c
	}
}

// WithSSMClient sets a custom SSM client (for testing).
func WithSSMClient(c SSMAPI) Option {
	return func(r *Resolver) {
		r.ssm = c
	}
}

// WithKeyVaultClientFactory sets how Key Vault clients are created per vault
// URL (for testing).
func WithKeyVaultClientFactory(fn func(vaultURL string) (KeyVaultAPI, error)) Option {
	return func(r *Resolver) {
		r.newKeyVault = fn
	}
}

// WithSecretManagerClient sets a custom GCP Secret Manager client (for testing).
func WithSecretManagerClient(c SecretManagerAPI) Option {
	return func(r *Resolver) {
		r.secretManager = c
	}
}

// NewResolver creates a Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		logger:    logging.New(false, true).WithWriter(io.Discard),
		lookupEnv: os.LookupEnv,
		readFile:  os.ReadFile,
		keyring:   osKeyring{},
		keyVaults: make(map[string]KeyVaultAPI),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.newKeyVault == nil {
		r.newKeyVault = r.createKeyVaultClient
	}
	return r
}

// Resolve fetches the secret ref points to. An empty ref yields an empty secret,
// which the action rejects if it needs one. Failures are reported as
// CodeMandatoryParameterMissing and name the reference, never a value.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*secure.Secret, error) {
	if ref == "" {
		return secure.NewSecret(nil), nil
	}
	parsed, err := ParseReference(ref)
	if err != nil {
		return nil, dserrors.Wrap(dserrors.CodeMandatoryParameterMissing, err, "Invalid secret reference: %v", err)
	}

	r.logger.Debug("Resolving secret reference %s", parsed)
	data, err := r.fetch(ctx, parsed)
	if err != nil {
		providerErr := dserrors.ProviderError(parsed.Scheme, "resolve", err)
		if ue, ok := providerErr.(dserrors.UserError); ok && ue.Suggestion != "" {
			r.logger.Warn("%s: %s", ue.Message, ue.Suggestion)
		}
		return nil, dserrors.Wrap(dserrors.CodeMandatoryParameterMissing, providerErr,
			"Secret reference '%s' could not be resolved: %v", parsed, err)
	}

	if parsed.Field != "" {
		field, err := selectField(data, parsed.Field)
		secure.Wipe(data)
		if err != nil {
			return nil, dserrors.Wrap(dserrors.CodeMandatoryParameterMissing, err,
				"Secret reference '%s' could not be resolved: %v", parsed, err)
		}
		data = field
	}
	return secure.NewSecret(data), nil
}

// Close releases cloud clients created by the resolver.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.closers = nil
	return firstErr
}

func (r *Resolver) fetch(ctx context.Context, ref Reference) ([]byte, error) {
	switch ref.Scheme {
	case SchemeEnv:
		value, ok := r.lookupEnv(ref.Key)
		if !ok {
			return nil, fmt.Errorf("environment variable %s is not set", ref.Key)
		}
		return []byte(value), nil
	case SchemeFile:
		data, err := r.readFile(ref.Key)
		if err != nil {
			return nil, err
		}
		return trimNewline(data), nil
	case SchemeKeyring:
		return r.fetchKeyring(ref.Key)
	case SchemeAWSSM:
		return r.fetchSecretsManager(ctx, ref.Key)
	case SchemeSSM:
		return r.fetchParameter(ctx, ref.Key)
	case SchemeAzureKV:
		return r.fetchKeyVault(ctx, ref.Key)
	case SchemeGCPSM:
		return r.fetchSecretManager(ctx, ref.Key)
	default:
		return nil, fmt.Errorf("unsupported secret reference scheme %q", ref.Scheme)
	}
}

// selectField extracts path from a JSON payload with gjson. String values are
// returned unquoted, anything else as raw JSON.
func selectField(data []byte, path string) ([]byte, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("payload is not JSON, cannot select field %q", path)
	}
	result := gjson.GetBytes(data, path)
	if !result.Exists() {
		return nil, fmt.Errorf("field %q not found in payload", path)
	}
	if result.Type == gjson.String {
		return []byte(result.Str), nil
	}
	return []byte(result.Raw), nil
}

// trimNewline drops one trailing "\n" or "\r\n", as written by most editors.
func trimNewline(b []byte) []byte {
	n := len(b)
	if n > 0 && b[n-1] == '\n' {
		n--
		if n > 0 && b[n-1] == '\r' {
			n--
		}
	}
	return b[:n]
}
