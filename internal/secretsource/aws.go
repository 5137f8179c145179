package secretsource

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/systmms/snowcred/internal/secure"
)

// SecretsManagerAPI is the subset of the Secrets Manager client the resolver uses.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SSMAPI is the subset of the SSM client the resolver uses.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// AWSConfig configures the awssm: and ssm: sources. Without any field set the
// default credential chain and region apply.
type AWSConfig struct {
	Region  string `yaml:"region,omitempty"`
	Profile string `yaml:"profile,omitempty"`
	// Endpoint overrides the service endpoint, e.g. for LocalStack.
	Endpoint string `yaml:"endpoint,omitempty"`
	// AccessKeyID and SecretAccessKey are env:, file: or keyring: references
	// for static credentials.
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
}

func (r *Resolver) fetchSecretsManager(ctx context.Context, key string) ([]byte, error) {
	client, err := r.secretsManagerClient(ctx)
	if err != nil {
		return nil, err
	}

	result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(key),
	})
	if err != nil {
		var notFound *smtypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("secret %s not found: %w", key, err)
		}
		return nil, err
	}
	switch {
	case result.SecretString != nil:
		return []byte(*result.SecretString), nil
	case result.SecretBinary != nil:
		return result.SecretBinary, nil
	default:
		return nil, fmt.Errorf("secret %s has no value", key)
	}
}

func (r *Resolver) fetchParameter(ctx context.Context, key string) ([]byte, error) {
	client, err := r.ssmClient(ctx)
	if err != nil {
		return nil, err
	}

	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(key),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *ssmtypes.ParameterNotFound
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("parameter %s not found: %w", key, err)
		}
		return nil, err
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		return nil, fmt.Errorf("parameter %s has no value", key)
	}
	return []byte(*result.Parameter.Value), nil
}

func (r *Resolver) secretsManagerClient(ctx context.Context) (SecretsManagerAPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.secretsManager != nil {
		return r.secretsManager, nil
	}
	cfg, err := r.loadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}

	var clientOpts []func(*secretsmanager.Options)
	if endpoint := r.cfg.AWS.Endpoint; endpoint != "" {
		clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	r.secretsManager = secretsmanager.NewFromConfig(cfg, clientOpts...)
	return r.secretsManager, nil
}

func (r *Resolver) ssmClient(ctx context.Context) (SSMAPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ssm != nil {
		return r.ssm, nil
	}
	cfg, err := r.loadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}

	var clientOpts []func(*ssm.Options)
	if endpoint := r.cfg.AWS.Endpoint; endpoint != "" {
		clientOpts = append(clientOpts, func(o *ssm.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	r.ssm = ssm.NewFromConfig(cfg, clientOpts...)
	return r.ssm, nil
}

// loadAWSConfig builds the shared SDK config. Callers hold r.mu.
func (r *Resolver) loadAWSConfig(ctx context.Context) (aws.Config, error) {
	c := r.cfg.AWS

	var configOpts []func(*awsconfig.LoadOptions) error
	if c.Region != "" {
		configOpts = append(configOpts, awsconfig.WithRegion(c.Region))
	}
	if c.Profile != "" {
		configOpts = append(configOpts, awsconfig.WithSharedConfigProfile(c.Profile))
	}
	if c.AccessKeyID != "" || c.SecretAccessKey != "" {
		provider, err := r.staticCredentials(ctx, c.AccessKeyID, c.SecretAccessKey)
		if err != nil {
			return aws.Config{}, err
		}
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(provider))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// staticCredentials resolves the key pair references. Only local schemes are
// allowed so credential lookup cannot recurse into AWS.
func (r *Resolver) staticCredentials(ctx context.Context, idRef, secretRef string) (credentials.StaticCredentialsProvider, error) {
	var values [2]string
	for i, ref := range []string{idRef, secretRef} {
		parsed, err := ParseReference(ref)
		if err != nil {
			return credentials.StaticCredentialsProvider{}, fmt.Errorf("aws static credentials: %w", err)
		}
		if parsed.Scheme != SchemeEnv && parsed.Scheme != SchemeFile && parsed.Scheme != SchemeKeyring {
			return credentials.StaticCredentialsProvider{}, fmt.Errorf("aws static credentials must use env:, file: or keyring: references, got %s:", parsed.Scheme)
		}
		data, err := r.fetch(ctx, parsed)
		if err != nil {
			return credentials.StaticCredentialsProvider{}, fmt.Errorf("aws static credentials: %w", err)
		}
		values[i] = string(data)
		secure.Wipe(data)
	}
	return credentials.NewStaticCredentialsProvider(values[0], values[1], ""), nil
}
