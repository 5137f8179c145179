package secretsource

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// SecretManagerAPI is the subset of the GCP Secret Manager client the resolver
// uses.
type SecretManagerAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// GCPConfig configures the gcpsm: source. Application default credentials
// apply when CredentialsFile is empty.
type GCPConfig struct {
	CredentialsFile string `yaml:"credentials_file,omitempty"`
}

func (r *Resolver) fetchSecretManager(ctx context.Context, key string) ([]byte, error) {
	name, err := gcpVersionName(key)
	if err != nil {
		return nil, err
	}
	client, err := r.secretManagerClient(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		switch status.Code(err) {
		case codes.NotFound:
			return nil, fmt.Errorf("secret version %s not found: %w", name, err)
		case codes.PermissionDenied, codes.Unauthenticated:
			return nil, fmt.Errorf("access to %s denied: %w", name, err)
		}
		return nil, err
	}
	if resp.GetPayload() == nil {
		return nil, fmt.Errorf("secret version %s has no payload", name)
	}
	return resp.GetPayload().GetData(), nil
}

func (r *Resolver) secretManagerClient(ctx context.Context) (SecretManagerAPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.secretManager != nil {
		return r.secretManager, nil
	}

	var clientOptions []option.ClientOption
	if r.cfg.GCP.CredentialsFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(r.cfg.GCP.CredentialsFile))
	}
	client, err := secretmanager.NewClient(ctx, clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	r.secretManager = client
	r.closers = append(r.closers, client)
	return client, nil
}
