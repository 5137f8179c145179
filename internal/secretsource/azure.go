package secretsource

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// KeyVaultAPI is the subset of the Key Vault secrets client the resolver uses.
type KeyVaultAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// AzureConfig configures the azkv: source. The default credential chain applies
// unless managed identity is requested.
type AzureConfig struct {
	ManagedIdentity bool `yaml:"managed_identity,omitempty"`
	// ClientID selects a user-assigned managed identity.
	ClientID string `yaml:"client_id,omitempty"`
}

func (r *Resolver) fetchKeyVault(ctx context.Context, key string) ([]byte, error) {
	vaultURL, name, version, err := splitKeyVault(key)
	if err != nil {
		return nil, err
	}
	client, err := r.keyVaultClient(vaultURL)
	if err != nil {
		return nil, err
	}

	resp, err := client.GetSecret(ctx, name, version, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) {
			switch respErr.StatusCode {
			case http.StatusNotFound:
				return nil, fmt.Errorf("secret %s not found in %s: %w", name, vaultURL, err)
			case http.StatusUnauthorized, http.StatusForbidden:
				return nil, fmt.Errorf("access to secret %s in %s denied: %w", name, vaultURL, err)
			}
		}
		return nil, err
	}
	if resp.Value == nil {
		return nil, fmt.Errorf("secret %s has no value", name)
	}
	return []byte(*resp.Value), nil
}

func (r *Resolver) keyVaultClient(vaultURL string) (KeyVaultAPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.keyVaults[vaultURL]; ok {
		return c, nil
	}
	c, err := r.newKeyVault(vaultURL)
	if err != nil {
		return nil, err
	}
	r.keyVaults[vaultURL] = c
	return c, nil
}

func (r *Resolver) createKeyVaultClient(vaultURL string) (KeyVaultAPI, error) {
	var cred azcore.TokenCredential
	var err error

	if r.cfg.Azure.ManagedIdentity {
		var opts *azidentity.ManagedIdentityCredentialOptions
		if r.cfg.Azure.ClientID != "" {
			opts = &azidentity.ManagedIdentityCredentialOptions{
				ID: azidentity.ClientID(r.cfg.Azure.ClientID),
			}
		}
		cred, err = azidentity.NewManagedIdentityCredential(opts)
	} else {
		cred, err = azidentity.NewDefaultAzureCredential(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}
	return client, nil
}
