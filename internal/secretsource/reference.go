package secretsource

import (
	"fmt"
	"strings"
)

// Reference schemes.
const (
	SchemeEnv     = "env"
	SchemeFile    = "file"
	SchemeKeyring = "keyring"
	SchemeAWSSM   = "awssm"
	SchemeSSM     = "ssm"
	SchemeAzureKV = "azkv"
	SchemeGCPSM   = "gcpsm"
)

var schemes = map[string]bool{
	SchemeEnv:     true,
	SchemeFile:    true,
	SchemeKeyring: true,
	SchemeAWSSM:   true,
	SchemeSSM:     true,
	SchemeAzureKV: true,
	SchemeGCPSM:   true,
}

// Reference is a parsed secret reference such as "awssm:prod/servicenow#password".
type Reference struct {
	Scheme string
	Key    string
	// Field is a gjson path into a JSON payload. Empty means the whole payload.
	Field string
}

// ParseReference parses "scheme:key[#field]". env references take no field.
func ParseReference(ref string) (Reference, error) {
	scheme, rest, ok := strings.Cut(strings.TrimSpace(ref), ":")
	if !ok || scheme == "" {
		return Reference{}, fmt.Errorf("secret reference %q has no scheme", ref)
	}
	scheme = strings.ToLower(scheme)
	if !schemes[scheme] {
		return Reference{}, fmt.Errorf("unsupported secret reference scheme %q", scheme)
	}

	r := Reference{Scheme: scheme, Key: rest}
	if scheme != SchemeEnv {
		if idx := strings.LastIndex(rest, "#"); idx != -1 {
			r.Key, r.Field = rest[:idx], rest[idx+1:]
		}
	}
	if r.Key == "" {
		return Reference{}, fmt.Errorf("secret reference %q has no key", ref)
	}
	return r, nil
}

// String returns the reference in its parsed form.
func (r Reference) String() string {
	if r.Field == "" {
		return r.Scheme + ":" + r.Key
	}
	return r.Scheme + ":" + r.Key + "#" + r.Field
}

// splitKeyring splits "SERVICE/ACCOUNT" on the last slash so services may
// contain slashes.
func splitKeyring(key string) (service, account string, err error) {
	idx := strings.LastIndex(key, "/")
	if idx <= 0 || idx == len(key)-1 {
		return "", "", fmt.Errorf("keyring reference must be SERVICE/ACCOUNT")
	}
	return key[:idx], key[idx+1:], nil
}

// splitKeyVault splits "VAULT/NAME[/VERSION]". VAULT is either a bare vault name
// or a host such as "myvault.vault.azure.net".
func splitKeyVault(key string) (vaultURL, name, version string, err error) {
	parts := strings.Split(key, "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("key vault reference must be VAULT/NAME[/VERSION]")
	}
	vault := parts[0]
	if !strings.Contains(vault, ".") {
		vault += ".vault.azure.net"
	}
	if len(parts) == 3 {
		version = parts[2]
	}
	return "https://" + vault, parts[1], version, nil
}

// gcpVersionName expands "projects/P/secrets/S" to its latest version.
func gcpVersionName(key string) (string, error) {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	switch {
	case len(parts) == 4 && parts[0] == "projects" && parts[2] == "secrets":
		return strings.Join(parts, "/") + "/versions/latest", nil
	case len(parts) == 6 && parts[0] == "projects" && parts[2] == "secrets" && parts[4] == "versions":
		return strings.Join(parts, "/"), nil
	default:
		return "", fmt.Errorf("secret manager reference must be projects/P/secrets/S[/versions/V]")
	}
}
