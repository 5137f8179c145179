package servicenow

import (
	"fmt"
	"net/url"
	"strings"
)

// UserTablePath is the Table API resource for user records.
const UserTablePath = "/api/now/table/sys_user"

// UserRecordPath returns the resource path of a single user record.
func UserRecordPath(sysID string) string {
	return UserTablePath + "/" + sysID
}

// NormalizeAddress rewrites raw to scheme https, removes any explicit port and
// replaces the path with path. Host, user info, query and fragment are kept.
// Bare host names ("dev1234.service-now.com") are accepted.
//
// Normalizing an already normalized address returns it unchanged.
func NormalizeAddress(raw, path string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("address is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + strings.TrimPrefix(raw, "//")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid address: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("address %q has no host", raw)
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	u.Scheme = "https"
	u.Host = host
	u.Opaque = ""
	u.Path = path
	u.RawPath = ""
	return u.String(), nil
}
