package servicenow

import (
	"encoding/base64"

	"github.com/systmms/snowcred/internal/secure"
)

// BasicAuthHeader builds the Authorization header value for username and the
// revealed secret. The joined plaintext is wiped before returning; the header
// itself should only live for the request it authenticates.
func BasicAuthHeader(username string, secret []byte) string {
	joined := make([]byte, 0, len(username)+1+len(secret))
	joined = append(joined, username...)
	joined = append(joined, ':')
	joined = append(joined, secret...)
	defer secure.Wipe(joined)

	return "Basic " + base64.StdEncoding.EncodeToString(joined)
}
