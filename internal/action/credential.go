package action

import (
	"github.com/systmms/snowcred/internal/account"
	"github.com/systmms/snowcred/internal/secure"
	"github.com/systmms/snowcred/internal/servicenow"
)

// Credential is a username and its secret. The secret is only revealed while
// the auth header is built.
type Credential struct {
	Username string
	Secret   *secure.Secret
}

// authHeader reveals the secret just long enough to build the basic auth header.
func (c Credential) authHeader() (string, error) {
	var header string
	err := c.Secret.Reveal(func(plaintext []byte) error {
		header = servicenow.BasicAuthHeader(c.Username, plaintext)
		return nil
	})
	return header, err
}

// Request carries the accounts handed over by the host. Reconcile is nil when
// the host supplied no reconcile account.
type Request struct {
	Target    *account.Account
	Reconcile *account.Account
}

// Destroy releases every secret in the request.
func (r Request) Destroy() {
	r.Target.Destroy()
	r.Reconcile.Destroy()
}

func (r Request) secrets() []*secure.Secret {
	var out []*secure.Secret
	for _, acct := range []*account.Account{r.Target, r.Reconcile} {
		if acct == nil {
			continue
		}
		out = append(out, acct.CurrentPassword, acct.NewPassword)
	}
	return out
}
