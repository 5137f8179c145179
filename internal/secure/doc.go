// Package secure holds credentials for the duration of a single action.
//
// A Secret wraps a memguard enclave so the value is encrypted at rest in memory
// and protected from swapping. The plaintext is only reachable inside a Reveal
// callback, and the locked buffer backing it is wiped when the callback returns:
//
//	secret := secure.NewSecret(password)
//	defer secret.Destroy()
//
//	err := secret.Reveal(func(plaintext []byte) error {
//	    header = servicenow.BasicAuthHeader(username, plaintext)
//	    return nil
//	})
//
// Anything derived from the plaintext (auth headers, request bodies) is the
// caller's responsibility; use Wipe on byte slices once they have been sent.
//
// Call memguard.Purge in main to wipe the enclave session key on exit.
package secure
