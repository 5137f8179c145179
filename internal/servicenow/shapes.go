package servicenow

import (
	"encoding/json"
)

// SysIDRecord is one row of a sys_user lookup restricted to sys_id.
type SysIDRecord struct {
	SysID *string `json:"sys_id"`
}

// SysIDResponse is the body of GET /api/now/table/sys_user.
type SysIDResponse struct {
	Result []SysIDRecord `json:"result"`
}

// UserPasswordRecord is the echo of a password update. The value is an opaque
// hash, never the plaintext.
type UserPasswordRecord struct {
	UserPassword *string `json:"user_password"`
}

// UserPasswordResponse is the body of PATCH /api/now/table/sys_user/{sys_id}.
type UserPasswordResponse struct {
	Result *UserPasswordRecord `json:"result"`
}

// SetPasswordRequest is the PATCH body that sets a new password.
type SetPasswordRequest struct {
	UserPassword string `json:"user_password"`
}

// EncodeSetPasswordBody serializes the password update body. The caller owns the
// returned bytes and must wipe them once the request is sent. The intermediate
// string handed to encoding/json cannot be wiped and is left to the GC.
func EncodeSetPasswordBody(newSecret []byte) ([]byte, error) {
	return json.Marshal(SetPasswordRequest{UserPassword: string(newSecret)})
}
