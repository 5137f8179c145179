package action

import (
	"context"

	dserrors "github.com/systmms/snowcred/internal/errors"
	"github.com/systmms/snowcred/internal/logging"
	"github.com/systmms/snowcred/internal/secure"
	"github.com/systmms/snowcred/internal/servicenow"
)

// Session is the state shared by the steps of one action run.
type Session struct {
	Client     *servicenow.Client
	Logger     *logging.Logger
	Address    string
	AuthHeader string
	SysID      string
	NewSecret  *secure.Secret
}

// Step is the work an action does once the target user's sys_id is known.
type Step interface {
	Run(ctx context.Context, s *Session) error
}

// SetPassword patches the resolved user record with the new secret. The response
// must echo user_password; otherwise the action fails with FailureCode.
type SetPassword struct {
	Label       string
	FailureCode dserrors.Code
}

// Run implements Step.
func (p SetPassword) Run(ctx context.Context, s *Session) error {
	s.Logger.MethodStart("setPassword")
	defer s.Logger.MethodEnd("setPassword")

	address, err := servicenow.NormalizeAddress(s.Address, servicenow.UserRecordPath(s.SysID))
	if err != nil {
		return dserrors.Wrap(dserrors.CodeParameterInvalidURI, err, "Parameter 'Address' is not a valid URI: %v", err)
	}
	s.Logger.Info("Generated ServiceNow URL: %s", address)

	var body []byte
	err = s.NewSecret.Reveal(func(plaintext []byte) error {
		var encErr error
		body, encErr = servicenow.EncodeSetPasswordBody(plaintext)
		return encErr
	})
	defer secure.Wipe(body)
	if err != nil {
		return dserrors.Wrap(dserrors.CodeStandardDefault, err, "%s request could not be built", p.Label)
	}

	s.Logger.Info("Sending %s request", p.Label)
	outcome := s.Client.SetPassword(ctx, address, servicenow.SetPasswordQuery{}, body, s.AuthHeader)
	if _, err := servicenow.Classify(outcome, servicenow.PasswordAckDecoder(p.FailureCode, p.Label)); err != nil {
		return err
	}
	s.Logger.Info("%s response received", p.Label)
	return nil
}
