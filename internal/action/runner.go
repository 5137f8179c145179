package action

import (
	"context"
	"io"
	"time"

	"github.com/systmms/snowcred/internal/account"
	dserrors "github.com/systmms/snowcred/internal/errors"
	"github.com/systmms/snowcred/internal/logging"
	"github.com/systmms/snowcred/internal/secure"
	"github.com/systmms/snowcred/internal/servicenow"
)

// Recorder receives one observation per finished action.
type Recorder interface {
	RecordAction(action string, code int, durationSeconds float64)
}

type nopRecorder struct{}

func (nopRecorder) RecordAction(string, int, float64) {}

// Runner executes actions. It keeps no state between runs.
type Runner struct {
	client   *servicenow.Client
	logger   *logging.Logger
	recorder Recorder
}

// Option configures a Runner.
type Option func(*Runner)

// WithClient sets the ServiceNow client.
func WithClient(c *servicenow.Client) Option {
	return func(r *Runner) {
		if c != nil {
			r.client = c
		}
	}
}

// WithLogger sets the logger. Secrets from every request are registered with it
// for redaction.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// NewRunner creates a Runner. The default client has no timeout of its own.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		logger:   logging.New(false, true).WithWriter(io.Discard),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = servicenow.NewClient(servicenow.WithLogger(r.logger))
	}
	return r
}

// Run executes a against the accounts in req and returns the result for the
// host. Run takes ownership of req: every secret in it is destroyed before Run
// returns, whatever the outcome.
func (r *Runner) Run(ctx context.Context, a Action, req Request) Result {
	defer req.Destroy()

	r.logger.MethodStart(a.String())
	defer r.logger.MethodEnd(a.String())

	p, ok := plans[a]
	if !ok {
		return Result{Code: dserrors.CodeStandardDefault.Int(), Message: "unknown action " + a.String()}
	}

	start := time.Now()
	err := r.run(ctx, p, req)
	result := resultOf(p, err)
	// Server bodies end up in messages and may echo what was sent.
	result.Message = secure.Scrub(result.Message, req.secrets()...)
	r.recorder.RecordAction(a.String(), result.Code, time.Since(start).Seconds())

	if err != nil {
		r.logger.Error("Received error: %s", result.Message)
	} else {
		r.logger.Info("%s", result.Message)
	}
	return result
}

func (r *Runner) run(ctx context.Context, p plan, req Request) error {
	r.protect(req)
	r.logger.Info("Attempting to fetch account properties")

	if req.Target == nil {
		return dserrors.New(dserrors.CodeNoSuchEntity, "Target account was not supplied")
	}
	username, err := account.GetMandatoryParameter(account.PropUsername, req.Target.Properties)
	if err != nil {
		return err
	}
	if err := account.ValidateParameterLength(username, "Username", account.MaxUsernameLength); err != nil {
		return err
	}
	address, err := account.GetMandatoryParameter(account.PropAddress, req.Target.Properties)
	if err != nil {
		return err
	}
	if err := account.ValidateURI(address, "Address"); err != nil {
		return err
	}

	auth := Credential{Username: username, Secret: req.Target.CurrentPassword}
	if p.authByReconcile {
		if req.Reconcile == nil {
			return dserrors.New(dserrors.CodeNoSuchEntity, "Reconcile account was not supplied")
		}
		reconcileUsername, err := account.GetMandatoryParameter(account.PropUsername, req.Reconcile.Properties)
		if err != nil {
			return err
		}
		if err := account.ValidateParameterLength(reconcileUsername, "Username", account.MaxUsernameLength); err != nil {
			return err
		}
		auth = Credential{Username: reconcileUsername, Secret: req.Reconcile.CurrentPassword}
	}

	switch {
	case p.authByReconcile:
		if err := account.ValidatePasswordIsNotEmpty(auth.Secret, "Reconcile Password"); err != nil {
			return err
		}
	case p.needsCurrent:
		if err := account.ValidatePasswordIsNotEmpty(auth.Secret, "Password"); err != nil {
			return err
		}
	}
	if p.needsNew {
		if err := account.ValidatePasswordIsNotEmpty(req.Target.NewPassword, "New Password"); err != nil {
			return err
		}
	}

	s := &Session{
		Client:    r.client,
		Logger:    r.logger,
		Address:   address,
		NewSecret: req.Target.NewPassword,
	}
	defer func() { s.AuthHeader = "" }()

	if err := r.resolveSysID(ctx, s, auth, username); err != nil {
		return err
	}
	if p.step == nil {
		return nil
	}
	return p.step.Run(ctx, s)
}

// resolveSysID authenticates as auth and looks up the sys_id of lookupUser. On
// success s carries the auth header and the sys_id for the next step.
func (r *Runner) resolveSysID(ctx context.Context, s *Session, auth Credential, lookupUser string) error {
	r.logger.MethodStart("resolveSysID")
	defer r.logger.MethodEnd("resolveSysID")

	address, err := servicenow.NormalizeAddress(s.Address, servicenow.UserTablePath)
	if err != nil {
		return dserrors.Wrap(dserrors.CodeParameterInvalidURI, err, "Parameter 'Address' is not a valid URI: %v", err)
	}
	r.logger.Info("Generated ServiceNow URL: %s", address)

	header, err := auth.authHeader()
	if err != nil {
		return dserrors.Wrap(dserrors.CodeParameterPasswordEmpty, err, "Password for '%s' could not be read", auth.Username)
	}
	s.AuthHeader = header
	r.logger.Info("Generated Basic Authorization Header")

	r.logger.Info("Sending request for sys_id of '%s'", lookupUser)
	outcome := s.Client.Lookup(ctx, address, servicenow.LookupQuery{Username: lookupUser}, s.AuthHeader)
	sysID, err := servicenow.Classify(outcome, servicenow.DecodeSysID)
	if err != nil {
		return err
	}
	s.SysID = sysID
	r.logger.Info("Extracted sys_id: %s", sysID)
	return nil
}

// protect registers every secret in req with the logger.
func (r *Runner) protect(req Request) {
	for _, s := range req.secrets() {
		r.logger.Protect(s)
	}
}
