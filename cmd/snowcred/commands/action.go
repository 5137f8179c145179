package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/snowcred/internal/account"
	"github.com/systmms/snowcred/internal/action"
	"github.com/systmms/snowcred/internal/config"
	dserrors "github.com/systmms/snowcred/internal/errors"
	"github.com/systmms/snowcred/internal/metrics"
	"github.com/systmms/snowcred/internal/secretsource"
	"github.com/systmms/snowcred/internal/servicenow"
)

// Deps are the process-level dependencies of the commands. The zero value talks
// to the real network and secret sources.
type Deps struct {
	HTTPClient      *http.Client
	ResolverOptions []secretsource.Option
	// UserAgent is sent unless the invocation file names its own.
	UserAgent string
}

// ExitError reports a failure whose result has already been written. main exits
// non-zero without printing it again.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("failed with code %d", e.Code)
}

func NewVerifyCommand(cfg *config.Config, deps Deps) *cobra.Command {
	return newActionCommand(cfg, deps, action.Verify,
		"Verify the target account's password",
		`Authenticate as the target account and look up its own user record.

Reads target.properties.Username, target.properties.Address and
target.password from the invocation file.

Examples:
  snowcred --config invocation.yaml verify
  snowcred --config invocation.yaml --output json verify`)
}

func NewChangeCommand(cfg *config.Config, deps Deps) *cobra.Command {
	return newActionCommand(cfg, deps, action.Change,
		"Change the target account's password as the account itself",
		`Authenticate as the target account and set its password to
target.newPassword.

Reads target.properties.Username, target.properties.Address,
target.password and target.newPassword from the invocation file.`)
}

func NewReconcileCommand(cfg *config.Config, deps Deps) *cobra.Command {
	return newActionCommand(cfg, deps, action.Reconcile,
		"Reset the target account's password using the reconcile account",
		`Authenticate as the reconcile account and set the target account's
password to target.newPassword. The target's current password is not needed.

Reads target.properties.Username, target.properties.Address,
target.newPassword, reconcile.properties.Username and reconcile.password
from the invocation file.`)
}

func NewPrereconcileCommand(cfg *config.Config, deps Deps) *cobra.Command {
	return newActionCommand(cfg, deps, action.Prereconcile,
		"Check that the reconcile account can reach the target account",
		`Authenticate as the reconcile account and look up the target account's
user record without changing anything.

Reads target.properties.Username, target.properties.Address,
reconcile.properties.Username and reconcile.password from the invocation file.`)
}

func newActionCommand(cfg *config.Config, deps Deps, a action.Action, short, long string) *cobra.Command {
	return &cobra.Command{
		Use:   a.String(),
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result := runAction(cmd.Context(), cfg, deps, a)

			if err := writeResult(cmd.OutOrStdout(), cfg.Output, a, result); err != nil {
				return err
			}
			if cfg.MetricsFile != "" {
				if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
					cfg.Logger.Warn("Failed to write metrics file %s: %v", cfg.MetricsFile, err)
				}
			}

			if !result.Succeeded() {
				return &ExitError{Code: result.Code}
			}
			return nil
		},
	}
}

// runAction loads the invocation file, fetches the secrets a reads and runs it.
// Every failure, including those before the action starts, becomes a Result.
func runAction(ctx context.Context, cfg *config.Config, deps Deps, a action.Action) action.Result {
	recorder := metrics.NewActionMetrics()
	start := time.Now()
	failed := func(err error) action.Result {
		result := action.ErrorResult(err)
		recorder.RecordAction(a.String(), result.Code, time.Since(start).Seconds())
		cfg.Logger.Error("Received error: %s", result.Message)
		return result
	}

	if err := cfg.Load(); err != nil {
		return failed(dserrors.Wrap(dserrors.CodeMandatoryParameterMissing, err,
			"Invocation file could not be loaded: %v", err))
	}
	inv := cfg.Invocation

	if timeout := inv.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resolver := newResolver(cfg, deps)
	defer closeResolver(cfg, resolver)

	req, err := buildRequest(ctx, resolver, inv, a.Secrets())
	if err != nil {
		return failed(err)
	}

	runner := action.NewRunner(
		action.WithClient(newClient(cfg, deps)),
		action.WithLogger(cfg.Logger),
		action.WithRecorder(recorder),
	)
	return runner.Run(ctx, a, req)
}

func newResolver(cfg *config.Config, deps Deps) *secretsource.Resolver {
	opts := []secretsource.Option{
		secretsource.WithConfig(cfg.Invocation.Sources),
		secretsource.WithLogger(cfg.Logger),
	}
	return secretsource.NewResolver(append(opts, deps.ResolverOptions...)...)
}

func closeResolver(cfg *config.Config, r *secretsource.Resolver) {
	if err := r.Close(); err != nil {
		cfg.Logger.Debug("Failed to close secret source clients: %v", err)
	}
}

func newClient(cfg *config.Config, deps Deps) *servicenow.Client {
	opts := []servicenow.Option{
		servicenow.WithLogger(cfg.Logger),
		servicenow.WithHTTPClient(deps.HTTPClient),
	}
	userAgent := deps.UserAgent
	if cfg.Invocation.UserAgent != "" {
		userAgent = cfg.Invocation.UserAgent
	}
	if userAgent != "" {
		opts = append(opts, servicenow.WithUserAgent(userAgent))
	}
	return servicenow.NewClient(opts...)
}

// buildRequest resolves the secrets named in need. References the action does
// not read are never fetched. On error nothing resolved so far survives.
func buildRequest(ctx context.Context, r *secretsource.Resolver, inv *config.Invocation, need action.SecretSet) (action.Request, error) {
	var req action.Request

	target, err := resolveAccount(ctx, r, inv.Target, need.TargetPassword, need.TargetNewPassword)
	if err != nil {
		return action.Request{}, err
	}
	req.Target = target

	reconcile, err := resolveAccount(ctx, r, inv.Reconcile, need.ReconcilePassword, false)
	if err != nil {
		req.Destroy()
		return action.Request{}, err
	}
	req.Reconcile = reconcile
	return req, nil
}

func resolveAccount(ctx context.Context, r *secretsource.Resolver, spec *config.AccountSpec, current, next bool) (*account.Account, error) {
	if spec == nil {
		return nil, nil
	}
	acct := &account.Account{Properties: spec.Properties}
	if current {
		s, err := r.Resolve(ctx, spec.Password)
		if err != nil {
			return nil, err
		}
		acct.CurrentPassword = s
	}
	if next {
		s, err := r.Resolve(ctx, spec.NewPassword)
		if err != nil {
			acct.Destroy()
			return nil, err
		}
		acct.NewPassword = s
	}
	return acct, nil
}

type resultOutput struct {
	Action  string `json:"action"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeResult(w io.Writer, format string, a action.Action, result action.Result) error {
	if format == config.OutputJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(resultOutput{Action: a.String(), Code: result.Code, Message: result.Message}); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	}

	if result.Succeeded() {
		_, err := fmt.Fprintln(w, result.Message)
		return err
	}
	_, err := fmt.Fprintf(w, "%s failed (%d %s): %s\n", a, result.Code, dserrors.Code(result.Code), result.Message)
	return err
}
