package commands

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/snowcred/internal/account"
	"github.com/systmms/snowcred/internal/config"
	dserrors "github.com/systmms/snowcred/internal/errors"
	"github.com/systmms/snowcred/internal/secretsource"
	"github.com/systmms/snowcred/internal/servicenow"
)

func NewDoctorCommand(cfg *config.Config, deps Deps) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the invocation file and its secret references",
		Long: `Verify that the invocation file is valid and that every secret it
references can be fetched, without contacting ServiceNow.

This command checks:
- Invocation file validity
- Target and reconcile account properties
- Every secret reference (values are never printed)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Logger.Info("Checking invocation file %s...", cfg.Path)
			if err := cfg.Load(); err != nil {
				cfg.Logger.Error("Invocation error: %v", err)
				return fmt.Errorf("failed to load invocation file: %w", err)
			}
			inv := cfg.Invocation

			resolver := newResolver(cfg, deps)
			defer closeResolver(cfg, resolver)

			var checks []CheckResult
			for _, acct := range []struct {
				name string
				spec *config.AccountSpec
			}{
				{"target", inv.Target},
				{"reconcile", inv.Reconcile},
			} {
				if acct.spec == nil {
					continue
				}
				checks = append(checks, checkProperties(acct.name, acct.spec, acct.name == "target")...)
				checks = append(checks,
					checkReference(cmd, resolver, acct.name, "password", acct.spec.Password),
					checkReference(cmd, resolver, acct.name, "newPassword", acct.spec.NewPassword),
				)
			}

			displayCheckResults(cmd.OutOrStdout(), checks, verbose)

			failed := 0
			for _, c := range checks {
				if c.Status == statusError {
					failed++
				}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nSummary: %d/%d checks passed\n", len(checks)-failed, len(checks))
			if failed > 0 {
				return &ExitError{Code: dserrors.CodeMandatoryParameterMissing.Int()}
			}

			cfg.Logger.Info("Invocation file is ready")
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show suggestions for failed checks")

	return cmd
}

const (
	statusOK      = "ok"
	statusError   = "error"
	statusSkipped = "skipped"
)

// CheckResult is one line of the doctor report.
type CheckResult struct {
	Account    string
	Field      string
	Status     string
	Message    string
	Suggestion string
}

func checkProperties(name string, spec *config.AccountSpec, needsAddress bool) []CheckResult {
	var out []CheckResult

	username := CheckResult{Account: name, Field: account.PropUsername, Status: statusOK}
	if value, err := account.GetMandatoryParameter(account.PropUsername, spec.Properties); err != nil {
		username.Status, username.Message = statusError, err.Error()
	} else if err := account.ValidateParameterLength(value, "Username", account.MaxUsernameLength); err != nil {
		username.Status, username.Message = statusError, err.Error()
	} else {
		username.Message = value
	}
	out = append(out, username)

	if !needsAddress {
		return out
	}
	address := CheckResult{Account: name, Field: account.PropAddress, Status: statusOK}
	if value, err := account.GetMandatoryParameter(account.PropAddress, spec.Properties); err != nil {
		address.Status, address.Message = statusError, err.Error()
	} else if err := account.ValidateURI(value, "Address"); err != nil {
		address.Status, address.Message = statusError, err.Error()
	} else if normalized, err := servicenow.NormalizeAddress(value, servicenow.UserTablePath); err != nil {
		address.Status, address.Message = statusError, err.Error()
	} else {
		address.Message = normalized
	}
	return append(out, address)
}

// checkReference fetches ref and destroys the value straight away.
func checkReference(cmd *cobra.Command, r *secretsource.Resolver, acct, field, ref string) CheckResult {
	result := CheckResult{Account: acct, Field: field}
	if ref == "" {
		result.Status, result.Message = statusSkipped, "not set"
		return result
	}

	s, err := r.Resolve(cmd.Context(), ref)
	if err != nil {
		result.Status, result.Message = statusError, err.Error()
		var userErr dserrors.UserError
		if errors.As(err, &userErr) {
			result.Suggestion = userErr.Suggestion
		}
		return result
	}
	defer s.Destroy()

	if s.IsEmpty() {
		result.Status, result.Message = statusError, fmt.Sprintf("%s resolved to an empty value", ref)
		return result
	}
	result.Status, result.Message = statusOK, ref
	return result
}

// displayCheckResults shows the checks in a formatted table
func displayCheckResults(out io.Writer, results []CheckResult, verbose bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "ACCOUNT\tFIELD\tSTATUS\tMESSAGE\n")
	_, _ = fmt.Fprintf(w, "-------\t-----\t------\t-------\n")

	for _, result := range results {
		status := result.Status
		switch result.Status {
		case statusOK:
			status = "✓ " + status
		case statusError:
			status = "✗ " + status
		default:
			status = "- " + status
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", result.Account, result.Field, status, result.Message)
	}
	_ = w.Flush()

	if !verbose {
		return
	}
	for _, result := range results {
		if result.Suggestion != "" {
			_, _ = fmt.Fprintf(out, "\n%s.%s:\n  💡 %s\n", result.Account, result.Field, result.Suggestion)
		}
	}
}
