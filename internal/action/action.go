// Package action implements the four credential actions against a ServiceNow
// user record: verify, change, reconcile and prereconcile.
//
// Every action follows the same pipeline. Parameters are validated, a basic
// auth header is built from the authenticating credential, the target user's
// sys_id is resolved, and then an action-specific Step runs (set the password, or
// nothing). Runner.Run is the single place where errors become a Result.
package action

import (
	"fmt"
	"strings"

	dserrors "github.com/systmms/snowcred/internal/errors"
)

// Action identifies one credential operation.
type Action int

const (
	Verify Action = iota + 1
	Change
	Reconcile
	Prereconcile
)

var actionNames = map[Action]string{
	Verify:       "verify",
	Change:       "change",
	Reconcile:    "reconcile",
	Prereconcile: "prereconcile",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// All returns the actions in a stable order.
func All() []Action {
	return []Action{Verify, Change, Reconcile, Prereconcile}
}

// Parse returns the Action named name (case-insensitive).
func Parse(name string) (Action, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, a := range All() {
		if actionNames[a] == name {
			return a, nil
		}
	}
	return 0, dserrors.UserError{
		Message:    fmt.Sprintf("unknown action %q", name),
		Suggestion: "Use one of: verify, change, reconcile, prereconcile",
	}
}

// Success messages reported to the host.
const (
	MsgVerifySuccess       = "Password verified successfully"
	MsgChangeSuccess       = "Password changed successfully"
	MsgReconcileSuccess    = "Password reconciled successfully"
	MsgPrereconcileSuccess = "Prereconcile check completed successfully"
)

// plan describes how an action differs from the shared pipeline.
type plan struct {
	label   string
	success string

	// authByReconcile selects the reconcile account as the authenticating
	// credential. The target user is always the one resolved.
	authByReconcile bool
	needsCurrent    bool
	needsNew        bool

	step Step
}

var plans = map[Action]plan{
	Verify: {
		label:        "Password Verify",
		success:      MsgVerifySuccess,
		needsCurrent: true,
	},
	Change: {
		label:        "Password Change",
		success:      MsgChangeSuccess,
		needsCurrent: true,
		needsNew:     true,
		step:         SetPassword{Label: "Password Change", FailureCode: dserrors.CodeJSONChange},
	},
	Reconcile: {
		label:           "Password Reconcile",
		success:         MsgReconcileSuccess,
		authByReconcile: true,
		needsNew:        true,
		step:            SetPassword{Label: "Password Reconcile", FailureCode: dserrors.CodeJSONReconcile},
	},
	Prereconcile: {
		label:           "Prereconcile",
		success:         MsgPrereconcileSuccess,
		authByReconcile: true,
	},
}

// SecretSet names the secrets an action reads.
type SecretSet struct {
	TargetPassword    bool
	TargetNewPassword bool
	ReconcilePassword bool
}

// Secrets reports which secrets a reads, so a host fetches nothing else.
func (a Action) Secrets() SecretSet {
	p := plans[a]
	return SecretSet{
		TargetPassword:    p.needsCurrent && !p.authByReconcile,
		TargetNewPassword: p.needsNew,
		ReconcilePassword: p.authByReconcile,
	}
}

// Result is what the host receives: a code from the registry and a message.
// Code 0 is success.
type Result struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Succeeded reports whether the action completed.
func (r Result) Succeeded() bool {
	return r.Code == int(dserrors.CodeSuccess)
}

// ErrorResult converts a failure raised before Run, such as a secret that could
// not be fetched, into a Result.
func ErrorResult(err error) Result {
	if err == nil {
		return Result{Code: int(dserrors.CodeSuccess)}
	}
	return Result{Code: dserrors.CodeOf(err).Int(), Message: err.Error()}
}

// resultOf converts the error returned by an action into a Result.
func resultOf(p plan, err error) Result {
	if err == nil {
		return Result{Code: int(dserrors.CodeSuccess), Message: p.success}
	}
	code := dserrors.CodeOf(err)
	if code == dserrors.CodeStandardDefault {
		return Result{Code: code.Int(), Message: fmt.Sprintf("%s failed with an unexpected error: %v", p.label, err)}
	}
	return Result{Code: code.Int(), Message: err.Error()}
}
