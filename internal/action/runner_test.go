package action

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/snowcred/internal/account"
	dserrors "github.com/systmms/snowcred/internal/errors"
	"github.com/systmms/snowcred/internal/logging"
	"github.com/systmms/snowcred/internal/secure"
	"github.com/systmms/snowcred/internal/servicenow"
	"github.com/systmms/snowcred/internal/servicenow/snowtest"
)

const (
	targetUser        = "jdoe"
	targetPassword    = "Curr3nt-Passw0rd"
	targetNewPassword = "N3w-Passw0rd!"
	reconcileUser     = "svc_reconcile"
	reconcilePassword = "R3concile-Passw0rd"
)

func basic(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func newRequest() Request {
	return Request{
		Target: &account.Account{
			Properties: map[string]string{
				account.PropUsername: targetUser,
				account.PropAddress:  snowtest.Address,
			},
			CurrentPassword: secure.NewSecretFromString(targetPassword),
			NewPassword:     secure.NewSecretFromString(targetNewPassword),
		},
		Reconcile: &account.Account{
			Properties:      map[string]string{account.PropUsername: reconcileUser},
			CurrentPassword: secure.NewSecretFromString(reconcilePassword),
		},
	}
}

type recorded struct {
	action string
	code   int
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recorded
}

func (f *fakeRecorder) RecordAction(action string, code int, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recorded{action: action, code: code})
}

func newRunner(hc *http.Client, opts ...Option) *Runner {
	client := servicenow.NewClient(servicenow.WithHTTPClient(hc))
	return NewRunner(append([]Option{WithClient(client)}, opts...)...)
}

func TestRunSuccess(t *testing.T) {
	t.Parallel()

	tests := []struct {
		action      Action
		wantMessage string
		wantAuth    string
		wantPatch   bool
	}{
		{action: Verify, wantMessage: MsgVerifySuccess, wantAuth: basic(targetUser, targetPassword)},
		{action: Change, wantMessage: MsgChangeSuccess, wantAuth: basic(targetUser, targetPassword), wantPatch: true},
		{action: Reconcile, wantMessage: MsgReconcileSuccess, wantAuth: basic(reconcileUser, reconcilePassword), wantPatch: true},
		{action: Prereconcile, wantMessage: MsgPrereconcileSuccess, wantAuth: basic(reconcileUser, reconcilePassword)},
	}

	for _, tt := range tests {
		t.Run(tt.action.String(), func(t *testing.T) {
			t.Parallel()

			server := snowtest.NewServer(t)
			recorder := &fakeRecorder{}
			runner := newRunner(server.Client(), WithRecorder(recorder))

			result := runner.Run(context.Background(), tt.action, newRequest())

			assert.Equal(t, Result{Code: 0, Message: tt.wantMessage}, result)
			assert.True(t, result.Succeeded())
			assert.Equal(t, []recorded{{action: tt.action.String(), code: 0}}, recorder.calls)

			requests := server.Requests()
			wantRequests := 1
			if tt.wantPatch {
				wantRequests = 2
			}
			require.Len(t, requests, wantRequests)

			lookup := requests[0]
			assert.Equal(t, http.MethodGet, lookup.Method)
			assert.Equal(t, servicenow.UserTablePath, lookup.Path)
			assert.Equal(t, "user_name="+targetUser, lookup.Query.Get("sysparm_query"))
			assert.Equal(t, tt.wantAuth, lookup.Authorization)

			if tt.wantPatch {
				patch := requests[1]
				assert.Equal(t, http.MethodPatch, patch.Method)
				assert.Equal(t, servicenow.UserRecordPath("abc123"), patch.Path)
				assert.Equal(t, tt.wantAuth, patch.Authorization)
				assert.JSONEq(t, `{"user_password":"`+targetNewPassword+`"}`, string(patch.Body))
			}
		})
	}
}

func TestRunAcceptsAddressWithoutScheme(t *testing.T) {
	t.Parallel()

	server := snowtest.NewServer(t)
	req := newRequest()
	req.Target.Properties[account.PropAddress] = "example.com:8443/nav_to.do"

	result := newRunner(server.Client()).Run(context.Background(), Verify, req)

	assert.Equal(t, 0, result.Code, result.Message)
	require.Len(t, server.Requests(), 1)
	assert.Equal(t, servicenow.UserTablePath, server.Requests()[0].Path)
}

func TestRunRemoteFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		action       Action
		lookupStatus int
		lookupBody   string
		patchStatus  int
		patchBody    string
		wantCode     dserrors.Code
		wantRequests int
	}{
		{
			name:         "reconcile identity not authenticated",
			action:       Reconcile,
			lookupStatus: http.StatusBadRequest,
			lookupBody:   `{"error":{"message":"User Not Authenticated","detail":"Required to provide Auth information"},"status":"failure"}`,
			wantCode:     dserrors.CodeBadRequestInvalidResource,
			wantRequests: 1,
		},
		{
			name:         "verify with wrong password",
			action:       Verify,
			lookupStatus: http.StatusUnauthorized,
			lookupBody:   `{"error":{"message":"User Not Authenticated"}}`,
			wantCode:     dserrors.CodeStatusUnauthorized,
			wantRequests: 1,
		},
		{
			name:         "null sys_id",
			action:       Change,
			lookupStatus: http.StatusOK,
			lookupBody:   `{"result":[{"sys_id":null}]}`,
			wantCode:     dserrors.CodeJSONSysID,
			wantRequests: 1,
		},
		{
			name:         "user not found",
			action:       Prereconcile,
			lookupStatus: http.StatusOK,
			lookupBody:   `{"result":[]}`,
			wantCode:     dserrors.CodeJSONSysID,
			wantRequests: 1,
		},
		{
			name:         "empty lookup body",
			action:       Verify,
			lookupStatus: http.StatusOK,
			lookupBody:   "",
			wantCode:     dserrors.CodeSuccessDefault,
			wantRequests: 1,
		},
		{
			name:         "change ack without password",
			action:       Change,
			lookupStatus: http.StatusOK,
			lookupBody:   snowtest.LookupBody("abc123"),
			patchStatus:  http.StatusOK,
			patchBody:    `{"result":{"user_password":null}}`,
			wantCode:     dserrors.CodeJSONChange,
			wantRequests: 2,
		},
		{
			name:         "reconcile ack without password",
			action:       Reconcile,
			lookupStatus: http.StatusOK,
			lookupBody:   snowtest.LookupBody("abc123"),
			patchStatus:  http.StatusOK,
			patchBody:    `{"result":{}}`,
			wantCode:     dserrors.CodeJSONReconcile,
			wantRequests: 2,
		},
		{
			name:         "patch forbidden",
			action:       Change,
			lookupStatus: http.StatusOK,
			lookupBody:   snowtest.LookupBody("abc123"),
			patchStatus:  http.StatusForbidden,
			patchBody:    `{"error":{"message":"Operation Failed"}}`,
			wantCode:     dserrors.CodeStatusForbidden,
			wantRequests: 2,
		},
		{
			name:         "patch rejected by password policy",
			action:       Reconcile,
			lookupStatus: http.StatusOK,
			lookupBody:   snowtest.LookupBody("abc123"),
			patchStatus:  http.StatusBadRequest,
			patchBody:    "Password does not meet policy",
			wantCode:     dserrors.CodeBadRequestUnhandled,
			wantRequests: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := snowtest.NewServer(t)
			server.OnLookup(tt.lookupStatus, tt.lookupBody)
			if tt.patchStatus != 0 {
				server.OnPatch(tt.patchStatus, tt.patchBody)
			}

			result := newRunner(server.Client()).Run(context.Background(), tt.action, newRequest())

			assert.Equal(t, tt.wantCode.Int(), result.Code, result.Message)
			assert.NotEmpty(t, result.Message)
			assert.Len(t, server.Requests(), tt.wantRequests)
		})
	}
}

func TestRunTransportFailures(t *testing.T) {
	t.Parallel()

	t.Run("name resolution", func(t *testing.T) {
		t.Parallel()

		dnsErr := &net.DNSError{Err: "no such host", Name: "example.com", IsNotFound: true}
		result := newRunner(snowtest.FailingTransport(dnsErr)).Run(context.Background(), Verify, newRequest())
		assert.Equal(t, dserrors.CodeWebNameResolutionFailure.Int(), result.Code)
	})

	t.Run("connect", func(t *testing.T) {
		t.Parallel()

		result := newRunner(snowtest.Closed(t)).Run(context.Background(), Change, newRequest())
		assert.Equal(t, dserrors.CodeWebConnectFailure.Int(), result.Code)
	})

	t.Run("tls", func(t *testing.T) {
		t.Parallel()

		server := snowtest.NewServer(t)
		result := newRunner(server.UntrustedClient()).Run(context.Background(), Reconcile, newRequest())
		assert.Equal(t, dserrors.CodeWebSSLTLS.Int(), result.Code)
	})

	t.Run("unhandled", func(t *testing.T) {
		t.Parallel()

		result := newRunner(snowtest.FailingTransport(errors.New("stream reset"))).Run(context.Background(), Prereconcile, newRequest())
		assert.Equal(t, dserrors.CodeWebUnhandled.Int(), result.Code)
		assert.Contains(t, result.Message, "stream reset")
	})
}

func TestRunParameterErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		action   Action
		mutate   func(r *Request)
		wantCode dserrors.Code
	}{
		{
			name:     "missing target account",
			action:   Verify,
			mutate:   func(r *Request) { r.Target.Destroy(); r.Target = nil },
			wantCode: dserrors.CodeNoSuchEntity,
		},
		{
			name:     "missing username",
			action:   Verify,
			mutate:   func(r *Request) { delete(r.Target.Properties, account.PropUsername) },
			wantCode: dserrors.CodeMandatoryParameterMissing,
		},
		{
			name:     "blank address",
			action:   Change,
			mutate:   func(r *Request) { r.Target.Properties[account.PropAddress] = " " },
			wantCode: dserrors.CodeMandatoryParameterMissing,
		},
		{
			name:     "username too long",
			action:   Verify,
			mutate:   func(r *Request) { r.Target.Properties[account.PropUsername] = strings.Repeat("u", 65) },
			wantCode: dserrors.CodeParameterInvalidLength,
		},
		{
			name:     "invalid address",
			action:   Verify,
			mutate:   func(r *Request) { r.Target.Properties[account.PropAddress] = "https://example.com/%zz" },
			wantCode: dserrors.CodeParameterInvalidURI,
		},
		{
			name:     "empty current password",
			action:   Verify,
			mutate:   func(r *Request) { r.Target.CurrentPassword = secure.NewSecret(nil) },
			wantCode: dserrors.CodeParameterPasswordEmpty,
		},
		{
			name:     "empty new password on change",
			action:   Change,
			mutate:   func(r *Request) { r.Target.NewPassword = nil },
			wantCode: dserrors.CodeParameterPasswordEmpty,
		},
		{
			name:     "missing reconcile account",
			action:   Reconcile,
			mutate:   func(r *Request) { r.Reconcile.Destroy(); r.Reconcile = nil },
			wantCode: dserrors.CodeNoSuchEntity,
		},
		{
			name:     "missing reconcile username",
			action:   Prereconcile,
			mutate:   func(r *Request) { r.Reconcile.Properties = nil },
			wantCode: dserrors.CodeMandatoryParameterMissing,
		},
		{
			name:     "reconcile username too long",
			action:   Reconcile,
			mutate:   func(r *Request) { r.Reconcile.Properties[account.PropUsername] = strings.Repeat("r", 65) },
			wantCode: dserrors.CodeParameterInvalidLength,
		},
		{
			name:     "empty reconcile password",
			action:   Prereconcile,
			mutate:   func(r *Request) { r.Reconcile.CurrentPassword = nil },
			wantCode: dserrors.CodeParameterPasswordEmpty,
		},
		{
			name:     "empty new password on reconcile",
			action:   Reconcile,
			mutate:   func(r *Request) { r.Target.NewPassword = secure.NewSecret([]byte{}) },
			wantCode: dserrors.CodeParameterPasswordEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := snowtest.NewServer(t)
			req := newRequest()
			tt.mutate(&req)

			result := newRunner(server.Client()).Run(context.Background(), tt.action, req)

			assert.Equal(t, tt.wantCode.Int(), result.Code, result.Message)
			assert.Empty(t, server.Requests(), "no request may be sent when parameters are invalid")
		})
	}
}

func TestRunIgnoresUnusedSecrets(t *testing.T) {
	t.Parallel()

	server := snowtest.NewServer(t)

	// Reconcile authenticates with the reconcile account, so the target's
	// current password is not required.
	req := newRequest()
	req.Target.CurrentPassword = nil
	result := newRunner(server.Client()).Run(context.Background(), Reconcile, req)
	assert.Equal(t, 0, result.Code, result.Message)

	// Verify never needs the reconcile account.
	req = newRequest()
	req.Reconcile = nil
	result = newRunner(server.Client()).Run(context.Background(), Verify, req)
	assert.Equal(t, 0, result.Code, result.Message)
}

func TestRunDestroysSecrets(t *testing.T) {
	t.Parallel()

	for _, a := range All() {
		t.Run(a.String(), func(t *testing.T) {
			t.Parallel()

			server := snowtest.NewServer(t)
			server.OnLookup(http.StatusNotFound, "")
			req := newRequest()

			newRunner(server.Client()).Run(context.Background(), a, req)

			assert.True(t, req.Target.CurrentPassword.IsEmpty())
			assert.True(t, req.Target.NewPassword.IsEmpty())
			assert.True(t, req.Reconcile.CurrentPassword.IsEmpty())
		})
	}
}

func TestRunNeverLogsSecrets(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.New(true, true).WithWriter(&buf)

	server := snowtest.NewServer(t)
	// A server that echoes the submitted password back in an error body.
	server.OnPatch(http.StatusBadRequest, "rejected password "+targetNewPassword)

	client := servicenow.NewClient(servicenow.WithHTTPClient(server.Client()), servicenow.WithLogger(logger))
	runner := NewRunner(WithClient(client), WithLogger(logger))

	result := runner.Run(context.Background(), Change, newRequest())
	assert.Equal(t, dserrors.CodeBadRequestUnhandled.Int(), result.Code)
	assert.Equal(t, "Bad Request: rejected password [REDACTED]", result.Message)

	out := buf.String()
	assert.Contains(t, out, "Generated Basic Authorization Header")
	assert.Contains(t, out, "change: start")
	assert.Contains(t, out, "resolveSysID: end")
	for _, secret := range []string{targetPassword, targetNewPassword, reconcilePassword, basic(targetUser, targetPassword)} {
		assert.NotContains(t, out, secret)
	}
}

func TestRunUnknownAction(t *testing.T) {
	t.Parallel()

	result := NewRunner().Run(context.Background(), Action(42), newRequest())
	assert.Equal(t, dserrors.CodeStandardDefault.Int(), result.Code)
}
