package action

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/snowcred/internal/errors"
)

func TestParse(t *testing.T) {
	t.Parallel()

	for _, a := range All() {
		got, err := Parse(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}

	got, err := Parse(" Reconcile ")
	require.NoError(t, err)
	assert.Equal(t, Reconcile, got)

	_, err = Parse("logon")
	var userErr dserrors.UserError
	require.True(t, errors.As(err, &userErr))
	assert.Contains(t, userErr.Error(), "logon")
}

func TestActionString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "prereconcile", Prereconcile.String())
	assert.Equal(t, "action(9)", Action(9).String())
}

func TestResultOf(t *testing.T) {
	t.Parallel()

	p := plans[Change]

	tests := []struct {
		name        string
		err         error
		wantCode    int
		wantMessage string
	}{
		{
			name:        "success",
			wantCode:    0,
			wantMessage: MsgChangeSuccess,
		},
		{
			name:        "classified error keeps its code and message",
			err:         dserrors.New(dserrors.CodeStatusForbidden, "Status Code 403 - Forbidden"),
			wantCode:    8831,
			wantMessage: "Status Code 403 - Forbidden",
		},
		{
			name:        "wrapped classified error",
			err:         fmt.Errorf("step: %w", dserrors.New(dserrors.CodeJSONChange, "Password Change response failure")),
			wantCode:    8803,
			wantMessage: "step: Password Change response failure",
		},
		{
			name:        "anything else is the default code",
			err:         errors.New("boom"),
			wantCode:    9999,
			wantMessage: "Password Change failed with an unexpected error: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, Result{Code: tt.wantCode, Message: tt.wantMessage}, resultOf(p, tt.err))
		})
	}
}

func TestPlans(t *testing.T) {
	t.Parallel()

	for _, a := range All() {
		_, ok := plans[a]
		assert.True(t, ok, "no plan for %s", a)
	}

	assert.Nil(t, plans[Verify].step)
	assert.Nil(t, plans[Prereconcile].step)
	assert.Equal(t, SetPassword{Label: "Password Change", FailureCode: dserrors.CodeJSONChange}, plans[Change].step)
	assert.Equal(t, SetPassword{Label: "Password Reconcile", FailureCode: dserrors.CodeJSONReconcile}, plans[Reconcile].step)
	assert.True(t, plans[Reconcile].authByReconcile)
	assert.True(t, plans[Prereconcile].authByReconcile)
	assert.False(t, plans[Change].authByReconcile)
}

func TestSecrets(t *testing.T) {
	t.Parallel()

	assert.Equal(t, SecretSet{TargetPassword: true}, Verify.Secrets())
	assert.Equal(t, SecretSet{TargetPassword: true, TargetNewPassword: true}, Change.Secrets())
	assert.Equal(t, SecretSet{TargetNewPassword: true, ReconcilePassword: true}, Reconcile.Secrets())
	assert.Equal(t, SecretSet{ReconcilePassword: true}, Prereconcile.Secrets())
	assert.Equal(t, SecretSet{}, Action(42).Secrets())
}

func TestErrorResult(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Result{}, ErrorResult(nil))
	assert.Equal(t,
		Result{Code: 8801, Message: "Secret reference 'env:X' could not be resolved"},
		ErrorResult(dserrors.New(dserrors.CodeMandatoryParameterMissing, "Secret reference 'env:X' could not be resolved")))
	assert.Equal(t, Result{Code: 9999, Message: "boom"}, ErrorResult(errors.New("boom")))
}
