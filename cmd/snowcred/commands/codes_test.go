package commands

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/snowcred/internal/config"
	dserrors "github.com/systmms/snowcred/internal/errors"
)

func TestCodesCommand(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Output: config.OutputText}
	out, err := execute(t, NewCodesCommand(cfg))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, len(dserrors.Codes())+2)
	assert.True(t, strings.HasPrefix(lines[0], "CODE"))
	assert.Regexp(t, `^0\s+success$`, lines[2])
	assert.Regexp(t, `^8844\s+web_ssl_tls_exception$`, lines[len(lines)-2])
	assert.Regexp(t, `^9999\s+standard_default_error$`, lines[len(lines)-1])
}

func TestCodesCommandJSON(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Output: config.OutputJSON}
	out, err := execute(t, NewCodesCommand(cfg))
	require.NoError(t, err)

	var got []codeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, len(dserrors.Codes()))
	assert.Contains(t, got, codeOutput{Code: 8822, Name: "bad_request_invalid_resource"})
}
