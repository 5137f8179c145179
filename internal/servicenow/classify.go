package servicenow

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"

	dserrors "github.com/systmms/snowcred/internal/errors"
)

// AuthFailureMarker is the text ServiceNow puts in a 400 body when the basic
// auth credentials are rejected. Matching is a literal, case-sensitive substring.
const AuthFailureMarker = "User Not Authenticated"

// Messages reported with classified errors.
const (
	MsgSysIDError                = "Failed to extract sys_id from the user lookup response"
	MsgBadRequestInvalidResource = "Bad Request: invalid resource, the user is not authenticated"
	MsgNameResolutionFailure     = "Name resolution failure: the ServiceNow address could not be resolved"
	MsgConnectFailure            = "Connect failure: unable to connect to the ServiceNow address"
	MsgSecureChannelFailure      = "Secure channel failure: the TLS handshake with ServiceNow failed"
	MsgUnhandledTransportError   = "Unhandled transport error: "
	MsgServerError               = "Server returned an error: "
)

var statusCodes = map[int]struct {
	code    dserrors.Code
	message string
}{
	http.StatusUnauthorized:         {dserrors.CodeStatusUnauthorized, "Status Code 401 - Unauthorized"},
	http.StatusForbidden:            {dserrors.CodeStatusForbidden, "Status Code 403 - Forbidden"},
	http.StatusNotFound:             {dserrors.CodeStatusNotFound, "Status Code 404 - Not Found"},
	http.StatusMethodNotAllowed:     {dserrors.CodeStatusMethodNotAllowed, "Status Code 405 - Method not allowed"},
	http.StatusNotAcceptable:        {dserrors.CodeStatusNotAcceptable, "Status Code 406 - Not Acceptable"},
	http.StatusProxyAuthRequired:    {dserrors.CodeStatusProxyAuth, "Status Code 407 - Proxy Authentication Required"},
	http.StatusRequestTimeout:       {dserrors.CodeStatusRequestTimeout, "Status Code 408 - Request Timeout"},
	http.StatusUnsupportedMediaType: {dserrors.CodeStatusUnsupportedMediaType, "Status Code 415 - Unsupported Media Type"},
	http.StatusGatewayTimeout:       {dserrors.CodeStatusGatewayTimeout, "Status Code 504 - Gateway Timeout"},
}

// Decoder turns a Success body into a payload, or fails with a payload error.
type Decoder[T any] func(body []byte) (T, error)

type classified[T any] struct {
	value T
	err   error
}

// Classify returns the decoded payload of a Success, or the *dserrors.PluginError
// that o maps to. It is total over the four Outcome variants.
func Classify[T any](o Outcome, decode Decoder[T]) (T, error) {
	r := Match(o, Handlers[classified[T]]{
		Success: func(s Success) classified[T] {
			v, err := decode(s.Body)
			return classified[T]{value: v, err: err}
		},
		APIError: func(e APIError) classified[T] {
			return classified[T]{err: ClassifyAPIError(e)}
		},
		HTTPError: func(e HTTPError) classified[T] {
			return classified[T]{err: ClassifyHTTPError(e)}
		},
		TransportError: func(e TransportError) classified[T] {
			return classified[T]{err: ClassifyTransportError(e)}
		},
	})
	return r.value, r.err
}

// ClassifyHTTPError maps a non-200 response to its result code. A 400 is split on
// whether the body carries AuthFailureMarker.
func ClassifyHTTPError(e HTTPError) *dserrors.PluginError {
	if e.StatusCode == http.StatusBadRequest {
		if strings.Contains(e.Body, AuthFailureMarker) {
			return dserrors.New(dserrors.CodeBadRequestInvalidResource, "%s", MsgBadRequestInvalidResource)
		}
		return dserrors.New(dserrors.CodeBadRequestUnhandled, "Bad Request: %s", e.Body)
	}
	if sc, ok := statusCodes[e.StatusCode]; ok {
		return dserrors.New(sc.code, "%s", sc.message)
	}
	return dserrors.New(dserrors.CodeStatusUnhandled, "Status Code %d - unhandled status code", e.StatusCode)
}

// ClassifyTransportError maps a pre-response failure to its result code.
func ClassifyTransportError(e TransportError) *dserrors.PluginError {
	err := e.Err
	switch {
	case isNameResolutionFailure(err):
		return dserrors.Wrap(dserrors.CodeWebNameResolutionFailure, err, "%s", MsgNameResolutionFailure)
	case isSecureChannelFailure(err):
		return dserrors.Wrap(dserrors.CodeWebSSLTLS, err, "%s", MsgSecureChannelFailure)
	case isConnectFailure(err):
		return dserrors.Wrap(dserrors.CodeWebConnectFailure, err, "%s", MsgConnectFailure)
	default:
		return dserrors.Wrap(dserrors.CodeWebUnhandled, err, "%s%s", MsgUnhandledTransportError, e.Message)
	}
}

// ClassifyAPIError maps a client-raised failure to the generic server error code.
func ClassifyAPIError(e APIError) *dserrors.PluginError {
	return dserrors.New(dserrors.CodeSuccessDefault, "%s%s", MsgServerError, e.Message)
}

func isNameResolutionFailure(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isConnectFailure(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func isSecureChannelFailure(err error) bool {
	if err == nil {
		return false
	}
	var (
		recordErr    tls.RecordHeaderError
		verifyErr    *tls.CertificateVerificationError
		alertErr     tls.AlertError
		authorityErr x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidErr   x509.CertificateInvalidError
	)
	if errors.As(err, &recordErr) ||
		errors.As(err, &verifyErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &authorityErr) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidErr) {
		return true
	}
	// Alerts received from the peer surface as an OpError wrapping an
	// unexported alert type.
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "remote error" {
		return true
	}
	return strings.Contains(err.Error(), "tls: ")
}

// DecodeSysID extracts the sys_id from a lookup body. A malformed body, an empty
// result list and a null sys_id are all CodeJSONSysID.
func DecodeSysID(body []byte) (string, error) {
	var resp SysIDResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", dserrors.Wrap(dserrors.CodeJSONSysID, err, "%s: %v", MsgSysIDError, err)
	}
	if len(resp.Result) == 0 {
		return "", dserrors.New(dserrors.CodeJSONSysID, "%s: no matching user record", MsgSysIDError)
	}
	if resp.Result[0].SysID == nil || *resp.Result[0].SysID == "" {
		return "", dserrors.New(dserrors.CodeJSONSysID, "%s", MsgSysIDError)
	}
	return *resp.Result[0].SysID, nil
}

// PasswordAckDecoder returns a Decoder that confirms a password update echoed
// user_password. Any missing piece fails with code and "<action> response
// failure".
func PasswordAckDecoder(code dserrors.Code, action string) Decoder[string] {
	return func(body []byte) (string, error) {
		var resp UserPasswordResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", dserrors.Wrap(code, err, "%s response failure: %v", action, err)
		}
		if resp.Result == nil || resp.Result.UserPassword == nil {
			return "", dserrors.New(code, "%s response failure: user_password missing from response", action)
		}
		return *resp.Result.UserPassword, nil
	}
}
