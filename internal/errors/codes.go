package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Code is a stable numeric result code reported to the credential-management host.
// The host persists and displays these values, so existing codes must never be
// renumbered.
type Code int

// Success and fallback codes.
const (
	CodeSuccess         Code = 0
	CodeStandardDefault Code = 9999
)

// Parameter and configuration errors. No network call is attempted.
const (
	CodeParameterPasswordEmpty    Code = 8201
	CodeParameterInvalidLength    Code = 8202
	CodeParameterInvalidURI       Code = 8203
	CodeNoSuchEntity              Code = 8800
	CodeMandatoryParameterMissing Code = 8801
)

// Response payload errors.
const (
	CodeJSONSysID                Code = 8802
	CodeJSONChange               Code = 8803
	CodeJSONReconcile            Code = 8804
	CodeResponseContentNull      Code = 8805
	CodeResponseGenericException Code = 8506
	CodeResponseTimeout          Code = 8507
)

// Errors reported when the remote system answered 200 but the action failed.
const (
	CodeSuccessDefault                   Code = 8810
	CodeSuccessUserNotFound              Code = 8811
	CodeSuccessUserIDNotFound            Code = 8812
	CodeSuccessUserNotAuthorized         Code = 8813
	CodeSuccessServiceNotAuthorized      Code = 8814
	CodeSuccessInvalidPasswordComplexity Code = 8815
	CodeSuccessPasswordSameAsOld         Code = 8816
	CodeSuccessPasswordLastN             Code = 8817
	CodeSuccessJSONException             Code = 8818
	CodeSuccessRequiredParameter         Code = 8819
)

// 400 Bad Request errors.
const (
	CodeBadRequestNullResponse    Code = 8820
	CodeBadRequestUnhandled       Code = 8821
	CodeBadRequestInvalidResource Code = 8822
)

// Non-success HTTP status errors.
const (
	CodeStatusUnauthorized         Code = 8830
	CodeStatusForbidden            Code = 8831
	CodeStatusNotFound             Code = 8832
	CodeStatusMethodNotAllowed     Code = 8833
	CodeStatusNotAcceptable        Code = 8834
	CodeStatusRequestTimeout       Code = 8835
	CodeStatusGatewayTimeout       Code = 8836
	CodeStatusProxyAuth            Code = 8837
	CodeStatusUnsupportedMediaType Code = 8838
	CodeStatusUnhandled            Code = 8839
)

// Transport errors: no response status was ever received.
const (
	CodeWebGenericException      Code = 8840
	CodeWebNameResolutionFailure Code = 8841
	CodeWebConnectFailure        Code = 8842
	CodeWebUnhandled             Code = 8843
	CodeWebSSLTLS                Code = 8844
)

var codeNames = map[Code]string{
	CodeSuccess:         "success",
	CodeStandardDefault: "standard_default_error",

	CodeParameterPasswordEmpty:    "parameter_password_empty",
	CodeParameterInvalidLength:    "parameter_invalid_length",
	CodeParameterInvalidURI:       "parameter_invalid_uri",
	CodeNoSuchEntity:              "no_such_entity",
	CodeMandatoryParameterMissing: "mandatory_parameter_missing",

	CodeJSONSysID:                "json_sys_id_error",
	CodeJSONChange:               "json_change_error",
	CodeJSONReconcile:            "json_reconcile_error",
	CodeResponseContentNull:      "response_content_null",
	CodeResponseGenericException: "response_generic_exception",
	CodeResponseTimeout:          "response_timeout_exception",

	CodeSuccessDefault:                   "success_default_error",
	CodeSuccessUserNotFound:              "success_user_not_found",
	CodeSuccessUserIDNotFound:            "success_user_id_not_found",
	CodeSuccessUserNotAuthorized:         "success_user_not_authorized",
	CodeSuccessServiceNotAuthorized:      "success_service_not_authorized",
	CodeSuccessInvalidPasswordComplexity: "success_invalid_password_complexity",
	CodeSuccessPasswordSameAsOld:         "success_password_same_as_old",
	CodeSuccessPasswordLastN:             "success_password_last_n",
	CodeSuccessJSONException:             "success_json_exception",
	CodeSuccessRequiredParameter:         "success_required_parameter",

	CodeBadRequestNullResponse:    "bad_request_null_response",
	CodeBadRequestUnhandled:       "bad_request_unhandled",
	CodeBadRequestInvalidResource: "bad_request_invalid_resource",

	CodeStatusUnauthorized:         "status_code_unauthorized",
	CodeStatusForbidden:            "status_code_forbidden",
	CodeStatusNotFound:             "status_code_not_found",
	CodeStatusMethodNotAllowed:     "status_code_method_not_allowed",
	CodeStatusNotAcceptable:        "status_code_not_acceptable",
	CodeStatusRequestTimeout:       "status_code_request_timeout",
	CodeStatusGatewayTimeout:       "status_code_gateway_timeout",
	CodeStatusProxyAuth:            "status_code_proxy_auth",
	CodeStatusUnsupportedMediaType: "status_code_unsupported_media_type",
	CodeStatusUnhandled:            "status_code_unhandled",

	CodeWebGenericException:      "web_generic_exception",
	CodeWebNameResolutionFailure: "web_name_resolution_failure",
	CodeWebConnectFailure:        "web_connect_failure",
	CodeWebUnhandled:             "web_unhandled",
	CodeWebSSLTLS:                "web_ssl_tls_exception",
}

// Int returns the numeric encoding handed to the host.
func (c Code) Int() int {
	return int(c)
}

// String returns the registry name, or "code_<n>" for values outside the registry.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code_%d", int(c))
}

// Known reports whether c is part of the registry.
func (c Code) Known() bool {
	_, ok := codeNames[c]
	return ok
}

// Codes returns every registered code in ascending numeric order.
func Codes() []Code {
	codes := make([]Code, 0, len(codeNames))
	for c := range codeNames {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// PluginError is a classified failure carrying a stable Code. It terminates the
// action that produced it.
type PluginError struct {
	Code    Code
	Message string
	Err     error
}

func (e *PluginError) Error() string {
	return e.Message
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

// New creates a PluginError with a formatted message.
func New(code Code, format string, args ...interface{}) *PluginError {
	return &PluginError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a PluginError that keeps err as its cause.
func Wrap(code Code, err error, format string, args ...interface{}) *PluginError {
	return &PluginError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// CodeOf extracts the Code from err. nil maps to CodeSuccess and errors that were
// never classified map to CodeStandardDefault.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	var pe *PluginError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeStandardDefault
}
