// Package servicenow talks to the ServiceNow Table API on behalf of a single
// credential action.
//
// The package has three layers:
//
//   - Client issues exactly one HTTP call per method (Lookup, SetPassword) and
//     never returns an error. Every attempt is reported as an Outcome.
//   - Outcome is a closed set of four variants: Success, APIError, HTTPError and
//     TransportError. Match dispatches over all of them and panics on anything
//     else.
//   - Classify turns an Outcome into either a decoded payload or a
//     *dserrors.PluginError carrying a stable result code.
//
// Addresses supplied by the host are always rewritten to https without an
// explicit port (NormalizeAddress) before use.
package servicenow
