package oauthmodel

import "net/http"

// CallbackParameters are the values a provider sends back to the redirect URI.
// They arrive in the query string, or in the body for response_mode=form_post.
type CallbackParameters struct {
	// Code is the single-use authorization code. Empty when the provider reports an error.
	Code string

	// State echoes the value generated for the authorization request.
	State string

	// Error is the provider's error code, e.g. "access_denied".
	Error string

	// ErrorDescription is the provider's human readable error text.
	ErrorDescription string
}

// ParseCallbackParameters reads the callback parameters from r.
func ParseCallbackParameters(r *http.Request) CallbackParameters {
	return CallbackParameters{
		Code:             r.FormValue("code"),
		State:            r.FormValue("state"),
		Error:            r.FormValue("error"),
		ErrorDescription: r.FormValue("error_description"),
	}
}

// HasError reports whether the provider denied or failed the authorization.
func (p CallbackParameters) HasError() bool {
	return p.Error != ""
}
