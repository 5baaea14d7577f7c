package twilio

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
)

// Validator checks X-Twilio-Signature headers so only the provider can
// hit the webhooks. The signature is HMAC-SHA1 over the full request URL
// concatenated with every POST param's name and value in alphabetical
// order, base64 encoded, keyed with the account auth token.
type Validator struct {
	authToken string
}

// NewValidator creates a webhook signature validator.
func NewValidator(authToken string) *Validator {
	return &Validator{authToken: authToken}
}

// Sign computes the expected signature for a request URL and its form
// params.
func (v *Validator) Sign(requestURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mac := hmac.New(sha1.New, []byte(v.authToken))
	mac.Write([]byte(requestURL))
	for _, k := range keys {
		// Twilio signs only the first value of repeated params.
		mac.Write([]byte(k))
		mac.Write([]byte(params.Get(k)))
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Validate reports whether the header signature matches the request.
// Comparison is constant time.
func (v *Validator) Validate(requestURL string, params url.Values, signature string) bool {
	expected := v.Sign(requestURL, params)
	return hmac.Equal([]byte(expected), []byte(signature))
}
