package twilio

import (
	"fmt"
	"net/http"
	"strconv"
)

// InboundSMS is a parsed message webhook delivery.
type InboundSMS struct {
	MessageSID string
	From       string
	To         string
	Body       string
	Media      []string
}

// StatusCallback is a parsed delivery-status webhook delivery. For
// message callbacks CallSID is empty; for voice callbacks MessageSID is.
type StatusCallback struct {
	MessageSID string
	CallSID    string
	Status     string
}

// InboundCall is a parsed inbound-voice webhook delivery.
type InboundCall struct {
	CallSID string
	From    string
	To      string
	Status  string
}

// ParseInboundSMS reads a message webhook's form body. Media URLs arrive
// as MediaUrl0..MediaUrlN-1 with NumMedia giving the count.
func ParseInboundSMS(r *http.Request) (*InboundSMS, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("parsing webhook form: %w", err)
	}

	msg := &InboundSMS{
		MessageSID: r.PostFormValue("MessageSid"),
		From:       r.PostFormValue("From"),
		To:         r.PostFormValue("To"),
		Body:       r.PostFormValue("Body"),
	}

	n, _ := strconv.Atoi(r.PostFormValue("NumMedia"))
	for i := 0; i < n; i++ {
		if u := r.PostFormValue(fmt.Sprintf("MediaUrl%d", i)); u != "" {
			msg.Media = append(msg.Media, u)
		}
	}
	return msg, nil
}

// ParseStatusCallback reads a message or call status webhook's form body.
func ParseStatusCallback(r *http.Request) (*StatusCallback, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("parsing status form: %w", err)
	}
	cb := &StatusCallback{
		MessageSID: r.PostFormValue("MessageSid"),
		CallSID:    r.PostFormValue("CallSid"),
		Status:     r.PostFormValue("MessageStatus"),
	}
	if cb.Status == "" {
		cb.Status = r.PostFormValue("CallStatus")
	}
	return cb, nil
}

// ParseInboundCall reads a voice webhook's form body.
func ParseInboundCall(r *http.Request) (*InboundCall, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("parsing call form: %w", err)
	}
	return &InboundCall{
		CallSID: r.PostFormValue("CallSid"),
		From:    r.PostFormValue("From"),
		To:      r.PostFormValue("To"),
		Status:  r.PostFormValue("CallStatus"),
	}, nil
}
