package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// IdentifyRequest is the body of a POST /api/identify call. Both fields are optional, but at
// least one of them must be present. Other fields are rejected.
type IdentifyRequest struct {
	Email       *string      `json:"email,omitempty"`
	PhoneNumber *PhoneNumber `json:"phoneNumber,omitempty"`
}

// IdentifyResponse is the body of a successful POST /api/identify call.
type IdentifyResponse struct {
	Contact ContactTrail `json:"contact"`
}

// ContactTrail lists everything known about one identity.
type ContactTrail struct {
	PrimaryContactId    int64    `json:"primaryContactId"`
	Emails              []string `json:"emails"`
	PhoneNumbers        []string `json:"phoneNumbers"`
	SecondaryContactIds []int64  `json:"secondaryContactIds"`
}

// ErrorResponse is the body of every failed call.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PhoneNumber accepts both JSON strings and JSON numbers, so that {"phoneNumber": 123456} and
// {"phoneNumber": "123456"} are equivalent. Integral numbers are stored in plain decimal form, so
// 123456.0 and 1.23456e5 are the same phone number as 123456. It always marshals as a string.
type PhoneNumber string

// UnmarshalJSON implements json.Unmarshaler.
func (p *PhoneNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PhoneNumber(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("phoneNumber must be a string or a number: %w", err)
	}
	*p = PhoneNumber(canonicalNumber(n))
	return nil
}

// maxExactInteger is the largest integer a float64 holds without rounding.
const maxExactInteger = 1 << 53

// canonicalNumber writes integral numbers without fraction or exponent and keeps all other
// numbers as sent.
func canonicalNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > maxExactInteger {
		return n.String()
	}
	return strconv.FormatInt(int64(f), 10)
}

// StringPtr returns the phone number as an optional string.
func (p *PhoneNumber) StringPtr() *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}
