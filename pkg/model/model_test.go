package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhoneNumberAcceptsStringAndNumber(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"phoneNumber":"123456"}`, "123456"},
		{`{"phoneNumber":123456}`, "123456"},
		{`{"phoneNumber": 9876543210 }`, "9876543210"},
		{`{"phoneNumber":"+49 30 1234"}`, "+49 30 1234"},
		{`{"phoneNumber":123456.0}`, "123456"},
		{`{"phoneNumber":1.23456e5}`, "123456"},
		{`{"phoneNumber":1234560E-1}`, "123456"},
		{`{"phoneNumber":-42}`, "-42"},
		{`{"phoneNumber":12.5}`, "12.5"},
		{`{"phoneNumber":12345678901234567890}`, "12345678901234567890"},
		{`{"phoneNumber":"123456.0"}`, "123456.0"},
	}
	for _, tt := range tests {
		var request IdentifyRequest
		require.NoError(t, json.Unmarshal([]byte(tt.body), &request), tt.body)
		require.NotNil(t, request.PhoneNumber)
		assert.Equal(t, tt.want, *request.PhoneNumber.StringPtr())
	}
}

func TestPhoneNumberRejectsOtherTypes(t *testing.T) {
	for _, body := range []string{`{"phoneNumber":true}`, `{"phoneNumber":["1"]}`, `{"phoneNumber":{}}`} {
		var request IdentifyRequest
		err := json.Unmarshal([]byte(body), &request)
		assert.ErrorContains(t, err, "phoneNumber must be a string or a number", body)
	}
}

func TestMissingPhoneNumber(t *testing.T) {
	var request IdentifyRequest
	require.NoError(t, json.Unmarshal([]byte(`{"email":"a@x.com","phoneNumber":null}`), &request))
	assert.Nil(t, request.PhoneNumber.StringPtr())
	assert.Equal(t, "a@x.com", *request.Email)
}

func TestResponseShape(t *testing.T) {
	body, err := json.Marshal(IdentifyResponse{Contact: ContactTrail{
		PrimaryContactId:    1,
		Emails:              []string{"a@x.com"},
		PhoneNumbers:        []string{"111"},
		SecondaryContactIds: []int64{2},
	}})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"contact":{"primaryContactId":1,"emails":["a@x.com"],"phoneNumbers":["111"],"secondaryContactIds":[2]}}`,
		string(body))
}
