package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMessagesEncodesJSON(t *testing.T) {
	msgs, err := Messages([]Event{
		{Key: "run-1", Value: sample{Name: "tfidf", Count: 3}},
		{Key: "run-2", Value: map[string]int{"a": 1}},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "run-1", string(msgs[0].Key))
	require.Len(t, msgs[0].Headers, 1)
	assert.Equal(t, "application/json", string(msgs[0].Headers[0].Value))
	assert.JSONEq(t, `{"name":"tfidf","count":3}`, string(msgs[0].Value))

	decoded, err := DecodeJSON[sample](msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, sample{Name: "tfidf", Count: 3}, decoded)
}

func TestMessagesRejectsUnencodable(t *testing.T) {
	_, err := Messages([]Event{{Key: "x", Value: make(chan int)}})
	assert.ErrorContains(t, err, "marshaling event value")
}

func TestDecodeJSONError(t *testing.T) {
	_, err := DecodeJSON[sample]([]byte("{"))
	assert.ErrorContains(t, err, "decoding kafka message")
}
