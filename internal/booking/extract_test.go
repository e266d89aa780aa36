package booking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractName(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		want      string
		ok        bool
	}{
		{name: "my name is", utterance: "My name is Ana Lopez", want: "Ana Lopez", ok: true},
		{name: "stops at conjunction", utterance: "Hi, I'm Ana and I'd like a table", want: "Ana", ok: true},
		{name: "i am", utterance: "i am Sam", want: "Sam", ok: true},
		{name: "bare name", utterance: "Ana Lopez.", want: "Ana Lopez", ok: true},
		{name: "booking talk is not a name", utterance: "I want to book a table", ok: false},
		{name: "phrase followed by booking words", utterance: "I'm booking for 4", ok: false},
		{name: "digits only", utterance: "12345", ok: false},
		{name: "empty", utterance: "  ", ok: false},
		{name: "too long", utterance: strings.Repeat("a", maxNameLength+1), ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractName(tt.utterance)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractEmail(t *testing.T) {
	got, ok := ExtractEmail("sure, it's Ana.Lopez@Example.com thanks")
	assert.True(t, ok)
	assert.Equal(t, "ana.lopez@example.com", got)

	_, ok = ExtractEmail("ana at example dot com")
	assert.False(t, ok)

	assert.True(t, ValidEmail("a@x.com"))
	assert.False(t, ValidEmail("a@x.com and more"))
	assert.False(t, ValidEmail(""))
}

func TestExtractPartySize(t *testing.T) {
	tests := []struct {
		utterance string
		want      int
		ok        bool
	}{
		{"8 people", 8, true},
		{"9 people", 0, false},
		{"0", 0, false},
		{"table for 2 please", 2, true},
		{"four of us", 4, true},
		{"just one", 1, true},
		{"twelve", 0, false},
		{"a few friends", 0, false},
		{"party of 3 at 7pm", 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			got, ok := ExtractPartySize(tt.utterance)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractSpecialRequests(t *testing.T) {
	got, ok := ExtractSpecialRequests("None")
	assert.True(t, ok)
	assert.Equal(t, "", got)

	got, ok = ExtractSpecialRequests("  window seat, it's a birthday  ")
	assert.True(t, ok)
	assert.Equal(t, "window seat, it's a birthday", got)

	_, ok = ExtractSpecialRequests("")
	assert.False(t, ok)
}
