// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"content","content":"Hi"}`))
	require.NoError(t, err)
	assert.Equal(t, EventContent, ev.Type)
	assert.Equal(t, "Hi", ev.Content)

	ev, err = DecodeEvent([]byte(`{"type":"checkpoint","checkpoint_id":"abc"}`))
	require.NoError(t, err)
	assert.Equal(t, "abc", ev.CheckpointID)
}

func TestDecodeEvent_EscapedQuote(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"content","content":"it\'s"}`))
	require.NoError(t, err)
	assert.Equal(t, "it's", ev.Content)
}

func TestDecodeEvent_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `hello`},
		{"truncated", `{"type":"content"`},
		{"missing type", `{"content":"x"}`},
		{"empty", ``},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeEvent([]byte(tc.data))
			require.Error(t, err)
			var de *DecodeError
			assert.ErrorAs(t, err, &de)
		})
	}

	_, err := DecodeEvent([]byte(`{"content":"x"}`))
	assert.ErrorIs(t, err, ErrMissingType)
}

func TestDecodeError_TruncatesByRune(t *testing.T) {
	err := &DecodeError{Payload: strings.Repeat("é", 100), Err: ErrMissingType}

	msg := err.Error()
	assert.True(t, utf8.ValidString(msg))
	assert.Contains(t, msg, strings.Repeat("é", 77)+"...")
	assert.NotContains(t, msg, strings.Repeat("é", 78))
}

func TestDecodeURLs(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{"array", `["a.com","b.com"]`, []string{"a.com", "b.com"}, false},
		{"serialized string", `"[\"a.com\"]"`, []string{"a.com"}, false},
		{"empty array", `[]`, []string{}, false},
		{"absent", ``, []string{}, false},
		{"null", `null`, []string{}, false},
		{"empty string", `""`, []string{}, false},
		{"garbage string", `"not json"`, nil, true},
		{"number", `42`, nil, true},
		{"mixed array", `["a", 1]`, nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeURLs(json.RawMessage(tc.raw))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEventConstructors(t *testing.T) {
	data, err := SearchResultsEvent([]string{"a.com"}).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"search_results","urls":["a.com"]}`, string(data))

	data, err = EndEvent().Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"end"}`, string(data))

	ev, err := DecodeEvent(mustEncode(t, SearchStartEvent("weather")))
	require.NoError(t, err)
	assert.Equal(t, "weather", ev.Query)
	assert.True(t, ev.Type.Known())
	assert.False(t, EventType("bogus").Known())
}

func mustEncode(t *testing.T, ev Event) []byte {
	t.Helper()
	data, err := ev.Encode()
	require.NoError(t, err)
	return data
}
