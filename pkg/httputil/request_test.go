package httputil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	type payload struct {
		EventType string `json:"eventType"`
	}

	tests := []struct {
		name        string
		body        string
		expectError bool
	}{
		{
			name:        "valid JSON",
			body:        `{"eventType": "tool_usage"}`,
			expectError: false,
		},
		{
			name:        "invalid JSON",
			body:        `{invalid}`,
			expectError: true,
		},
		{
			name:        "unknown field",
			body:        `{"eventType": "tool_usage", "bogus": 1}`,
			expectError: true,
		},
		{
			name:        "empty body",
			body:        ``,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(tt.body))
			var dest payload

			err := ParseJSON(req, &dest)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, "tool_usage", dest.EventType)
			}
		})
	}
}

func TestParseJSON_PreservesLargeIntegers(t *testing.T) {
	type payload struct {
		Count    int64                  `json:"count"`
		Metadata map[string]interface{} `json:"metadata"`
	}

	body := `{"count": 9007199254740993, "metadata": {"bytes": 9007199254740993, "ratio": 0.5}}`
	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(body))
	var dest payload
	require.NoError(t, ParseJSON(req, &dest))

	assert.Equal(t, int64(9007199254740993), dest.Count)
	assert.Equal(t, json.Number("9007199254740993"), dest.Metadata["bytes"])
	assert.Equal(t, json.Number("0.5"), dest.Metadata["ratio"])
}

func TestParseJSONOrError(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(`{`))
	var dest map[string]interface{}

	assert.False(t, ParseJSONOrError(w, req, &dest))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid JSON")

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(`{"a":1}`))
	assert.True(t, ParseJSONOrError(w, req, &dest))
}

func TestParsePathString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/days/2024-03-15", nil)
	req = mux.SetURLVars(req, map[string]string{"date": "2024-03-15"})

	val, err := ParsePathString(req, "date")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", val)

	_, err = ParsePathString(req, "missing")
	assert.ErrorIs(t, err, ErrMissingParam)
}

func TestParseQueryInt(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		expected    int
		expectError bool
	}{
		{"present", "/dashboard?days=7", 7, false},
		{"default", "/dashboard", 30, false},
		{"invalid", "/dashboard?days=week", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			val, err := ParseQueryInt(req, "days", 30)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, val)
		})
	}
}

func TestParseRequiredQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	_, err := ParseRequiredQueryInt(req, "days")
	assert.ErrorIs(t, err, ErrMissingParam)

	req = httptest.NewRequest(http.MethodGet, "/dashboard?days=abc", nil)
	_, err = ParseRequiredQueryInt(req, "days")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingParam)

	req = httptest.NewRequest(http.MethodGet, "/dashboard?days=90", nil)
	val, err := ParseRequiredQueryInt(req, "days")
	require.NoError(t, err)
	assert.Equal(t, 90, val)
}

func TestParseQueryString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/export?format=json", nil)
	assert.Equal(t, "json", ParseQueryString(req, "format", "csv"))
	assert.Equal(t, "fallback", ParseQueryString(req, "missing", "fallback"))
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test?refresh=true&bad=maybe", nil)

	val, err := ParseQueryBool(req, "refresh", false)
	require.NoError(t, err)
	assert.True(t, val)

	val, err = ParseQueryBool(req, "missing", true)
	require.NoError(t, err)
	assert.True(t, val)

	_, err = ParseQueryBool(req, "bad", false)
	assert.Error(t, err)
}
