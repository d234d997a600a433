package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitter_InvalidFormMakesNoRequest(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := NewSubmitter(srv.URL, "token", nil, nil)

	for _, form := range []Form{
		func() Form { f := validForm(); f.Name = ""; return f }(),
		func() Form { f := validForm(); f.Email = "a@b"; return f }(),
		func() Form { f := validForm(); f.PreferredDate = "2026-03-10"; return f }(),
	} {
		_, err := s.Submit(context.Background(), form, fixedNow)
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr))
	}
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestSubmitter_PostsTrimmedRecordOnce(t *testing.T) {
	var calls int32
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	form := validForm()
	form.Name = "  Ada Lovelace "
	form.PreferredDate = "2026-03-13"

	rec, err := NewSubmitter(srv.URL, "token", nil, nil).Submit(context.Background(), form, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", rec.Name)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	assert.Equal(t, map[string]any{
		"name":                "Ada Lovelace",
		"email":               "ada@example.com",
		"phone":               nil,
		"project_description": "A booking site for my studio.",
		"preferred_date":      "2026-03-13",
	}, got)
}

func TestSubmitter_ErrorResponses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "error field", status: http.StatusBadRequest, body: `{"error":"Duplicate request"}`, wantMsg: "Duplicate request"},
		{name: "empty body", status: http.StatusInternalServerError, body: "", wantMsg: GenericSubmitMessage},
		{name: "non json body", status: http.StatusBadGateway, body: "<html>bad gateway</html>", wantMsg: GenericSubmitMessage},
		{name: "json without error", status: http.StatusForbidden, body: `{"message":"nope"}`, wantMsg: GenericSubmitMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewSubmitter(srv.URL, "", nil, nil).Submit(context.Background(), validForm(), fixedNow)
			var serr *SubmitError
			require.True(t, errors.As(err, &serr))
			assert.Equal(t, tt.status, serr.StatusCode)
			assert.Equal(t, tt.wantMsg, serr.Message)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "no retry")
		})
	}
}

func TestSubmitter_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewSubmitter(url, "", nil, nil).Submit(context.Background(), validForm(), fixedNow)
	var serr *SubmitError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, GenericSubmitMessage, serr.Message)
	assert.Error(t, errors.Unwrap(serr))
}
