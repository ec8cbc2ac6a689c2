package segment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusforge/docrefine/internal/document"
)

func TestRemoteSplitter_Split(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/segment", r.URL.Path)

		var req segmentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "en", req.Language)

		json.NewEncoder(w).Encode(segmentResponse{Sentences: []string{"One.", "Two."}})
	}))
	defer srv.Close()

	s, err := NewRemoteSplitter(RemoteConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	sents, err := s.Split(context.Background(), "One. Two.", document.LangEN)
	require.NoError(t, err)
	assert.Equal(t, []string{"One.", "Two."}, sents)
}

func TestRemoteSplitter_ErrorStatuses(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusRequestEntityTooLarge, ErrInputTooLarge},
		{http.StatusUnprocessableEntity, ErrUnsupportedLanguage},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		s, err := NewRemoteSplitter(RemoteConfig{BaseURL: srv.URL})
		require.NoError(t, err)

		_, err = s.Split(context.Background(), "text", document.LangEN)
		assert.ErrorIs(t, err, tc.want)
		srv.Close()
	}
}

func TestRemoteSplitter_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s, err := NewRemoteSplitter(RemoteConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = s.Split(context.Background(), "text", document.LangEN)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestNewRemoteSplitter_RequiresBaseURL(t *testing.T) {
	_, err := NewRemoteSplitter(RemoteConfig{})
	require.Error(t, err)
}
