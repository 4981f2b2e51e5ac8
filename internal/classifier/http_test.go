package classifier_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/robalyx/sentinel/internal/classifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPBackendPredict(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice: hello there", body["text"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"grooming_probability":0.82,"confidence":0.91,"predicted_class":1}`))
	}))
	t.Cleanup(server.Close)

	backend := classifier.NewHTTPBackend(classifier.HTTPConfig{BaseURL: server.URL, APIKey: "secret"})

	prediction, err := backend.Predict(t.Context(), "alice: hello there")
	require.NoError(t, err)
	assert.InDelta(t, 0.82, prediction.GroomingProbability, 1e-9)
	assert.InDelta(t, 0.91, prediction.Confidence, 1e-9)
	assert.Equal(t, 1, prediction.PredictedClass)
}

func TestHTTPBackendErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	backend := classifier.NewHTTPBackend(classifier.HTTPConfig{BaseURL: server.URL})

	_, err := backend.Predict(t.Context(), "hello there")
	require.Error(t, err)
	assert.ErrorIs(t, err, classifier.ErrBackendStatus)
}
