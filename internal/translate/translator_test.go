package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/farmrag/backend/pkg/httpx"
)

func testHTTPClient() *httpx.Client {
	return httpx.New(httpx.Config{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
	})
}

func translateServer(t *testing.T, translate func(string) string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Texts  []string `json:"q"`
			Target string   `json:"target"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type item struct {
			TranslatedText string `json:"translatedText"`
		}
		translations := make([]item, len(req.Texts))
		for i, text := range req.Texts {
			translations[i] = item{TranslatedText: translate(text)}
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"translations": translations},
		})
	}))
}

func TestTranslateBatch_PreservesOrderAndLength(t *testing.T) {
	server := translateServer(t, func(s string) string { return "hi:" + s })
	defer server.Close()

	tr := NewTranslator(testHTTPClient(), server.URL, "key", nil)

	texts := []string{"hello", "blight", "irrigation"}
	out := tr.TranslateBatch(context.Background(), texts, "hi")

	require.Equal(t, []string{"hi:hello", "hi:blight", "hi:irrigation"}, out)
}

func TestTranslateBatch_EnglishTargetSkipsCall(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	tr := NewTranslator(testHTTPClient(), server.URL, "key", nil)

	texts := []string{"hello"}
	require.Equal(t, texts, tr.TranslateBatch(context.Background(), texts, "en"))
	require.Equal(t, texts, tr.TranslateBatch(context.Background(), texts, "EN"))
	require.Equal(t, texts, tr.TranslateBatch(context.Background(), texts, ""))
	require.False(t, called)
}

func TestTranslateBatch_UnconfiguredReturnsInput(t *testing.T) {
	tr := NewTranslator(testHTTPClient(), "", "", nil)

	texts := []string{"hello", "world"}
	require.Equal(t, texts, tr.TranslateBatch(context.Background(), texts, "hi"))
}

func TestTranslateBatch_ServerErrorFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	tr := NewTranslator(testHTTPClient(), server.URL, "key", nil)

	texts := []string{"hello", "world"}
	require.Equal(t, texts, tr.TranslateBatch(context.Background(), texts, "hi"))
}

func TestTranslateBatch_CountMismatchFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"translations": []map[string]string{{"translatedText": "only one"}},
			},
		})
	}))
	defer server.Close()

	tr := NewTranslator(testHTTPClient(), server.URL, "key", nil)

	texts := []string{"hello", "world"}
	require.Equal(t, texts, tr.TranslateBatch(context.Background(), texts, "hi"))
}

func TestTranslateBatch_UnreachableEndpointFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	tr := NewTranslator(testHTTPClient(), server.URL, "key", nil)

	texts := []string{"hello"}
	require.Equal(t, texts, tr.TranslateBatch(context.Background(), texts, "hi"))
}

func TestTranslateFields_InPlaceRedistribution(t *testing.T) {
	server := translateServer(t, func(s string) string { return "bn:" + s })
	defer server.Close()

	tr := NewTranslator(testHTTPClient(), server.URL, "key", nil)

	name := "Late Blight"
	description := "A fungal disease"
	remedy := "Apply copper spray"
	tr.TranslateFields(context.Background(), []*string{&name, &description, &remedy}, "bn")

	require.Equal(t, "bn:Late Blight", name)
	require.Equal(t, "bn:A fungal disease", description)
	require.Equal(t, "bn:Apply copper spray", remedy)
}

func TestTranslateBatch_SendsBearerToken(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"translations": []map[string]string{{"translatedText": "x"}},
			},
		})
	}))
	defer server.Close()

	tr := NewTranslator(testHTTPClient(), server.URL, "secret", nil)
	tr.TranslateBatch(context.Background(), []string{"hello"}, "hi")

	require.Equal(t, "Bearer secret", auth)
}
