package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelsen/vision-consensus/internal/config"
	"github.com/avelsen/vision-consensus/internal/media"
	"github.com/avelsen/vision-consensus/internal/output"
	"github.com/avelsen/vision-consensus/internal/provider"
	"github.com/avelsen/vision-consensus/internal/runner"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func newTestServer(t *testing.T, setup func(*provider.Registry)) *Server {
	t.Helper()

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Models = []string{"model-a", "model-b"}

	reg := provider.NewRegistry()
	setup(reg)

	r := runner.New(reg, 5*time.Second, zerolog.Nop())
	return New(cfg, r, zerolog.Nop())
}

func fixedAnswer(text string) provider.Provider {
	return provider.ProviderFunc(func(ctx context.Context, req provider.Request) (provider.Response, error) {
		return provider.Response{Model: req.Model, Content: text}, nil
	})
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func postAnalyze(t *testing.T, s *Server, fields map[string]string, files map[string][]byte) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartBody(t, fields, files)
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleAnalyze_Individual(t *testing.T) {
	s := newTestServer(t, func(reg *provider.Registry) {
		reg.Register("model-a", fixedAnswer("A"))
		reg.Register("model-b", fixedAnswer("A"))
	})

	rec := postAnalyze(t, s, nil, map[string][]byte{"q1.png": pngBytes})
	require.Equal(t, http.StatusOK, rec.Code)

	var got output.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Images, 1)
	assert.Equal(t, "q1.png", got.Images[0].Filename)
	require.Len(t, got.Images[0].Answers, 2)
	for _, a := range got.Images[0].Answers {
		assert.Equal(t, "consensus", string(a.Status))
	}
}

func TestHandleAnalyze_BatchReportsCallsSaved(t *testing.T) {
	s := newTestServer(t, func(reg *provider.Registry) {
		reg.Register("model-a", fixedAnswer("Image one.png: A\nImage two.png: B"))
		reg.Register("model-b", fixedAnswer("Image one.png: A\nImage two.png: B"))
	})

	rec := postAnalyze(t, s, map[string]string{"mode": "batch"}, map[string][]byte{
		"one.png": pngBytes,
		"two.png": pngBytes,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var got output.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	// 2 images x 2 models = 4 individual calls, batch made 2.
	assert.Equal(t, 2, got.CallsSaved)
	assert.Len(t, got.Images, 2)
}

func TestHandleAnalyze_BadUploadIsPerImage(t *testing.T) {
	s := newTestServer(t, func(reg *provider.Registry) {
		reg.Register("model-a", fixedAnswer("A"))
		reg.Register("model-b", fixedAnswer("A"))
	})

	rec := postAnalyze(t, s, nil, map[string][]byte{
		"good.png": pngBytes,
		"notes.txt": []byte("plain text, not an image"),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var got output.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Images, 2)

	byName := map[string]runner.ImageResult{}
	for _, img := range got.Images {
		byName[img.Filename] = img
	}
	assert.NotEmpty(t, byName["notes.txt"].ProcessingError)
	assert.Empty(t, byName["notes.txt"].Answers)
	assert.Empty(t, byName["good.png"].ProcessingError)
	assert.Len(t, byName["good.png"].Answers, 2)
}

func TestHandleAnalyze_Rejections(t *testing.T) {
	s := newTestServer(t, func(reg *provider.Registry) {
		reg.Register("model-a", fixedAnswer("A"))
		reg.Register("model-b", fixedAnswer("A"))
	})

	t.Run("no images", func(t *testing.T) {
		rec := postAnalyze(t, s, map[string]string{"prompt": "hi"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown mode", func(t *testing.T) {
		rec := postAnalyze(t, s, map[string]string{"mode": "bulk"}, map[string][]byte{"q.png": pngBytes})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("too many images", func(t *testing.T) {
		files := map[string][]byte{}
		for i := 0; i <= media.MaxImages; i++ {
			files[string(rune('a'+i))+".png"] = pngBytes
		}
		rec := postAnalyze(t, s, nil, files)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleAnalyze_ModelFailureStillResponds(t *testing.T) {
	s := newTestServer(t, func(reg *provider.Registry) {
		reg.Register("model-a", fixedAnswer("A"))
		reg.Register("model-b", provider.ProviderFunc(func(ctx context.Context, req provider.Request) (provider.Response, error) {
			return provider.Response{}, errors.New("vendor down")
		}))
	})

	rec := postAnalyze(t, s, nil, map[string][]byte{"q.png": pngBytes})
	require.Equal(t, http.StatusOK, rec.Code)

	var got output.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Images[0].Answers, 2)

	statuses := map[string]string{}
	for _, a := range got.Images[0].Answers {
		statuses[a.Model] = string(a.Status)
	}
	assert.Equal(t, "consensus", statuses["model-a"])
	assert.Equal(t, "error", statuses["model-b"])
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, func(reg *provider.Registry) {})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
