package media_test

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parklinehq/parkline/internal/media"
)

func newStore(t *testing.T, convert media.ConvertFunc) *media.FSStore {
	t.Helper()
	dir := t.TempDir()
	return media.NewFSStore(media.Config{
		CarImagesDir:   filepath.Join(dir, "car_images"),
		EntryImagesDir: filepath.Join(dir, "entry_images"),
		ExitVideosDir:  filepath.Join(dir, "exit_videos"),
		Convert:        convert,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSaveCarPhotoRoundTrip(t *testing.T) {
	s := newStore(t, nil)
	ctx := context.Background()

	payload := []byte("jpeg bytes here")
	ref, err := s.SaveCarPhoto(ctx, base64.StdEncoding.EncodeToString(payload))
	require.NoError(t, err)
	require.FileExists(t, ref)

	encoded, err := s.ReadEncoded(ctx, ref)
	require.NoError(t, err)
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	require.Equal(t, payload, decoded)
}

func TestSaveCarPhotoInvalidBase64(t *testing.T) {
	s := newStore(t, nil)
	_, err := s.SaveCarPhoto(context.Background(), "!!not-base64!!")
	require.ErrorIs(t, err, media.ErrInvalidPayload)
}

func TestSaveCarPhotoEmpty(t *testing.T) {
	s := newStore(t, nil)
	_, err := s.SaveCarPhoto(context.Background(), "")
	require.ErrorIs(t, err, media.ErrInvalidPayload)
}

func TestSaveEntryPhotoDownloads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "entry photo bytes")
	}))
	defer srv.Close()

	s := newStore(t, nil)
	ref, err := s.SaveEntryPhoto(context.Background(), srv.URL+"/cam/entry.jpg")
	require.NoError(t, err)

	data, err := os.ReadFile(ref)
	require.NoError(t, err)
	require.Equal(t, "entry photo bytes", string(data))
}

func TestSaveEntryPhotoBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := newStore(t, nil)
	_, err := s.SaveEntryPhoto(context.Background(), srv.URL+"/missing.jpg")
	require.ErrorIs(t, err, media.ErrInvalidPayload)
}

func TestSaveExitVideoConverts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "raw video")
	}))
	defer srv.Close()

	var convertedFrom string
	convert := func(ctx context.Context, input, output string) error {
		convertedFrom = input
		return os.WriteFile(output, []byte("converted video"), 0o644)
	}

	s := newStore(t, convert)
	ref, err := s.SaveExitVideo(context.Background(), srv.URL+"/exit.mp4")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(ref, ".mp4"))
	require.False(t, strings.HasSuffix(ref, ".raw.mp4"))

	data, err := os.ReadFile(ref)
	require.NoError(t, err)
	require.Equal(t, "converted video", string(data))

	// The raw download is cleaned up after conversion.
	require.NoFileExists(t, convertedFrom)
}

func TestSaveExitVideoKeepsRawOnConversionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "raw video")
	}))
	defer srv.Close()

	convert := func(ctx context.Context, input, output string) error {
		return context.DeadlineExceeded
	}

	s := newStore(t, convert)
	ref, err := s.SaveExitVideo(context.Background(), srv.URL+"/exit.mp4")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(ref, ".raw.mp4"))
	require.FileExists(t, ref)
}

func TestReadEncodedMissingFile(t *testing.T) {
	s := newStore(t, nil)
	_, err := s.ReadEncoded(context.Background(), filepath.Join(t.TempDir(), "nope.jpg"))
	require.Error(t, err)
}
