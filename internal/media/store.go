// Package media stores sighting photos and exit videos on the local
// filesystem and serves them back base64-encoded for billing submission.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidPayload indicates a photo payload that could not be decoded.
var ErrInvalidPayload = errors.New("invalid media payload")

// Store is the media collaborator the reconciliation and submission services
// depend on.
type Store interface {
	// SaveCarPhoto decodes a base64 vehicle photo and persists it,
	// returning the stored reference.
	SaveCarPhoto(ctx context.Context, encoded string) (string, error)

	// SaveEntryPhoto downloads an entry photo from its source URL.
	SaveEntryPhoto(ctx context.Context, url string) (string, error)

	// SaveExitVideo downloads an exit video and re-encodes it into a
	// browser-friendly format.
	SaveExitVideo(ctx context.Context, url string) (string, error)

	// ReadEncoded returns the stored file base64-encoded for transmission.
	ReadEncoded(ctx context.Context, ref string) (string, error)
}

// ConvertFunc re-encodes a video file. The default shells out to ffmpeg.
type ConvertFunc func(ctx context.Context, input, output string) error

// Config carries the media directories. Paths are explicit construction-time
// configuration, never ambient state.
type Config struct {
	CarImagesDir   string
	EntryImagesDir string
	ExitVideosDir  string

	// Convert overrides the video conversion step; nil uses ffmpeg.
	Convert ConvertFunc
}

// FSStore is the filesystem implementation of Store.
type FSStore struct {
	cfg     Config
	http    *http.Client
	convert ConvertFunc
	logger  *slog.Logger
}

// NewFSStore creates a filesystem media store.
func NewFSStore(cfg Config, logger *slog.Logger) *FSStore {
	convert := cfg.Convert
	if convert == nil {
		convert = FFmpegConvert
	}
	return &FSStore{
		cfg:     cfg,
		http:    &http.Client{},
		convert: convert,
		logger:  logger,
	}
}

// SaveCarPhoto decodes and stores a base64 vehicle photo.
func (s *FSStore) SaveCarPhoto(ctx context.Context, encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", fmt.Errorf("%w: decoding car photo: %v", ErrInvalidPayload, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty car photo", ErrInvalidPayload)
	}

	path := filepath.Join(s.cfg.CarImagesDir, uuid.NewString()+".jpg")
	if err := writeFile(path, data); err != nil {
		return "", fmt.Errorf("storing car photo: %w", err)
	}
	return path, nil
}

// SaveEntryPhoto downloads the entry photo from its source URL.
func (s *FSStore) SaveEntryPhoto(ctx context.Context, url string) (string, error) {
	path := filepath.Join(s.cfg.EntryImagesDir, uuid.NewString()+".jpg")
	if err := s.download(ctx, url, path); err != nil {
		return "", fmt.Errorf("%w: downloading entry photo: %v", ErrInvalidPayload, err)
	}
	return path, nil
}

// SaveExitVideo downloads the exit video and re-encodes it for browser
// playback. When conversion fails the raw download is kept so the sighting
// is not lost.
func (s *FSStore) SaveExitVideo(ctx context.Context, url string) (string, error) {
	raw := filepath.Join(s.cfg.ExitVideosDir, uuid.NewString()+".raw.mp4")
	if err := s.download(ctx, url, raw); err != nil {
		return "", fmt.Errorf("%w: downloading exit video: %v", ErrInvalidPayload, err)
	}

	converted := strings.TrimSuffix(raw, ".raw.mp4") + ".mp4"
	if err := s.convert(ctx, raw, converted); err != nil {
		s.logger.Warn("exit video conversion failed, keeping raw file",
			"path", raw, "error", err)
		return raw, nil
	}
	if err := os.Remove(raw); err != nil {
		s.logger.Warn("failed to remove raw exit video", "path", raw, "error", err)
	}
	return converted, nil
}

// ReadEncoded reads a stored file and returns it base64-encoded.
func (s *FSStore) ReadEncoded(ctx context.Context, ref string) (string, error) {
	data, err := os.ReadFile(ref)
	if err != nil {
		return "", fmt.Errorf("reading media %s: %w", ref, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (s *FSStore) download(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// FFmpegConvert re-encodes a video with the flags the street cameras' raw
// output needs to play in browsers.
func FFmpegConvert(ctx context.Context, input, output string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", input,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-movflags", "+faststart",
		"-c:a", "aac",
		"-y",
		output,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, truncate(string(out), 512))
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
