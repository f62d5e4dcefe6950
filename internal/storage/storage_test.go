package storage_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/image-blur/internal/storage"
)

type stubOpener struct {
	name    string
	opened  []string
	deleted []string
}

func (s *stubOpener) Open(_ context.Context, locator string) (io.ReadCloser, error) {
	s.opened = append(s.opened, locator)
	return io.NopCloser(strings.NewReader(s.name)), nil
}

func (s *stubOpener) Delete(_ context.Context, locator string) error {
	s.deleted = append(s.deleted, locator)
	return nil
}

func TestScheme(t *testing.T) {
	tests := []struct {
		locator string
		want    string
	}{
		{"/tmp/image.png", "file"},
		{"relative/image.png", "file"},
		{"file:///tmp/image.png", "file"},
		{"S3://bucket/key.png", "s3"},
		{"content://valid/image.png", "content"},
	}

	for _, tt := range tests {
		t.Run(tt.locator, func(t *testing.T) {
			got, err := storage.Scheme(tt.locator)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := storage.Scheme("   ")
	assert.ErrorIs(t, err, storage.ErrInvalidLocator)
}

func TestMux(t *testing.T) {
	files := &stubOpener{name: "file"}
	objects := &stubOpener{name: "s3"}

	m := storage.NewMux()
	m.Handle("file", files)
	m.Handle("s3", objects)

	t.Run("dispatches by scheme", func(t *testing.T) {
		rc, err := m.Open(context.Background(), "s3://bucket/a.png")
		require.NoError(t, err)
		defer rc.Close()

		b, _ := io.ReadAll(rc)
		assert.Equal(t, "s3", string(b))
		assert.Equal(t, []string{"s3://bucket/a.png"}, objects.opened)
	})

	t.Run("plain paths go to the file opener", func(t *testing.T) {
		rc, err := m.Open(context.Background(), "/tmp/a.png")
		require.NoError(t, err)
		rc.Close()

		assert.Contains(t, files.opened, "/tmp/a.png")
	})

	t.Run("unknown scheme", func(t *testing.T) {
		_, err := m.Open(context.Background(), "content://missing/file.png")
		assert.ErrorIs(t, err, storage.ErrUnsupportedLocator)
	})

	t.Run("Delete dispatches by scheme", func(t *testing.T) {
		require.NoError(t, m.Delete(context.Background(), "s3://bucket/out.png"))
		require.NoError(t, m.Delete(context.Background(), "file:///tmp/out.png"))

		assert.Equal(t, []string{"s3://bucket/out.png"}, objects.deleted)
		assert.Equal(t, []string{"file:///tmp/out.png"}, files.deleted)

		err := m.Delete(context.Background(), "content://valid/image.png")
		assert.ErrorIs(t, err, storage.ErrUnsupportedLocator)
	})
}
