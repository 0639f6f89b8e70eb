package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrAssetNotFound = errors.New("audio asset not found")

// Asset is a stored clip and the public url the telephony platform fetches.
type Asset struct {
	ID  string
	URL string
}

// AssetStorage keeps synthesized clips.
type AssetStorage interface {
	Put(ctx context.Context, clip *Clip) (Asset, error)
	Delete(ctx context.Context, assetID string) error
}

// LocalStorage writes clips into a directory that the HTTP layer serves under baseURL.
type LocalStorage struct {
	dir     string
	baseURL string
}

func NewLocalStorage(dir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create assets directory: %w", err)
	}

	return &LocalStorage{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStorage) Dir() string {
	return s.dir
}

func (s *LocalStorage) Put(_ context.Context, clip *Clip) (Asset, error) {
	id := uuid.NewString() + clip.Extension

	if err := os.WriteFile(filepath.Join(s.dir, id), clip.Data, 0o644); err != nil {
		return Asset{}, fmt.Errorf("failed to write audio asset: %w", err)
	}

	return Asset{ID: id, URL: s.baseURL + "/" + id}, nil
}

func (s *LocalStorage) Delete(_ context.Context, assetID string) error {
	if assetID == "" || strings.ContainsAny(assetID, `/\`) {
		return fmt.Errorf("%w: %q", ErrAssetNotFound, assetID)
	}

	err := os.Remove(filepath.Join(s.dir, assetID))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %q", ErrAssetNotFound, assetID)
	}

	return err
}
