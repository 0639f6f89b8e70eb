package audio

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const (
	defaultInlineTimeout   = 3 * time.Second
	defaultInlineCacheSize = 1024
)

// InlineRenderer synthesizes text during a call. It makes a single short attempt, since the caller
// is waiting, and keeps the most recently used assets. Assets pushed out of the cache are deleted
// from storage.
type InlineRenderer struct {
	synthesizer Synthesizer
	storage     AssetStorage
	logger      *slog.Logger
	timeout     time.Duration
	maxEntries  int

	group singleflight.Group
	cache *lru.Cache[string, Asset]
}

type InlineOption func(*InlineRenderer)

func WithInlineTimeout(timeout time.Duration) InlineOption {
	return func(r *InlineRenderer) {
		r.timeout = timeout
	}
}

func WithCacheSize(entries int) InlineOption {
	return func(r *InlineRenderer) {
		r.maxEntries = entries
	}
}

func NewInlineRenderer(synthesizer Synthesizer, storage AssetStorage, logger *slog.Logger, opts ...InlineOption) *InlineRenderer {
	r := &InlineRenderer{
		synthesizer: synthesizer,
		storage:     storage,
		logger:      logger.With("module", "inline_speech"),
		timeout:     defaultInlineTimeout,
		maxEntries:  defaultInlineCacheSize,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.maxEntries <= 0 {
		r.maxEntries = defaultInlineCacheSize
	}

	// lru only rejects non-positive sizes.
	r.cache, _ = lru.NewWithEvict(r.maxEntries, r.evict)

	return r
}

func (r *InlineRenderer) Render(ctx context.Context, text, voice, language string) (string, error) {
	if text == "" {
		return "", ErrEmptyText
	}

	key := cacheKey(text, voice, language)

	if asset, ok := r.cache.Get(key); ok {
		return asset.URL, nil
	}

	// The render is shared by every caller waiting on the same key, so it must outlive the first one.
	result, err, _ := r.group.Do(key, func() (any, error) {
		renderCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		clip, err := r.synthesizer.Synthesize(renderCtx, SynthesisRequest{Text: text, Voice: voice, Language: language})
		if err != nil {
			return "", err
		}

		asset, err := r.storage.Put(renderCtx, clip)
		if err != nil {
			return "", err
		}

		r.cache.Add(key, asset)

		return asset.URL, nil
	})
	if err != nil {
		return "", err
	}

	return result.(string), nil
}

func (r *InlineRenderer) evict(_ string, asset Asset) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.storage.Delete(ctx, asset.ID); err != nil {
		r.logger.WarnContext(ctx, "failed to delete evicted inline asset", "asset_id", asset.ID, "error", err)
	}
}

func cacheKey(text, voice, language string) string {
	sum := sha256.Sum256([]byte(voice + "\x00" + language + "\x00" + text))

	return hex.EncodeToString(sum[:])
}
