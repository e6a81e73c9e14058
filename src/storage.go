package src

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const assetBucket = "project-assets"

// AssetStorage uploads uploaded user assets (logos, photos) to a
// Supabase storage bucket and hands back public URLs that generated code
// can reference directly.
type AssetStorage struct {
	baseURL    string
	serviceKey string
	client     *http.Client
	log        *slog.Logger
}

func NewAssetStorage(baseURL, serviceKey string, log *slog.Logger) *AssetStorage {
	if log == nil {
		log = slog.Default()
	}
	return &AssetStorage{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		client:     &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

// Upload stores the payload under the given name in the asset bucket and
// returns its public URL. The bucket is created on first use.
func (s *AssetStorage) Upload(ctx context.Context, name, contentType string, payload []byte) (string, error) {
	s.ensureBucket(ctx)

	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, assetBucket, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", WrapErr(ErrCodePersistence, err, "asset upload")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", E(ErrCodePersistence, "asset upload failed with status %d: %s", resp.StatusCode, body)
	}

	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, assetBucket, name), nil
}

// ensureBucket creates the public asset bucket. A conflict response means
// it already exists; any other failure is logged and left for the upload
// itself to surface.
func (s *AssetStorage) ensureBucket(ctx context.Context) {
	body := strings.NewReader(fmt.Sprintf(`{"id": %q, "name": %q, "public": true}`, assetBucket, assetBucket))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/storage/v1/bucket", body)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn("bucket create request failed", "bucket", assetBucket, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusConflict {
		s.log.Warn("bucket create rejected", "bucket", assetBucket, "status", resp.StatusCode)
	}
}
