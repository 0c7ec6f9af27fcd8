package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// photoPageSize is how many photos a single listing request asks for.
const photoPageSize = 500

// Photos retrieves a page of photos from PhotoPrism
// Query examples: "label:cat", "year:2024". Order examples: "newest", "oldest", "added".
func (c *Client) Photos(ctx context.Context, count, offset int, query, order string) ([]Photo, error) {
	endpoint := fmt.Sprintf("photos?count=%d&offset=%d", count, offset)
	if query != "" {
		endpoint += "&q=" + url.QueryEscape(query)
	}
	if order != "" {
		endpoint += "&order=" + url.QueryEscape(order)
	}

	result, err := doGetJSON[[]Photo](ctx, c, endpoint)
	if err != nil {
		return nil, err
	}
	return *result, nil
}

// AllPhotos walks the photo listing until a short page signals the end.
// Only image-type photos are returned; videos and sidecars are skipped.
func (c *Client) AllPhotos(ctx context.Context) ([]Photo, error) {
	var all []Photo
	offset := 0

	for {
		page, err := c.Photos(ctx, photoPageSize, offset, "", "added")
		if err != nil {
			return nil, fmt.Errorf("could not list photos at offset %d: %w", offset, err)
		}

		for _, p := range page {
			if p.Type == "" || p.Type == "image" {
				all = append(all, p)
			}
		}

		if len(page) < photoPageSize {
			return all, nil
		}
		offset += len(page)
	}
}

// GetPhoto retrieves a single photo by UID
func (c *Client) GetPhoto(ctx context.Context, photoUID string) (*Photo, error) {
	return doGetJSON[Photo](ctx, c, "photos/"+photoUID)
}

// GetPhotoDetails retrieves full photo details including the file list
func (c *Client) GetPhotoDetails(ctx context.Context, photoUID string) (map[string]any, error) {
	result, err := doGetJSON[map[string]any](ctx, c, "photos/"+photoUID)
	if err != nil {
		return nil, err
	}
	return *result, nil
}

// IsPhotoDeleted checks if a photo details response indicates the photo has
// been soft-deleted. PhotoPrism sets DeletedAt to a non-empty timestamp
// string when a photo is archived or deleted.
func IsPhotoDeleted(details map[string]any) bool {
	deletedAt, ok := details["DeletedAt"]
	if !ok {
		return false
	}
	if str, ok := deletedAt.(string); ok && str != "" {
		return true
	}
	return false
}

// findPrimaryFile finds the primary file map from the Files array in photo details.
func findPrimaryFile(files []any) map[string]any {
	for _, f := range files {
		file, ok := f.(map[string]any)
		if !ok {
			continue
		}
		if primary, ok := file["Primary"].(bool); ok && primary {
			return file
		}
	}
	if first, ok := files[0].(map[string]any); ok {
		return first
	}
	return nil
}

// findPrimaryFileHash extracts the hash of the primary file from photo details.
func findPrimaryFileHash(details map[string]any) string {
	files, ok := details["Files"].([]any)
	if !ok || len(files) == 0 {
		return ""
	}
	primaryFile := findPrimaryFile(files)
	if primaryFile == nil {
		return ""
	}
	hash, _ := primaryFile["Hash"].(string)
	return hash
}

// Download fetches the primary file content for a photo.
// Feature extraction must always see the primary file so repeated scans
// of an unchanged photo hash to the same content.
func (c *Client) Download(ctx context.Context, photoUID string) ([]byte, string, error) {
	details, err := c.GetPhotoDetails(ctx, photoUID)
	if err != nil {
		return nil, "", fmt.Errorf("could not get photo details: %w", err)
	}

	fileHash := findPrimaryFileHash(details)
	if fileHash == "" {
		return nil, "", errors.New("could not find file hash for photo")
	}

	return c.DownloadByHash(ctx, fileHash)
}

// DownloadByHash downloads a file using its hash via the /api/v1/dl/{hash} endpoint
func (c *Client) DownloadByHash(ctx context.Context, fileHash string) ([]byte, string, error) {
	url := fmt.Sprintf("%s/dl/%s?t=%s", c.Url, fileHash, c.downloadToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("could not create request: %w", err)
	}

	// This endpoint authenticates via the download token in the URL
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("request failed with status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("could not read response body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	return data, contentType, nil
}

// Thumbnail downloads a thumbnail for a photo
// size can be one of: tile_224, tile_500, fit_720, fit_1280, fit_1920, fit_2048
func (c *Client) Thumbnail(ctx context.Context, thumbHash string, size string) ([]byte, string, error) {
	url := fmt.Sprintf("%s/t/%s/%s/%s", c.Url, thumbHash, c.downloadToken, size)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("could not create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("request failed with status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("could not read response body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	return data, contentType, nil
}

// EditPhoto updates photo metadata
func (c *Client) EditPhoto(ctx context.Context, photoUID string, updates PhotoUpdate) (*Photo, error) {
	return doPutJSON[Photo](ctx, c, "photos/"+photoUID, updates)
}

// AddPhotoLabel adds a label/tag to a photo
func (c *Client) AddPhotoLabel(ctx context.Context, photoUID string, label PhotoLabel) (*Photo, error) {
	return doPostJSON[Photo](ctx, c, fmt.Sprintf("photos/%s/label", photoUID), label)
}

// ArchivePhotos archives (soft-deletes) multiple photos by their UIDs
func (c *Client) ArchivePhotos(ctx context.Context, photoUIDs []string) error {
	if len(photoUIDs) == 0 {
		return nil
	}

	selection := struct {
		Photos []string `json:"photos"`
	}{
		Photos: photoUIDs,
	}

	return doRequestRaw(ctx, c, http.MethodPost, "batch/photos/archive", selection)
}
