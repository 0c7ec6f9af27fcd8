package mariadb

import (
	"context"
	"fmt"
	"time"
)

// ChangedPhoto is a PhotoPrism photo whose files changed after a cutoff.
type ChangedPhoto struct {
	UID       string
	FileHash  string
	UpdatedAt time.Time
}

// PhotosChangedSince returns UIDs of non-deleted photos whose primary file
// was created or updated after the cutoff. Results are ordered by UID so
// repeated calls with the same cutoff produce the same sequence.
func (p *Pool) PhotosChangedSince(ctx context.Context, since time.Time) ([]ChangedPhoto, error) {
	query := `
		SELECT ph.photo_uid, f.file_hash, GREATEST(f.created_at, f.updated_at)
		FROM photos ph
		JOIN files f ON f.photo_id = ph.id AND f.file_primary = 1
		WHERE ph.deleted_at IS NULL
		  AND (f.created_at > ? OR f.updated_at > ?)
		ORDER BY ph.photo_uid
	`

	rows, err := p.db.QueryContext(ctx, query, since, since)
	if err != nil {
		return nil, fmt.Errorf("query changed photos: %w", err)
	}
	defer rows.Close()

	var photos []ChangedPhoto
	for rows.Next() {
		var ph ChangedPhoto
		if err := rows.Scan(&ph.UID, &ph.FileHash, &ph.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		photos = append(photos, ph)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return photos, nil
}

// DeletedPhotoUIDs returns UIDs of photos soft-deleted after the cutoff.
// Their vectors are pruned and they stop counting as group members.
func (p *Pool) DeletedPhotoUIDs(ctx context.Context, since time.Time) ([]string, error) {
	query := `
		SELECT photo_uid
		FROM photos
		WHERE deleted_at IS NOT NULL AND deleted_at > ?
		ORDER BY photo_uid
	`

	rows, err := p.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("query deleted photos: %w", err)
	}
	defer rows.Close()

	var uids []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		uids = append(uids, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return uids, nil
}
