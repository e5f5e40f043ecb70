package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/docqa-backend/internal/platform/logger"
)

type legacySessionRow struct {
	ID      string
	FileIDs string
}

// MigrateLegacySessionFileIDs rewrites chat_sessions.file_ids values that are
// not a JSON array of strings into one. Two legacy shapes exist: a list
// literal using single quotes (['a', 'b']) and a bare id. Returns the number
// of rows rewritten. Safe to run repeatedly.
func MigrateLegacySessionFileIDs(ctx context.Context, db *gorm.DB, logg *logger.Logger) (int, error) {
	var rows []legacySessionRow
	if err := db.WithContext(ctx).
		Table("chat_sessions").
		Select("id, CAST(file_ids AS TEXT) AS file_ids").
		Scan(&rows).Error; err != nil {
		return 0, fmt.Errorf("scan chat_sessions: %w", err)
	}

	migrated := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			if isCanonicalIDList(row.FileIDs) {
				continue
			}
			ids := ParseLegacyFileIDs(row.FileIDs)
			b, err := json.Marshal(ids)
			if err != nil {
				return err
			}
			if err := tx.Table("chat_sessions").
				Where("id = ?", row.ID).
				Update("file_ids", string(b)).Error; err != nil {
				return fmt.Errorf("update session %s: %w", row.ID, err)
			}
			logg.Info("Migrated legacy session file ids", "session", row.ID, "from", row.FileIDs, "to", string(b))
			migrated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return migrated, nil
}

func isCanonicalIDList(raw string) bool {
	var ids []string
	return json.Unmarshal([]byte(raw), &ids) == nil && ids != nil
}

// ParseLegacyFileIDs decodes the pre-JSON encodings of a session's file ids.
func ParseLegacyFileIDs(raw string) []string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return []string{}
	}
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return []string{strings.Trim(s, `'"`)}
	}
	out := []string{}
	for _, part := range strings.Split(s[1:len(s)-1], ",") {
		id := strings.Trim(strings.TrimSpace(part), `'"`)
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
