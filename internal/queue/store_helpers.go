package queue

import (
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "id, image_ref, status, student_id, student_name, auto_assigned, identification_json, page_type, continuation_of, page_rank, result_json, error_message, notes, created_at, updated_at, last_heartbeat"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id               int64
		imageRef         string
		statusStr        string
		studentID        sql.NullString
		studentName      sql.NullString
		autoAssigned     sql.NullInt64
		identification   sql.NullString
		pageType         sql.NullString
		continuationOf   sql.NullInt64
		pageRank         sql.NullInt64
		resultJSON       sql.NullString
		errorMessage     sql.NullString
		notes            sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		lastHeartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&imageRef,
		&statusStr,
		&studentID,
		&studentName,
		&autoAssigned,
		&identification,
		&pageType,
		&continuationOf,
		&pageRank,
		&resultJSON,
		&errorMessage,
		&notes,
		&createdRaw,
		&updatedRaw,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:                 id,
		ImageRef:           imageRef,
		Status:             Status(statusStr),
		StudentID:          studentID.String,
		StudentName:        studentName.String,
		IdentificationJSON: identification.String,
		PageType:           PagePrimary,
		ContinuationOf:     continuationOf.Int64,
		PageRank:           pageRank.Int64,
		ResultJSON:         resultJSON.String,
		ErrorMessage:       errorMessage.String,
		Notes:              notes.String,
	}
	if autoAssigned.Valid {
		item.AutoAssigned = autoAssigned.Int64 != 0
	}
	if pageType.Valid && pageType.String != "" {
		item.PageType = PageType(pageType.String)
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableID(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
