package sql

import (
	"context"
	"fmt"

	"datavault/backend/internal/domain"
)

// AppendDeliveryLog 追加一条投递记录
func (s *Store) AppendDeliveryLog(ctx context.Context, entry *domain.DeliveryLogEntry) error {
	query := s.rebind(`
		INSERT INTO email_logs (id, alias, sender_email, subject, forwarded_to, status, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Alias,
		entry.Sender,
		entry.Subject,
		entry.Destination,
		string(entry.Status),
		entry.Detail,
		entry.CreatedAt,
	)
	if err != nil {
		return storageErr("append delivery log", err)
	}
	return nil
}

// ListDeliveryLogs 按时间倒序列出别名的投递记录
func (s *Store) ListDeliveryLogs(ctx context.Context, alias string, limit int) ([]domain.DeliveryLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := s.rebind(fmt.Sprintf(`
		SELECT id, alias, sender_email, subject, forwarded_to, status, detail, created_at
		FROM email_logs
		WHERE alias = ?
		ORDER BY created_at DESC
		LIMIT %d
	`, limit))

	rows, err := s.db.QueryContext(ctx, query, alias)
	if err != nil {
		return nil, storageErr("list delivery logs", err)
	}
	defer rows.Close()

	entries := make([]domain.DeliveryLogEntry, 0)
	for rows.Next() {
		var entry domain.DeliveryLogEntry
		var status string
		if err := rows.Scan(
			&entry.ID,
			&entry.Alias,
			&entry.Sender,
			&entry.Subject,
			&entry.Destination,
			&status,
			&entry.Detail,
			&entry.CreatedAt,
		); err != nil {
			return nil, storageErr("scan delivery log", err)
		}
		entry.Status = domain.DeliveryStatus(status)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list delivery logs", err)
	}
	return entries, nil
}
