package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/set-night/agentchat/internal/domain"
)

// sqliteTimeLayout is fixed width so lexical order matches time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// nowUTC returns the current time at the precision both backends store.
func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// batchTime offsets the i-th row of a batch so insertion order survives
// rows that commit together.
func batchTime(base time.Time, i int) time.Time {
	return base.Add(time.Duration(i) * time.Microsecond)
}

// pgTimestamptzToTime converts pgtype.Timestamptz to time.Time.
func pgTimestamptzToTime(ts pgtype.Timestamptz) time.Time {
	if ts.Valid {
		return ts.Time.UTC()
	}
	return time.Time{}
}

// timeToPgTimestamptz converts time.Time to pgtype.Timestamptz.
func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: !t.IsZero()}
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// marshalResource encodes a resource for storage; nil stays NULL.
func marshalResource(r domain.Resource) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal resource: %w", err)
	}
	return b, nil
}

func unmarshalResource(b []byte) (domain.Resource, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var r domain.Resource
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("unmarshal resource: %w", err)
	}
	return r, nil
}
