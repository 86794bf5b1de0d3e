package model

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gowa-keeper/database"
)

var ErrRecordNotFound = errors.New("instance record not found")

// InstanceRecord is the persisted row for one instance. It exists so the
// manager can map instance ids back to whatsmeow devices across restarts.
type InstanceRecord struct {
	InstanceID  string
	JID         sql.NullString
	PhoneNumber sql.NullString
	Status      string
	CreatedAt   time.Time
	ConnectedAt sql.NullTime
}

func InsertInstanceRecord(ctx context.Context, instanceID string) error {
	_, err := database.AppDB.ExecContext(ctx,
		`INSERT INTO instances (instance_id) VALUES ($1)
		 ON CONFLICT (instance_id) DO NOTHING`, instanceID)
	return err
}

func GetAllInstanceRecords(ctx context.Context) ([]InstanceRecord, error) {
	rows, err := database.AppDB.QueryContext(ctx,
		`SELECT instance_id, jid, phone_number, status, created_at, connected_at
		 FROM instances ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []InstanceRecord
	for rows.Next() {
		var rec InstanceRecord
		if err := rows.Scan(&rec.InstanceID, &rec.JID, &rec.PhoneNumber,
			&rec.Status, &rec.CreatedAt, &rec.ConnectedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetInstanceJID resolves an instance id to its paired device JID. Empty
// string means the instance never completed pairing.
func GetInstanceJID(ctx context.Context, instanceID string) (string, error) {
	var jid sql.NullString
	err := database.AppDB.QueryRowContext(ctx,
		`SELECT jid FROM instances WHERE instance_id = $1`, instanceID).Scan(&jid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrRecordNotFound
	}
	if err != nil {
		return "", err
	}
	return jid.String, nil
}

func UpdateInstanceOnReady(ctx context.Context, instanceID, jid, phoneNumber string) error {
	_, err := database.AppDB.ExecContext(ctx,
		`UPDATE instances
		 SET jid = $2, phone_number = $3, status = 'ready',
		     connected_at = now(), updated_at = now()
		 WHERE instance_id = $1`, instanceID, jid, phoneNumber)
	return err
}

func UpdateInstanceStatus(ctx context.Context, instanceID, status string) error {
	_, err := database.AppDB.ExecContext(ctx,
		`UPDATE instances SET status = $2, updated_at = now()
		 WHERE instance_id = $1`, instanceID, status)
	return err
}

func DeleteInstanceRecord(ctx context.Context, instanceID string) error {
	_, err := database.AppDB.ExecContext(ctx,
		`DELETE FROM instances WHERE instance_id = $1`, instanceID)
	return err
}
