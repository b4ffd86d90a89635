package model

import "time"

// UploadedImage records a binary received under a pairing session. The
// binary outlives the session: expiry gates future uploads, not history.
type UploadedImage struct {
	ID         string    `db:"id" json:"id"`
	SessionID  string    `db:"session_id" json:"sessionId"`
	OwnerID    string    `db:"owner_id" json:"ownerId"`
	StorageRef string    `db:"storage_ref" json:"storageRef"`
	ReceivedAt time.Time `db:"received_at" json:"receivedAt"`
}

type CreateUploadParams struct {
	SessionID  string
	OwnerID    string
	StorageRef string
}
