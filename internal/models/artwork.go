package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ArtworkStatus is the review state of one artwork upload.
type ArtworkStatus string

const (
	ArtworkStatusNone     ArtworkStatus = "NONE"
	ArtworkStatusPending  ArtworkStatus = "PENDING"
	ArtworkStatusSent     ArtworkStatus = "SENT"
	ArtworkStatusApproved ArtworkStatus = "APPROVED"
	ArtworkStatusDeclined ArtworkStatus = "DECLINED"
)

// InferArtworkStatus derives a disposition from which timestamps are set.
// Priority is approved, then declined, then sent; if two were ever set
// together the earlier one in that order wins.
func InferArtworkStatus(sentAt, approvedAt, declinedAt *time.Time) ArtworkStatus {
	switch {
	case approvedAt != nil:
		return ArtworkStatusApproved
	case declinedAt != nil:
		return ArtworkStatusDeclined
	case sentAt != nil:
		return ArtworkStatusSent
	}
	return ArtworkStatusPending
}

// ArtworkVersion is an immutable snapshot of artwork that was replaced by a
// newer upload. Rows are only ever inserted.
type ArtworkVersion struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	QuoteID  uuid.UUID `gorm:"type:uuid;index:idx_artwork_version,priority:1;not null" json:"quote_id"`
	Version  int       `gorm:"not null;index:idx_artwork_version,priority:2" json:"version"`
	URL      string    `gorm:"size:1024;not null" json:"url"`
	FileName string    `gorm:"size:255" json:"file_name"`

	// Disposition the version had reached when it was superseded.
	Status     ArtworkStatus `gorm:"size:20;not null" json:"status"`
	SentAt     *time.Time    `json:"sent_at,omitempty"`
	ApprovedAt *time.Time    `json:"approved_at,omitempty"`
	DeclinedAt *time.Time    `json:"declined_at,omitempty"`
	Notes      *string       `gorm:"type:text" json:"notes,omitempty"`

	UploadedByID *uint  `json:"uploaded_by_id,omitempty"`
	ReplacedByID *uint  `json:"replaced_by_id,omitempty"`
	ReplacedBy   string `gorm:"size:255" json:"replaced_by,omitempty"`
}

// BeforeCreate assigns the primary key.
func (v *ArtworkVersion) BeforeCreate(_ *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// SnapshotArtwork captures the quote's current artwork as a version record.
func SnapshotArtwork(q *Quote) ArtworkVersion {
	v := ArtworkVersion{
		QuoteID:      q.ID,
		Version:      q.ArtworkVersion,
		Status:       q.ArtworkDisposition(),
		SentAt:       clonePtr(q.ArtworkSentAt),
		ApprovedAt:   clonePtr(q.ArtworkApprovedAt),
		DeclinedAt:   clonePtr(q.ArtworkDeclinedAt),
		Notes:        clonePtr(q.ArtworkNotes),
		UploadedByID: clonePtr(q.ArtworkUploadedByID),
	}
	if q.ArtworkURL != nil {
		v.URL = *q.ArtworkURL
	}
	if q.ArtworkFileName != nil {
		v.FileName = *q.ArtworkFileName
	}
	return v
}
