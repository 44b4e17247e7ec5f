// Package domain defines the transactional outbox event and the work item types queued
// by lifecycle operations.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutboxEventStatus represents the status of an outbox event
type OutboxEventStatus string

const (
	OutboxEventStatusPending   OutboxEventStatus = "pending"
	OutboxEventStatusProcessed OutboxEventStatus = "processed"
	OutboxEventStatusFailed    OutboxEventStatus = "failed"
)

// Work item types.
const (
	EventCertificateRevoked    = "certificate.revoked"
	EventCertificateRotated    = "certificate.rotated"
	EventNotificationRequested = "notification.requested"
)

// OutboxEvent is a work item written in the same transaction as the mutation that caused it.
// AvailableAt delays redelivery after a failure.
type OutboxEvent struct {
	ID          uuid.UUID
	EventType   string
	Payload     string
	Status      OutboxEventStatus
	Retries     int
	LastError   *string
	AvailableAt time.Time
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CertificateEvent is the payload of certificate.revoked and certificate.rotated.
type CertificateEvent struct {
	CertificateID  uuid.UUID `json:"certificate_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Version        int       `json:"version"`
}
