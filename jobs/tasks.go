// Package jobs holds the asynchronous task definitions and the Asynq worker
// wiring: outbound document delivery, mission billing refreshes and the
// nightly overdue-invoice scan.
package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendDocument delivers a confirmed quote or invoice by email.
	TaskTypeSendDocument = "document:send"
	// TaskTypeMissionRecompute refreshes a mission's remaining-to-invoice.
	TaskTypeMissionRecompute = "mission:recompute"
	// TaskTypeOverdueScan flags unpaid invoices past their due date.
	TaskTypeOverdueScan = "invoice:overdue_scan"
)

// SendDocumentPayload identifies the document to deliver and its recipient.
type SendDocumentPayload struct {
	OwnerID    uuid.UUID `json:"owner_id"`
	Type       string    `json:"type"`
	DocumentID uuid.UUID `json:"document_id"`
	To         string    `json:"to"`
}

// NewSendDocumentTask constructs an Asynq task.
func NewSendDocumentTask(payload SendDocumentPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendDocument, data), nil
}

// MissionRecomputePayload identifies the mission to refresh.
type MissionRecomputePayload struct {
	OwnerID   uuid.UUID `json:"owner_id"`
	MissionID uuid.UUID `json:"mission_id"`
}

// NewMissionRecomputeTask constructs an Asynq task.
func NewMissionRecomputeTask(payload MissionRecomputePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeMissionRecompute, data), nil
}

// NewOverdueScanTask constructs the periodic overdue scan task.
func NewOverdueScanTask() *asynq.Task {
	return asynq.NewTask(TaskTypeOverdueScan, nil)
}
