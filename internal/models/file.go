package models

import (
	"time"
)

// ProcessingStatus is the lifecycle status of an uploaded file.
type ProcessingStatus string

const (
	StatusUnprocessed ProcessingStatus = "unprocessed"
	StatusProcessing  ProcessingStatus = "processing"
	StatusCompleted   ProcessingStatus = "completed"
	StatusFailed      ProcessingStatus = "failed"
)

// EntityType is the fixed extraction taxonomy.
type EntityType string

const (
	EntityPerson    EntityType = "PERSON"
	EntityOrg       EntityType = "ORG"
	EntityDate      EntityType = "DATE"
	EntityLocation  EntityType = "LOCATION"
	EntityLegalTerm EntityType = "LEGAL_TERM"
)

// ValidEntityType reports whether t belongs to the taxonomy.
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityPerson, EntityOrg, EntityDate, EntityLocation, EntityLegalTerm:
		return true
	}
	return false
}

// FileRecord mirrors the files table. The record is created by the upload
// flow; the pipeline only mutates status, thumbnail URL, text length and
// the processing sub-object of Metadata.
type FileRecord struct {
	ID                  string                 `json:"id"`
	ProjectID           string                 `json:"projectId"`
	OwnerID             string                 `json:"ownerId"`
	StoragePath         string                 `json:"storagePath"`
	ContentType         string                 `json:"contentType"`
	Size                int64                  `json:"size"`
	ProcessingStatus    ProcessingStatus       `json:"processingStatus"`
	ThumbnailURL        *string                `json:"thumbnailUrl,omitempty"`
	ExtractedTextLength int                    `json:"extractedTextLength"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt           time.Time              `json:"createdAt"`
	UpdatedAt           time.Time              `json:"updatedAt"`
}

// TextChunk is one embedded slice of a file's extracted text.
// SectionIndex is dense and zero-based; offsets address the original text.
type TextChunk struct {
	ID           string                 `json:"id"`
	FileID       string                 `json:"fileId"`
	SectionIndex int                    `json:"sectionIndex"`
	Content      string                 `json:"content"`
	Tokens       int                    `json:"tokens"`
	StartOffset  int                    `json:"startOffset"`
	EndOffset    int                    `json:"endOffset"`
	Embedding    []float32              `json:"embedding,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
}

// Entity is a named entity extracted from a file's text.
// Uniqueness key: (project, file, lowercased text, type).
type Entity struct {
	ID           string     `json:"id"`
	ProjectID    string     `json:"projectId"`
	SourceFileID string     `json:"sourceFileId"`
	OwnerID      string     `json:"ownerId"`
	EntityText   string     `json:"entityText"`
	EntityType   EntityType `json:"entityType"`
	CreatedAt    time.Time  `json:"createdAt"`
}
