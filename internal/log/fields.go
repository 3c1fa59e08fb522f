// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldConversation = "conversation_id"
	FieldJobID        = "job_id"
	FieldComponent    = "component"

	// Lifecycle fields
	FieldEvent    = "event"
	FieldStage    = "stage"
	FieldOldStage = "old_stage"
	FieldNewStage = "new_stage"
	FieldReason   = "reason"

	// Media fields
	FieldURL      = "url"
	FieldFormatID = "format_id"
	FieldKind     = "kind"
	FieldPath     = "path"
	FieldSize     = "size_bytes"
	FieldPercent  = "percent"
)
