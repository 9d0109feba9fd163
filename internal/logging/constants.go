package logging

// Standardized field names for structured logging. Keeping these in one place
// makes log output consistent and easy to filter.
const (
	FieldFile        = "file_path"
	FieldFileHash    = "file_hash"
	FieldChatID      = "chat_id"
	FieldGroup       = "group"
	FieldBucket      = "bucket"
	FieldItem        = "item"
	FieldAmount      = "amount"
	FieldMember      = "member"
	FieldScore       = "score"
	FieldDuration    = "duration_ms"
	FieldCount       = "count"
	FieldOperation   = "operation"
	FieldEntryID     = "entry_id"
	FieldPrintedSum  = "printed_total"
	FieldComputedSum = "computed_total"
)
