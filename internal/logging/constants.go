package logging

// Field names shared by every log line so that output can be filtered consistently.
const (
	FieldRunID     = "run_id"
	FieldPayee     = "payee"
	FieldCategory  = "category"
	FieldStrategy  = "strategy"
	FieldScore     = "score"
	FieldBatch     = "batch"
	FieldCount     = "count"
	FieldSource    = "source"
	FieldAccount   = "account_id"
	FieldStage     = "stage"
	FieldMethod    = "method"
	FieldAttempt   = "attempt"
	FieldDryRun    = "dry_run"
	FieldFile      = "file_path"
	FieldBackend   = "backend"
	FieldDuration  = "duration_ms"
	FieldStatus    = "status"
	FieldOperation = "operation"
)
