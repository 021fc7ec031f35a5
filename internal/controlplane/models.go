package controlplane

import "encoding/json"

// DatabasePayload is one entry in the inventory pushed by the status ping.
type DatabasePayload struct {
	Name        string `json:"name"`
	Dbms        string `json:"dbms"`
	GeneratedID string `json:"generatedId"`
}

// StatusRequest is the body of the agent-status ping.
type StatusRequest struct {
	Version   string            `json:"version"`
	Databases []DatabasePayload `json:"databases"`
}

// AgentInfo echoes the agent's own record back from the status response.
type AgentInfo struct {
	ID          string `json:"id"`
	LastContact string `json:"lastContact"`
}

// BackupDirective is what the control plane wants done about backups for
// one database.
type BackupDirective struct {
	Action bool   `json:"action"`
	Cron   string `json:"cron,omitempty"`
}

// RestoreDirective is what the control plane wants done about restores for
// one database.
type RestoreDirective struct {
	Action   bool   `json:"action"`
	File     string `json:"file,omitempty"`
	MetaFile string `json:"metaFile,omitempty"`
}

// DatabaseDirectives bundles a database's pending backup and restore work.
type DatabaseDirectives struct {
	Backup  BackupDirective  `json:"backup"`
	Restore RestoreDirective `json:"restore"`
}

// DatabaseStorage is one upload destination configured for a database.
// Config is provider-specific and decoded lazily by internal/storage.
type DatabaseStorage struct {
	ID       string          `json:"id"`
	Provider string          `json:"provider"`
	Config   json.RawMessage `json:"config"`
}

// DatabaseStatus is the control plane's view of one database, returned by
// the status ping and consumed immediately: it names what to do, not what
// happened.
type DatabaseStatus struct {
	Dbms        string              `json:"dbms"`
	GeneratedID string              `json:"generatedId"`
	Storages    []DatabaseStorage   `json:"storages"`
	Encrypt     bool                `json:"encrypt"`
	Data        DatabaseDirectives  `json:"data"`
}

// StatusResponse is the full status-ping response.
type StatusResponse struct {
	Agent     AgentInfo        `json:"agent"`
	Databases []DatabaseStatus `json:"databases"`
}

// BackupMethod distinguishes a scheduler-triggered run from an operator
// triggering one manually.
type BackupMethod string

const (
	BackupAutomatic BackupMethod = "automatic"
	BackupManual    BackupMethod = "manual"
)

// BackupCreateRequest announces that a backup has started.
type BackupCreateRequest struct {
	Method      BackupMethod `json:"method"`
	GeneratedID string       `json:"generatedId"`
}

// BackupRef is the control plane's handle for a backup attempt.
type BackupRef struct {
	ID string `json:"id"`
}

// BackupCreateResponse returns the id the control plane assigned to this
// backup attempt, used in subsequent update/upload calls.
type BackupCreateResponse struct {
	Message string    `json:"message"`
	Backup  BackupRef `json:"backup"`
}

// BackupStatus is the terminal state of a backup or an upload.
type BackupStatus string

const (
	StatusSuccess BackupStatus = "success"
	StatusFailed  BackupStatus = "failed"
)

// BackupUpdateRequest reports a backup's terminal state.
type BackupUpdateRequest struct {
	BackupID string       `json:"backupId"`
	Status   BackupStatus `json:"status"`
	Size     int64        `json:"size,omitempty"`
}

// BackupUpdateResponse is returned from the backup-update PATCH.
type BackupUpdateResponse struct {
	Message string    `json:"message"`
	Backup  BackupRef `json:"backup"`
}

// UploadInitRequest asks the control plane for a backup-storage id to
// report against for one storage channel.
type UploadInitRequest struct {
	GeneratedID     string `json:"generatedId"`
	StorageChannelID string `json:"storageChannelId"`
}

// BackupStorageRef is the control plane's handle for one storage's upload.
type BackupStorageRef struct {
	ID string `json:"id"`
}

// UploadInitResponse returns the backup-storage id to report status
// against for this upload.
type UploadInitResponse struct {
	Message       string           `json:"message"`
	BackupStorage BackupStorageRef `json:"backupStorage"`
}

// UploadStatusRequest reports one storage's upload outcome.
type UploadStatusRequest struct {
	GeneratedID     string       `json:"generatedId"`
	BackupStorageID string       `json:"backupStorageId"`
	Status          BackupStatus `json:"status"`
	Path            string       `json:"path,omitempty"`
	Size            int64        `json:"size,omitempty"`
}

// UploadStatusResponse is returned from the upload-status PATCH.
type UploadStatusResponse struct {
	Message       string           `json:"message"`
	BackupStorage BackupStorageRef `json:"backupStorage"`
}

// RestoreResultRequest reports the outcome of a restore order.
type RestoreResultRequest struct {
	GeneratedID string       `json:"generatedId"`
	Status      BackupStatus `json:"status"`
}

// UploadResult is the pipeline's internal record of one storage's upload
// outcome, used to aggregate the overall backup result before reporting it.
type UploadResult struct {
	StorageID      string
	Success        bool
	RemoteFilePath string
	TotalSize      int64
	Error          string
}

// BackupTaskMetadata is what the reconciler stores as a scheduled backup
// task's metadata, and what the scheduler's dispatcher decodes back out:
// the storages and encryption flag a given database's automatic backups
// should run with. These come from a DatabaseStatus, not from a separate
// endpoint.
type BackupTaskMetadata struct {
	Storages []DatabaseStorage `json:"storages"`
	Encrypt  bool              `json:"encrypt"`
}
