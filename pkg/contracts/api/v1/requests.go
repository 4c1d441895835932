// Package api contains the request and response contracts of the csvpulse HTTP API.
// Version v1 represents the current stable API version.
package api

import (
	"csvpulse/pkg/contracts/domain"
)

// Upload API Requests

// UploadRequest holds the non-file fields of a multipart upload
type UploadRequest struct {
	FileName string `json:"file_name" validate:"required,filename"`
	Profile  string `json:"profile,omitempty" validate:"omitempty,oneof=baby_names streamers stock generic"`
}

// RunRequest is a stateless pipeline run: an upload plus the criteria to apply
type RunRequest struct {
	UploadRequest
	Criteria domain.Criteria `json:"criteria"`
}

// Export API Requests

// ExportRequest holds the query parameters of an export
type ExportRequest struct {
	Format string `json:"format" query:"format" validate:"omitempty,oneof=csv parquet"`
	Gzip   bool   `json:"gzip" query:"gzip"`
}

// Responses

// ProfilesResponse lists the dataset profiles an upload may force. An
// upload without a profile is matched by its columns.
type ProfilesResponse struct {
	Profiles []string `json:"profiles"`
}

// RunResponse is the result of a stateless pipeline run
type RunResponse struct {
	FileName string       `json:"file_name"`
	View     *domain.View `json:"view"`
}
