package dto

import "mime/multipart"

// ExtractRequest is the multipart payload of POST /api/v1/invoices/extract.
type ExtractRequest struct {
	File  *multipart.FileHeader `form:"file" binding:"required"`
	Pages string                `form:"pages"` // page selection, defaults to "all"
	Mode  string                `form:"mode"`  // "api" (default) or "local"
}

// Validate performs basic validation on the request.
func (r *ExtractRequest) Validate() error {
	if r.File == nil {
		return ErrNoFile
	}
	if r.Mode != "" && r.Mode != string(ModeAPI) && r.Mode != string(ModeLocal) {
		return ErrUnknownMode
	}
	return nil
}

// JobRequest is the JSON payload of POST /api/v1/jobs.
type JobRequest struct {
	SourceDir string `json:"source_dir"`
	OutputDir string `json:"output_dir"`
	Pages     string `json:"pages"`
	Mode      string `json:"mode"`
}
