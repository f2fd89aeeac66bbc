package api

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// UpdateFileRequest is the inbound body. ContentBase64 is the file content,
// base64 encoded.
type UpdateFileRequest struct {
	Path          string `json:"path" validate:"required"`
	ContentBase64 string `json:"contentBase64" validate:"required"`
	Message       string `json:"message,omitempty"`
	Branch        string `json:"branch,omitempty"`
}

func (r *UpdateFileRequest) Validate() error {
	return validate.Struct(r)
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}
