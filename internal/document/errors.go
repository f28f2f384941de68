package document

import (
	"net/http"

	apperrors "github.com/tokmz/advisor/pkg/errors"
)

// 文档错误码 2300-2399
var (
	ErrInvalidResume     = apperrors.New(2301, "Resume validation failed", http.StatusBadRequest)
	ErrTooManyCerts      = apperrors.New(2302, "Too many certificates", http.StatusBadRequest)
	ErrDocumentsNotFound = apperrors.New(2303, "User documents not found", http.StatusNotFound)
	ErrFileNotFound      = apperrors.New(2304, "File not found", http.StatusNotFound)
	ErrInvalidStatus     = apperrors.New(2305, "Invalid status", http.StatusBadRequest)
	ErrInvalidFileType   = apperrors.New(2306, "Invalid file type", http.StatusBadRequest)
	ErrUploadFailed      = apperrors.New(2307, "Document upload failed", http.StatusInternalServerError)
	ErrEmailRequired     = apperrors.New(2308, "User email is required", http.StatusBadRequest)
	ErrDomainRequired    = apperrors.New(2309, "Domain field is required", http.StatusBadRequest)
	ErrResumeRequired    = apperrors.New(2310, "Resume file is required", http.StatusBadRequest)
)
