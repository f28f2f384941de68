package profile

import (
	"net/http"

	apperrors "github.com/tokmz/advisor/pkg/errors"
)

// 职业档案错误码 2200-2299
var (
	ErrProfileNotFound = apperrors.New(2201, "Profile not found", http.StatusNotFound)
	ErrProfileExists   = apperrors.New(2202, "Profile already exists", http.StatusConflict)
	ErrUserIDRequired  = apperrors.New(2203, "User ID is required", http.StatusBadRequest)
	ErrMissingFields   = apperrors.New(2204, "Missing required fields", http.StatusBadRequest)
)
