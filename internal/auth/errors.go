package auth

import (
	"net/http"

	apperrors "github.com/tokmz/advisor/pkg/errors"
)

// 认证错误码 2000-2099
var (
	ErrUserExists         = apperrors.New(2001, "User already exists", http.StatusBadRequest)
	ErrInvalidCredentials = apperrors.New(2002, "Invalid credentials", http.StatusUnauthorized)
	ErrInvalidToken       = apperrors.New(2003, "Invalid token", http.StatusUnauthorized)
	ErrTokenExpired       = apperrors.New(2004, "Token has expired", http.StatusUnauthorized)
	ErrGoogleToken        = apperrors.New(2005, "Invalid Google token", http.StatusUnauthorized)
	ErrUserNotFound       = apperrors.New(2006, "User not found", http.StatusNotFound)
	ErrUserInactive       = apperrors.New(2007, "User is inactive", http.StatusForbidden)
)
