package auth

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/tokmz/advisor/pkg/request"
)

// GoogleIdentity 校验通过的 Google 身份
type GoogleIdentity struct {
	UID   string
	Email string
	Name  string
}

// GoogleVerifier 校验 Google ID token
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (*GoogleIdentity, error)
}

// tokenInfo tokeninfo 接口响应，数值字段以字符串返回
type tokenInfo struct {
	Aud           string `json:"aud"`
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
	Exp           string `json:"exp"`
}

// TokenInfoVerifier 通过 tokeninfo 接口校验 ID token
type TokenInfoVerifier struct {
	client   *request.Client
	endpoint string
	clientID string
	now      func() time.Time
}

// NewTokenInfoVerifier clientID 为空时不校验 aud
func NewTokenInfoVerifier(client *request.Client, endpoint, clientID string) *TokenInfoVerifier {
	return &TokenInfoVerifier{client: client, endpoint: endpoint, clientID: clientID, now: time.Now}
}

// Verify 校验 ID token 并返回身份
func (v *TokenInfoVerifier) Verify(ctx context.Context, idToken string) (*GoogleIdentity, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, ErrGoogleToken.WithMessage("Missing Google ID token")
	}

	info, err := request.Do[tokenInfo](v.client.Get(v.endpoint).
		SetContext(ctx).
		SetQuery("id_token", idToken))
	if err != nil {
		return nil, ErrGoogleToken.WithError(err)
	}

	if v.clientID != "" && info.Aud != v.clientID {
		return nil, ErrGoogleToken.WithMessage("Google token audience mismatch")
	}
	if info.Email == "" || info.EmailVerified == "false" {
		return nil, ErrGoogleToken.WithMessage("Google account email is not verified")
	}
	if exp, err := strconv.ParseInt(info.Exp, 10, 64); err == nil && time.Unix(exp, 0).Before(v.now()) {
		return nil, ErrGoogleToken.WithMessage("Google token has expired")
	}

	return &GoogleIdentity{UID: info.Sub, Email: info.Email, Name: info.Name}, nil
}
