package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"vinoteka/internal/core/apperror"
	"vinoteka/internal/domain/session"
	"vinoteka/pkg/logger"
)

// TokenPath is the catalog API login endpoint.
const TokenPath = "/auth/token"

// FormPoster sends an unauthenticated form POST. catalogapi.Client
// implements it.
type FormPoster interface {
	PostForm(ctx context.Context, path string, form url.Values, out any) error
}

// Service logs sessions in and out.
type Service struct {
	api      FormPoster
	sessions session.Store
	validate *validator.Validate
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates an auth service.
func NewService(api FormPoster, sessions session.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		api:      api,
		sessions: sessions,
		validate: validator.New(),
		log:      log.WithComponent("auth"),
		now:      time.Now,
	}
}

// Login exchanges credentials for an access token with the password grant.
func (s *Service) Login(ctx context.Context, creds Credentials) (Token, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	if err := s.validate.Struct(creds); err != nil {
		return Token{}, apperror.NewValidation("username and password are required")
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {creds.Username},
		"password":   {creds.Password},
	}
	var tok Token
	if err := s.api.PostForm(ctx, TokenPath, form, &tok); err != nil {
		if appErr, ok := apperror.AsAppError(err); ok && appErr.Code == apperror.CodeUpstream {
			switch appErr.Details["upstream_status"] {
			case http.StatusBadRequest, http.StatusUnauthorized:
				s.log.WithContext(ctx).Infow("login rejected", "username", creds.Username)
				return Token{}, apperror.NewUnauthorized("Invalid username or password").WithCause(err)
			}
		}
		return Token{}, apperror.Normalize(err).Scoped("log in", "to the catalog")
	}
	if tok.AccessToken == "" {
		return Token{}, apperror.NewUpstream(http.StatusOK, "no access_token in response")
	}

	exp, err := TokenExpiry(tok.AccessToken)
	if err != nil {
		// Opaque token: no local expiry.
		s.log.WithContext(ctx).Debugw("token has no readable exp", "error", err)
	}
	tok.ExpiresAt = exp
	return tok, nil
}

// SignIn logs sess in and saves it.
func (s *Service) SignIn(ctx context.Context, sess *session.Session, creds Credentials) error {
	tok, err := s.Login(ctx, creds)
	if err != nil {
		return err
	}
	sess.SignIn(tok.AccessToken, tok.ExpiresAt)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return apperror.NewInternal(err)
	}
	s.log.WithContext(ctx).Infow("signed in", "session_id", sess.ID.String(), "expires_at", tok.ExpiresAt)
	return nil
}

// Logout deletes the session.
func (s *Service) Logout(ctx context.Context, sess *session.Session) error {
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return apperror.NewInternal(err)
	}
	sess.SignOut()
	s.log.WithContext(ctx).Infow("signed out", "session_id", sess.ID.String())
	return nil
}
