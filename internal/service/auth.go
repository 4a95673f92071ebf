package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fleetfusion/internal/cache"
	"fleetfusion/internal/config"
	"fleetfusion/internal/domain"
	"fleetfusion/pkg/errors"
	"fleetfusion/pkg/logger"
)

type AuthService interface {
	// ValidateToken parses a bearer token and resolves the authorization
	// context, consulting the session cache first. Any failure means the
	// caller must treat the request as unauthenticated.
	ValidateToken(ctx context.Context, tokenString string) (*domain.AuthorizationContext, error)
	// BuildContext derives an authorization context from already-parsed
	// claims and populates the caches.
	BuildContext(ctx context.Context, claims *domain.SessionClaims) (*domain.AuthorizationContext, error)
	InvalidateUser(userID string)
	InvalidateOrganization(orgID string)
	InvalidateSession(userID, orgID string)
}

// tokenClaims is the JWT payload shape the identity provider signs.
type tokenClaims struct {
	UserID         string                       `json:"user_id"`
	OrganizationID string                       `json:"organization_id"`
	Role           string                       `json:"role"`
	Permissions    []string                     `json:"permissions,omitempty"`
	IsActive       bool                         `json:"is_active"`
	Organization   *domain.OrganizationMetadata `json:"organization,omitempty"`
	jwt.RegisteredClaims
}

type authService struct {
	sessions *cache.SessionCache
	data     *cache.AuthCache
	jwtCfg   config.JWTConfig
	now      func() time.Time
	log      logger.Logger
}

func NewAuthService(sessions *cache.SessionCache, data *cache.AuthCache, jwtCfg config.JWTConfig, log logger.Logger) AuthService {
	return &authService{
		sessions: sessions,
		data:     data,
		jwtCfg:   jwtCfg,
		now:      time.Now,
		log:      log,
	}
}

func (s *authService) ValidateToken(ctx context.Context, tokenString string) (*domain.AuthorizationContext, error) {
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}

	// Cheap identifier checks before the claims touch any cache key.
	if claims.UserID == "" || !domain.ValidIdentifier(claims.UserID) {
		return nil, fmt.Errorf("%w: user id", errors.ErrInvalidIdentifier)
	}
	if claims.OrganizationID != "" && !domain.ValidIdentifier(claims.OrganizationID) {
		return nil, fmt.Errorf("%w: organization id", errors.ErrInvalidIdentifier)
	}

	key := cache.SessionKey(claims.UserID, claims.OrganizationID)
	if cached := s.sessions.Get(key); cached != nil {
		if !cached.IsActive {
			return nil, errors.ErrInactiveUser
		}
		return cached, nil
	}

	return s.BuildContext(ctx, &domain.SessionClaims{
		UserID:         claims.UserID,
		OrganizationID: claims.OrganizationID,
		Role:           claims.Role,
		Permissions:    claims.Permissions,
		IsActive:       claims.IsActive,
		Organization:   claims.Organization,
	})
}

func (s *authService) BuildContext(_ context.Context, claims *domain.SessionClaims) (*domain.AuthorizationContext, error) {
	authCtx, err := domain.BuildAuthorizationContext(claims, s.now())
	if err != nil {
		// Fail closed: a malformed claim never degrades into a partial
		// context with default-safe permissions.
		s.log.Warn("Rejected session claims", "error", err)
		return nil, err
	}
	if !authCtx.IsActive {
		return nil, errors.ErrInactiveUser
	}

	s.sessions.Set(cache.SessionKey(authCtx.UserID, authCtx.OrganizationID), authCtx)
	s.data.SetUser(authCtx.UserID, authCtx)
	s.data.SetPermissions(authCtx.UserID, authCtx.Permissions)
	if authCtx.Organization != nil && authCtx.OrganizationID != "" {
		s.data.SetOrganization(authCtx.OrganizationID, authCtx.Organization)
	}

	return authCtx, nil
}

func (s *authService) InvalidateUser(userID string) {
	s.sessions.InvalidateUser(userID)
	s.data.InvalidateUser(userID)
}

func (s *authService) InvalidateOrganization(orgID string) {
	s.sessions.InvalidateOrganization(orgID)
	s.data.InvalidateOrganization(orgID)
}

func (s *authService) InvalidateSession(userID, orgID string) {
	s.sessions.InvalidateSession(cache.SessionKey(userID, orgID))
}

func (s *authService) parseToken(tokenString string) (*tokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtCfg.Secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if s.jwtCfg.Issuer != "" && claims.Issuer != "" && claims.Issuer != s.jwtCfg.Issuer {
		return nil, fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}
	return claims, nil
}
