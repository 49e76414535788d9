package auth

import (
	"strings"
)

// Service validates bearer tokens for the websocket handshake and REST routes.
// Accounts and passwords live in the external account service that issues them.
type Service struct {
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(jwtConfig *JWTConfig) *Service {
	return &Service{jwtConfig: jwtConfig}
}

// ValidateToken validates a JWT token and returns claims.
func (s *Service) ValidateToken(token string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, strings.TrimSpace(token))
}

// IssueToken signs a token for a user, used by the CLI and tests.
func (s *Service) IssueToken(userID, role string) (string, error) {
	return GenerateToken(s.jwtConfig, userID, role)
}
