package server

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// sessionTTL bounds browser sessions issued against the API key.
const sessionTTL = 12 * time.Hour

// JWTClaims represents the claims in a session token
type JWTClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// AuthService validates the configured API key and issues short-lived
// session tokens for browser use.
type AuthService struct {
	apiKey    string
	jwtSecret []byte
}

// NewAuthService creates a new auth service
func NewAuthService(apiKey, jwtSecret string) *AuthService {
	return &AuthService{
		apiKey:    apiKey,
		jwtSecret: []byte(jwtSecret),
	}
}

// ValidateAPIKey validates an API key
func (a *AuthService) ValidateAPIKey(key string) bool {
	return key != "" && key == a.apiKey
}

// GenerateToken generates a new session token
func (a *AuthService) GenerateToken(role string, duration time.Duration) (string, error) {
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "daemonpanel",
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// ValidateToken validates a session token
func (a *AuthService) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// ExtractToken extracts the token from the Authorization header or, for
// browser navigation, the token query parameter.
func ExtractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		if strings.HasPrefix(authHeader, "Bearer ") {
			return strings.TrimPrefix(authHeader, "Bearer ")
		}
		return authHeader
	}

	if token := c.Query("token"); token != "" {
		return token
	}

	return ""
}
