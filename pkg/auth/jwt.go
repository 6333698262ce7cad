package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken indica che il token non è valido
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indica che il token è scaduto
	ErrExpiredToken = errors.New("token expired")
	// ErrInvalidClaims indica che i claims non sono validi
	ErrInvalidClaims = errors.New("invalid claims")
)

// Ruoli riconosciuti dal sistema
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleService  = "service"
)

// JWTConfig configurazione JWT
type JWTConfig struct {
	SecretKey      string
	Issuer         string
	AccessDuration time.Duration
}

// Claims rappresenta i claims JWT di un principal.
// ClientAccess elenca i client id a cui il principal può accedere;
// "*" concede accesso a tutti i clienti.
type Claims struct {
	PrincipalID  string   `json:"principal_id"`
	Role         string   `json:"role"`
	ClientAccess []string `json:"client_access,omitempty"`
	jwt.RegisteredClaims
}

// CanAccessClient verifica se il principal può accedere ai dati di un cliente
func (c *Claims) CanAccessClient(clientID string) bool {
	for _, id := range c.ClientAccess {
		if id == "*" || id == clientID {
			return true
		}
	}
	return false
}

// IsAdmin verifica se il principal ha il ruolo admin
func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// JWTManager gestisce la creazione e validazione di token JWT
type JWTManager struct {
	config JWTConfig
}

// NewJWTManager crea un nuovo JWT manager
func NewJWTManager(config JWTConfig) *JWTManager {
	if config.AccessDuration == 0 {
		config.AccessDuration = time.Hour
	}
	if config.Issuer == "" {
		config.Issuer = "agentmesh"
	}

	return &JWTManager{
		config: config,
	}
}

// GenerateToken genera un token per un principal
func (m *JWTManager) GenerateToken(principalID, role string, clientAccess []string) (string, error) {
	now := time.Now()
	claims := Claims{
		PrincipalID:  principalID,
		Role:         role,
		ClientAccess: clientAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
			Subject:   principalID,
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.SecretKey))
}

// ValidateToken valida un token JWT e restituisce i claims
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verifica che il signing method sia corretto
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(m.config.SecretKey), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	return claims, nil
}
