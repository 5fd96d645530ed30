package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"motor_gateway/internal/models"
	"motor_gateway/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultTokenTTL       = time.Hour
	DefaultDeviceTokenTTL = 30 * 24 * time.Hour
)

// Token audiences. Both kinds may share one signing key, so the audience is
// what keeps a session token off /ws/device and a device token off the API.
const (
	AudienceDashboard = "dashboard"
	AudienceDevice    = "device"
)

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidToken    = errors.New("invalid token")
	ErrMissingDeviceID = errors.New("device id is empty")
	ErrNoSigningKey    = errors.New("signing key is not configured")
)

// AuthConfig holds the HMAC keys and lifetimes for dashboard and device tokens.
type AuthConfig struct {
	SigningKey       string
	DeviceSigningKey string
	TokenTTL         time.Duration
	DeviceTokenTTL   time.Duration
}

// AuthService handles user and device authentication.
type AuthService struct {
	authRepo repository.Authorization
	cfg      AuthConfig
}

func NewAuthService(repo repository.Authorization, cfg AuthConfig) *AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.DeviceTokenTTL <= 0 {
		cfg.DeviceTokenTTL = DefaultDeviceTokenTTL
	}
	return &AuthService{authRepo: repo, cfg: cfg}
}

// SignUp hashes password and creates a new user
func (s *AuthService) SignUp(ctx context.Context, username, password string) (int, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return 0, fmt.Errorf("invalid password: %w", err)
	}
	return s.authRepo.Create(ctx, username, hash)
}

// Claims are carried by dashboard session tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
}

// DeviceClaims are carried by device tokens; the subject is the device id.
type DeviceClaims struct {
	jwt.RegisteredClaims
	DeviceID string `json:"device_id"`
}

// GenerateToken validates credentials and returns a signed session token.
func (s *AuthService) GenerateToken(ctx context.Context, username, password string) (string, error) {
	u, err := s.authRepo.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrUserNotFound
	}

	if err := verifyPassword(u.PasswordHash, password); err != nil {
		return "", ErrInvalidPassword
	}

	return s.issueToken(u.ID, u.Username)
}

// ParseToken verifies a session token and returns its identity. A token
// without a user id yields an identity with an empty UserID.
func (s *AuthService) ParseToken(accessToken string) (models.Identity, error) {
	claims := &Claims{}
	if err := parseHMAC(accessToken, claims, s.cfg.SigningKey, AudienceDashboard); err != nil {
		return models.Identity{}, err
	}

	var id models.Identity
	if claims.UserID > 0 {
		id.UserID = strconv.Itoa(claims.UserID)
	}
	id.Username = claims.Username
	return id, nil
}

// VerifyDashboardToken is ParseToken under the name the gateway expects.
func (s *AuthService) VerifyDashboardToken(token string) (models.Identity, error) {
	return s.ParseToken(token)
}

// GenerateDeviceToken issues a long-lived token for deviceID.
func (s *AuthService) GenerateDeviceToken(deviceID string) (string, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return "", ErrMissingDeviceID
	}
	key, err := s.deviceKey()
	if err != nil {
		return "", err
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &DeviceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   deviceID,
			Audience:  jwt.ClaimStrings{AudienceDevice},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.DeviceTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		DeviceID: deviceID,
	})
	return token.SignedString(key)
}

// VerifyDeviceToken checks signature, expiry and audience of a device token
// and returns the device id it was issued for.
func (s *AuthService) VerifyDeviceToken(token string) (string, error) {
	key, err := s.deviceKey()
	if err != nil {
		return "", err
	}
	claims := &DeviceClaims{}
	if err := parseHMAC(token, claims, string(key), AudienceDevice); err != nil {
		return "", err
	}
	if claims.DeviceID == "" || claims.DeviceID != claims.Subject {
		return "", fmt.Errorf("%w: device id claim missing or inconsistent", ErrInvalidToken)
	}
	return claims.DeviceID, nil
}

func (s *AuthService) deviceKey() ([]byte, error) {
	key := s.cfg.DeviceSigningKey
	if key == "" {
		key = s.cfg.SigningKey
	}
	if key == "" {
		return nil, ErrNoSigningKey
	}
	return []byte(key), nil
}

func parseHMAC(tokenStr string, claims jwt.Claims, key, audience string) error {
	if key == "" {
		return ErrNoSigningKey
	}
	if strings.TrimSpace(tokenStr) == "" {
		return ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(key), nil
	}, jwt.WithAudience(audience))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

// helper: hash password safely
func hashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// helper: verify password against hash
func verifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func (s *AuthService) issueToken(userID int, username string) (string, error) {
	if s.cfg.SigningKey == "" {
		return "", ErrNoSigningKey
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(userID),
			Audience:  jwt.ClaimStrings{AudienceDashboard},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID:   userID,
		Username: username,
	})
	return token.SignedString([]byte(s.cfg.SigningKey))
}
