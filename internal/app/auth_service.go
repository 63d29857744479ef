package app

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"multirag/internal/model"
	"multirag/internal/pkg/jwtutil"
	"multirag/internal/repository"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUsernameExists    = errors.New("username already exists")
	ErrEmailExists       = errors.New("email already exists")
	ErrInvalidCredential = errors.New("invalid username or password")
	ErrInvalidAPIKey     = errors.New("invalid api key")
	ErrAPIKeyNotFound    = errors.New("api key not found")
)

const apiKeyPrefix = "mrag_"

type AuthService struct {
	userRepo      *repository.UserRepository
	apiKeyRepo    *repository.APIKeyRepository
	jwtSecret     string
	jwtExpiration time.Duration
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type LoginInput struct {
	Username string
	Password string
}

type AuthResult struct {
	Token string
	User  *model.User
}

// IssuedAPIKey carries the plaintext key exactly once, at creation or
// rotation time. Only the hash is stored.
type IssuedAPIKey struct {
	Key    string        `json:"key"`
	Record *model.APIKey `json:"record"`
}

func NewAuthService(
	userRepo *repository.UserRepository,
	apiKeyRepo *repository.APIKeyRepository,
	jwtSecret string,
	jwtExpiration time.Duration,
) *AuthService {
	return &AuthService{
		userRepo:      userRepo,
		apiKeyRepo:    apiKeyRepo,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

func (s *AuthService) Register(input RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(strings.ToLower(input.Email))
	password := strings.TrimSpace(input.Password)

	if username == "" || email == "" || password == "" || len(password) < 8 {
		return nil, ErrInvalidInput
	}

	existingByName, err := s.userRepo.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if existingByName != nil {
		return nil, ErrUsernameExists
	}

	existingByEmail, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if existingByEmail != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}

	// The first registered account becomes the admin.
	count, err := s.userRepo.Count()
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsAdmin:      count == 0,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, user.ID, user.Username, user.IsAdmin)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) Login(input LoginInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	password := strings.TrimSpace(input.Password)
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredential
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}

	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, user.ID, user.Username, user.IsAdmin)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) GetUserByID(id uint) (*model.User, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	return s.userRepo.GetByID(id)
}

// IssueAPIKey mints a new key for the user and returns the plaintext once.
func (s *AuthService) IssueAPIKey(userID uint, label string) (*IssuedAPIKey, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = "default"
	}

	plaintext, err := generateAPIKey()
	if err != nil {
		return nil, err
	}

	record := &model.APIKey{
		UserID:   userID,
		KeyHash:  HashAPIKey(plaintext),
		Label:    label,
		IsActive: true,
	}
	if err := s.apiKeyRepo.Create(record); err != nil {
		return nil, err
	}
	return &IssuedAPIKey{Key: plaintext, Record: record}, nil
}

// ValidateAPIKey resolves a plaintext key to its user. Touching last_used_at
// is best effort.
func (s *AuthService) ValidateAPIKey(key string) (*model.User, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrInvalidAPIKey
	}

	record, err := s.apiKeyRepo.GetActiveByHash(HashAPIKey(key))
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrInvalidAPIKey
	}

	user, err := s.userRepo.GetByID(record.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidAPIKey
	}

	_ = s.apiKeyRepo.TouchLastUsed(record.ID, time.Now())
	return user, nil
}

func (s *AuthService) ListAPIKeys(userID uint) ([]model.APIKey, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.apiKeyRepo.ListByUserID(userID)
}

func (s *AuthService) RevokeAPIKey(userID, keyID uint) error {
	if userID == 0 || keyID == 0 {
		return ErrInvalidInput
	}
	record, err := s.apiKeyRepo.GetByIDAndUserID(keyID, userID)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrAPIKeyNotFound
	}
	return s.apiKeyRepo.Deactivate(record.ID)
}

// RotateAPIKey replaces the key material, invalidating the old plaintext.
func (s *AuthService) RotateAPIKey(userID, keyID uint) (*IssuedAPIKey, error) {
	if userID == 0 || keyID == 0 {
		return nil, ErrInvalidInput
	}
	record, err := s.apiKeyRepo.GetByIDAndUserID(keyID, userID)
	if err != nil {
		return nil, err
	}
	if record == nil || !record.IsActive {
		return nil, ErrAPIKeyNotFound
	}

	plaintext, err := generateAPIKey()
	if err != nil {
		return nil, err
	}
	hash := HashAPIKey(plaintext)
	if err := s.apiKeyRepo.UpdateHash(record.ID, hash); err != nil {
		return nil, err
	}
	record.KeyHash = hash
	return &IssuedAPIKey{Key: plaintext, Record: record}, nil
}

// HashAPIKey is the storage form of a key: hex-encoded sha256.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func generateAPIKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key failed: %w", err)
	}
	return apiKeyPrefix + hex.EncodeToString(buf), nil
}
