package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"backend-yatube/internal/apperr"
	"backend-yatube/internal/db"
)

const minPasswordLen = 8

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrTokenInvalid       = errors.New("token invalid")

	usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]{1,150}$`)
)

var (
	hashPasswordFn    = bcrypt.GenerateFromPassword
	signTokenFn       = (*Service).signToken
	parseWithClaimsFn = jwt.ParseWithClaims
)

type Service struct {
	secret []byte
	db     db.Querier
	ttl    time.Duration
}

type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func NewService(secret string, db db.Querier, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		secret: []byte(secret),
		db:     db,
		ttl:    ttl,
	}
}

// TTL is the lifetime of issued session tokens.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

func validateRegistration(req RegisterRequest) error {
	v := apperr.NewValidationError()
	if req.Username == "" {
		v.Add("username", "This field is required.")
	} else if !usernamePattern.MatchString(req.Username) {
		v.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}
	if req.Email == "" {
		v.Add("email", "This field is required.")
	} else if !strings.Contains(req.Email, "@") {
		v.Add("email", "Enter a valid email address.")
	}
	if len(req.Password) < minPasswordLen {
		v.Add("password", "This password is too short. It must contain at least 8 characters.")
	}
	return v.OrNil()
}

// Register creates a user and returns it together with a session token.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (User, string, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := validateRegistration(req); err != nil {
		return User{}, "", err
	}

	hash, err := hashPasswordFn([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, "", errors.Wrap(err, "hash password")
	}

	user := User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO users (id, username, email, password_hash, full_name)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, user.ID, user.Username, user.Email, user.PasswordHash, user.FullName)
	if err := row.Scan(&user.CreatedAt); err != nil {
		if pgErr, ok := db.AsPgError(err); ok && pgErr.Code == db.CodeUniqueViolation {
			v := apperr.NewValidationError()
			if strings.Contains(pgErr.ConstraintName, "email") {
				v.Add("email", "A user with that email already exists.")
			} else {
				v.Add("username", "A user with that username already exists.")
			}
			return User{}, "", v
		}
		return User{}, "", errors.Wrap(err, "insert user")
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return User{}, "", err
	}
	return user, token, nil
}

// Login checks a username/password pair and issues a session token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (User, string, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, username, email, password_hash, full_name, created_at
		FROM users WHERE username = $1
	`, strings.TrimSpace(req.Username))

	var user User
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FullName, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, "", ErrInvalidCredentials
		}
		return User{}, "", errors.Wrap(err, "load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return User{}, "", ErrInvalidCredentials
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return User{}, "", err
	}
	return user, token, nil
}

// IssueToken signs a session token for user.
func (s *Service) IssueToken(user User) (string, error) {
	return signTokenFn(s, user)
}

// ValidateToken parses a session token and returns the viewer it names.
func (s *Service) ValidateToken(token string) (Viewer, error) {
	claims, err := parseClaims(s.secret, token)
	if err != nil {
		return Viewer{}, err
	}
	return Viewer{ID: claims.UserID, Username: claims.Username}, nil
}

func (s *Service) signToken(user User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

func parseClaims(secret []byte, token string) (*Claims, error) {
	parsed, err := parseWithClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Wrap(ErrTokenInvalid, err.Error())
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
