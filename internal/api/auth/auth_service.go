package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"

	"github.com/FACorreiaa/gigs-profile-service/app/observability/metrics"
	"github.com/FACorreiaa/gigs-profile-service/config"
	"github.com/FACorreiaa/gigs-profile-service/internal/api/schema"
	"github.com/FACorreiaa/gigs-profile-service/internal/types"
)

const minPasswordLength = 6

var _ AuthService = (*AuthServiceImpl)(nil)

type AuthService interface {
	// Register creates the user and an initial draft profile, returning an access token.
	Register(ctx context.Context, req types.RegisterRequest) (string, *types.UserAuth, error)
	Login(ctx context.Context, email, password string) (string, *types.UserAuth, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*types.UserAuth, error)
}

type AuthServiceImpl struct {
	logger *slog.Logger
	repo   AuthRepo
	jwtCfg config.JWTConfig
	now    func() time.Time
}

func NewAuthService(repo AuthRepo, cfg *config.Config, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger: logger,
		repo:   repo,
		jwtCfg: cfg.JWT,
		now:    time.Now,
	}
}

// Register implements AuthService.
func (s *AuthServiceImpl) Register(ctx context.Context, req types.RegisterRequest) (string, *types.UserAuth, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Register")
	defer span.End()

	l := s.logger.With(slog.String("method", "Register"))
	start := s.now()
	m := metrics.Get()

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Mobile = strings.TrimSpace(req.Mobile)

	var fields []types.FieldError
	if req.Name == "" {
		fields = append(fields, types.FieldError{Field: schema.FieldName, Reason: "is required"})
	}
	if req.Email == "" {
		fields = append(fields, types.FieldError{Field: schema.FieldEmail, Reason: "is required"})
	} else if reason := schema.Validate(schema.FieldEmail, req.Email); reason != "" {
		fields = append(fields, types.FieldError{Field: schema.FieldEmail, Reason: reason})
	}
	if reason := schema.Validate(schema.FieldMobile, req.Mobile); reason != "" {
		fields = append(fields, types.FieldError{Field: schema.FieldMobile, Reason: reason})
	}
	if len(req.Password) < minPasswordLength {
		fields = append(fields, types.FieldError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", minPasswordLength)})
	}
	if len(fields) > 0 {
		span.SetStatus(codes.Error, "Validation failed")
		metrics.Outcome(ctx, m.RegisterRequestsTotal, "invalid")
		return "", nil, &types.ValidationError{Fields: fields}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		return "", nil, fmt.Errorf("failed to hash password: %w", err)
	}

	profile := types.Document{schema.FieldName: req.Name, schema.FieldEmail: req.Email}
	if req.Mobile != "" {
		profile[schema.FieldMobile] = req.Mobile
	}

	user, err := s.repo.CreateUser(ctx, &types.UserAuth{
		Name:     req.Name,
		Email:    req.Email,
		Mobile:   req.Mobile,
		Password: string(hashed),
		Role:     types.RoleUser,
	}, profile, schema.Completion(profile))
	if err != nil {
		l.WarnContext(ctx, "Registration failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Registration failed")
		metrics.Outcome(ctx, m.RegisterRequestsTotal, "error")
		return "", nil, err
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		span.RecordError(err)
		return "", nil, err
	}

	l.InfoContext(ctx, "User registered", slog.String("userID", user.ID.String()), slog.Duration("took", s.now().Sub(start)))
	span.SetStatus(codes.Ok, "User registered")
	metrics.Outcome(ctx, m.RegisterRequestsTotal, "ok")
	return token, user, nil
}

// Login implements AuthService.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (string, *types.UserAuth, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Login")
	defer span.End()

	l := s.logger.With(slog.String("method", "Login"))

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			l.InfoContext(ctx, "Login for unknown email")
			span.SetStatus(codes.Error, "Invalid credentials")
			return "", nil, fmt.Errorf("invalid credentials: %w", types.ErrUnauthorized)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Lookup failed")
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		l.InfoContext(ctx, "Login with wrong password", slog.String("userID", user.ID.String()))
		span.SetStatus(codes.Error, "Invalid credentials")
		return "", nil, fmt.Errorf("invalid credentials: %w", types.ErrUnauthorized)
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		span.RecordError(err)
		return "", nil, err
	}

	if err := s.repo.TouchLastLogin(ctx, user.ID); err != nil {
		l.WarnContext(ctx, "Failed to record last login", slog.String("userID", user.ID.String()), slog.Any("error", err))
	}

	span.SetStatus(codes.Ok, "Logged in")
	return token, user, nil
}

// GetUserByID implements AuthService.
func (s *AuthServiceImpl) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.UserAuth, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "GetUserByID")
	defer span.End()

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Lookup failed")
		return nil, fmt.Errorf("error fetching user: %w", err)
	}
	span.SetStatus(codes.Ok, "User fetched")
	return user, nil
}

// GenerateToken signs an access token for user.
func (s *AuthServiceImpl) GenerateToken(user *types.UserAuth) (string, error) {
	now := s.now()
	claims := &types.Claims{
		UserID: user.ID.String(),
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.jwtCfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtCfg.AccessTokenTTL)),
		},
	}
	if s.jwtCfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.jwtCfg.Audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtCfg.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}
