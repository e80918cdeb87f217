package user

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"copro-backend/internal/domain"
	"copro-backend/internal/middleware"
	"copro-backend/internal/pkg/constants"
	"copro-backend/internal/pkg/validation"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const bcryptCost = 10

// Service manages back-office accounts. Rdb is optional; without it role
// changes do not revoke live sessions.
type Service struct {
	DB  *gorm.DB
	Rdb *redis.Client
}

type CreateUserInput struct {
	Email    string
	Password string
	Fullname string
	Role     string
}

// CreateUser validates and stores a new account with a bcrypt password hash.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || !validation.IsValidEmail(email) {
		return nil, domain.Invalid("Invalid email format")
	}
	if !validation.IsValidPassword(in.Password) {
		return nil, domain.Invalid("Password must be at least 8 characters with a letter, a digit and a special character")
	}
	fullname := strings.TrimSpace(in.Fullname)
	if !validation.IsValidFullname(fullname) {
		return nil, domain.Invalid("Full name contains invalid characters (only letters, spaces, hyphens, and apostrophes allowed)")
	}
	role := in.Role
	if role == "" {
		role = constants.Viewer
	}
	if !constants.IsValidRole(role) {
		return nil, domain.Invalid("Invalid role: %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		Email:        email,
		PasswordHash: string(hash),
		Fullname:     titleCaseAndNormalize(fullname),
		Role:         role,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return domain.Conflict("Email already registered")
		}
		return tx.Create(u).Error
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("user_id", u.UserID.String()).Str("role", role).Msg("user created")
	return u, nil
}

// SetRole changes the role of the account with the given email and logs it
// out everywhere. The last superadmin cannot be downgraded.
func (s *Service) SetRole(ctx context.Context, email, role string) (*domain.User, error) {
	if !constants.IsValidRole(role) {
		return nil, domain.Invalid("Invalid role: %q", role)
	}
	email = strings.TrimSpace(strings.ToLower(email))
	var u domain.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", email).First(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFound("User not found")
			}
			return err
		}
		if u.Role == role {
			return nil
		}
		if u.Role == constants.Superadmin {
			var count int64
			if err := tx.Model(&domain.User{}).Where("role = ?", constants.Superadmin).Count(&count).Error; err != nil {
				return err
			}
			if count <= 1 {
				return domain.Conflict("At least one superadmin must remain")
			}
		}
		u.Role = role
		return tx.Model(&u).Update("role", role).Error
	})
	if err != nil {
		return nil, err
	}
	if s.Rdb != nil {
		middleware.DestroyUserSessions(ctx, s.Rdb, u.UserID.String())
	}
	return &u, nil
}

func titleCaseAndNormalize(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	var b strings.Builder
	capitalize := true
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !capitalize {
				b.WriteRune(' ')
				capitalize = true
			}
			continue
		}
		if capitalize {
			b.WriteRune(unicode.ToUpper(r))
			capitalize = false
		} else {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
