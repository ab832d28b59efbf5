package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dcode-github/agrirent/backend/models"
	"github.com/dcode-github/agrirent/backend/repository"
	"github.com/dcode-github/agrirent/backend/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AuthService struct {
	users   repository.UserRepository
	rentals *RentalService
	tokens  *utils.TokenManager
	now     func() time.Time
}

func NewAuthService(store *repository.Store, rentals *RentalService, tokens *utils.TokenManager) *AuthService {
	return &AuthService{users: store.Users, rentals: rentals, tokens: tokens, now: time.Now}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
	Phone    string
	Pincode  string
	District string
	State    string
}

// Profile is an account as returned to its owner, with the ids of the
// bookings it has made.
type Profile struct {
	*models.User
	Rentals []primitive.ObjectID `json:"rentals"`
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, newError(ErrValidation, "name, email and password are required")
	}
	if !in.Role.Valid() {
		return nil, newError(ErrValidation, "role must be owner or renter")
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("AuthService.Register: %w", err)
	}
	now := s.now().UTC()
	user := &models.User{
		Name:      in.Name,
		Email:     in.Email,
		Password:  hash,
		Role:      in.Role,
		Phone:     in.Phone,
		Pincode:   in.Pincode,
		District:  in.District,
		State:     in.State,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newError(ErrValidation, "Email already registered")
		}
		return nil, fmt.Errorf("AuthService.Register: %w", err)
	}
	return user, nil
}

// Login checks the credentials and issues a signed token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, newError(ErrValidation, "Invalid email or password")
		}
		return "", nil, fmt.Errorf("AuthService.Login: %w", err)
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return "", nil, newError(ErrValidation, "Invalid email or password")
	}

	token, err := s.tokens.GenerateJWT(user.ID.Hex(), string(user.Role))
	if err != nil {
		return "", nil, fmt.Errorf("AuthService.Login: %w", err)
	}
	return token, user, nil
}

func (s *AuthService) Profile(ctx context.Context, userID primitive.ObjectID) (*Profile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, lookupError(err, "User not found")
	}
	ids, err := s.rentals.RentalIDsForRenter(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Profile{User: user, Rentals: ids}, nil
}

// UpdateProfile lets an account edit its own contact fields.
func (s *AuthService) UpdateProfile(ctx context.Context, userID, actorID primitive.ObjectID, upd models.ProfileUpdate) (*models.User, error) {
	if userID != actorID {
		return nil, newError(ErrForbidden, "You can only update your own profile")
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return nil, newError(ErrValidation, "name cannot be empty")
	}
	user, err := s.users.UpdateProfile(ctx, userID, upd)
	if err != nil {
		return nil, lookupError(err, "User not found")
	}
	return user, nil
}

// SetPhoto stores the pending photo once the caller is known to own the
// profile and makes it the profile picture.
func (s *AuthService) SetPhoto(ctx context.Context, userID, actorID primitive.ObjectID, attach Attach) (*models.User, error) {
	if userID != actorID {
		return nil, newError(ErrForbidden, "You can only update your own profile")
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, lookupError(err, "User not found")
	}
	url, err := attach.run(ctx)
	if err != nil {
		return nil, err
	}
	if url == "" {
		return nil, newError(ErrValidation, "No file uploaded")
	}
	return s.UpdateProfile(ctx, userID, actorID, models.ProfileUpdate{Photo: &url})
}
