package service

import (
	"context"
	"errors"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"inkwell/internal/model"
	"inkwell/internal/repository"
	"inkwell/internal/store"
)

type CreateUserInput struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Sub   string `json:"sub"`
}

type UpdateUserInput struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

type UserService struct {
	users repository.UserStore
}

func NewUserService(users repository.UserStore) *UserService {
	return &UserService{users: users}
}

func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, NotFound("User", strconv.FormatInt(id, 10))
	}
	return user, nil
}

// GetBySub returns nil without an error when no profile exists for sub.
func (s *UserService) GetBySub(ctx context.Context, sub string) (*model.User, error) {
	return s.users.FindBySub(ctx, sub)
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.users.FindMany(ctx, nil)
}

func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*model.User, error) {
	if err := check("email", input.Email, validation.Required.Error("Email is required")); err != nil {
		return nil, err
	}
	if err := check("name", input.Name, validation.Required.Error("Name is required")); err != nil {
		return nil, err
	}
	if err := check("sub", input.Sub, validation.Required.Error("Sub is required")); err != nil {
		return nil, err
	}

	existing, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, Conflict("Email")
	}
	existing, err = s.users.FindBySub(ctx, input.Sub)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, Conflict("User")
	}

	user := &model.User{Email: input.Email, Name: input.Name, Sub: input.Sub}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) Update(ctx context.Context, id int64, input UpdateUserInput) (*model.User, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := checkOptional("name", input.Name, validation.Required.Error("Name cannot be empty")); err != nil {
		return nil, err
	}
	if input.Email != nil {
		if err := check("email", *input.Email, validation.Required.Error("Email cannot be empty")); err != nil {
			return nil, err
		}
		other, err := s.users.FindByEmail(ctx, *input.Email)
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != id {
			return nil, Conflict("Email")
		}
	}

	updated, err := s.users.Update(ctx, id, model.UserUpdate{Name: input.Name, Email: input.Email})
	if errors.Is(err, store.ErrNotFound) {
		return nil, NotFound("User", strconv.FormatInt(id, 10))
	}
	return updated, err
}

func (s *UserService) Delete(ctx context.Context, id int64) (*model.User, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	deleted, err := s.users.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, NotFound("User", strconv.FormatInt(id, 10))
	}
	return deleted, err
}

// SignUp creates the profile for an authenticated subject, or renames it when
// the subject already has one.
func (s *UserService) SignUp(ctx context.Context, sub, email, name string) (*model.User, error) {
	if err := check("name", name, validation.Required.Error("Name is required")); err != nil {
		return nil, err
	}
	existing, err := s.users.FindBySub(ctx, sub)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.Update(ctx, existing.ID, UpdateUserInput{Name: &name})
	}
	return s.Create(ctx, CreateUserInput{Email: email, Name: name, Sub: sub})
}
