package store

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"inkwell/internal/model"
)

type UserStore struct {
	db *bun.DB
}

func NewUserStore(db *bun.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) FindByID(ctx context.Context, id int64) (*model.User, error) {
	user := new(model.User)
	found, err := scanOne(ctx, s.db.NewSelect().Model(user).Where("u.id = ?", id), user)
	return found, wrap("find user", err)
}

func (s *UserStore) FindBySub(ctx context.Context, sub string) (*model.User, error) {
	user := new(model.User)
	found, err := scanOne(ctx, s.db.NewSelect().Model(user).Where("u.sub = ?", sub), user)
	return found, wrap("find user by sub", err)
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user := new(model.User)
	found, err := scanOne(ctx, s.db.NewSelect().Model(user).Where("u.email = ?", email), user)
	return found, wrap("find user by email", err)
}

func (s *UserStore) FindMany(ctx context.Context, opts *model.FindOptions) ([]model.User, error) {
	users := make([]model.User, 0)
	q, err := applyFindOptions(s.db.NewSelect().Model(&users), "u", opts, "id", "createdAt", "updatedAt", "name")
	if err != nil {
		return nil, err
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	return users, nil
}

func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := s.db.NewInsert().Model(user).Exec(ctx); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) Update(ctx context.Context, id int64, upd model.UserUpdate) (*model.User, error) {
	var updated *model.User
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user := new(model.User)
		found, err := scanOne(ctx, tx.NewSelect().Model(user).Where("u.id = ?", id), user)
		if err != nil {
			return fmt.Errorf("load user %d: %w", id, err)
		}
		if found == nil {
			return ErrNotFound
		}

		if upd.Name != nil {
			user.Name = *upd.Name
		}
		if upd.Email != nil {
			user.Email = *upd.Email
		}
		user.UpdatedAt = time.Now().UTC()

		if _, err := tx.NewUpdate().Model(user).Column("name", "email", "updated_at").WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("update user %d: %w", id, err)
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the user together with their articles.
func (s *UserStore) Delete(ctx context.Context, id int64) (*model.User, error) {
	var deleted *model.User
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user := new(model.User)
		found, err := scanOne(ctx, tx.NewSelect().Model(user).Where("u.id = ?", id), user)
		if err != nil {
			return fmt.Errorf("load user %d: %w", id, err)
		}
		if found == nil {
			return ErrNotFound
		}

		var articleIDs []int64
		if err := tx.NewSelect().Model((*model.Article)(nil)).Column("id").Where("user_id = ?", id).Scan(ctx, &articleIDs); err != nil {
			return fmt.Errorf("list articles of user %d: %w", id, err)
		}
		if err := deleteArticles(ctx, tx, articleIDs); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model(user).WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("delete user %d: %w", id, err)
		}
		deleted = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}
