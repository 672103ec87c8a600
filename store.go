package main

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"vtube/models"
)

var (
	errUserNotFound = errors.New("user not found")
	// errTokenMismatch means the conditional rotation write matched no
	// row: the presented refresh token is no longer the stored one.
	errTokenMismatch = errors.New("refresh token mismatch")
	errDuplicateUser = errors.New("email or username already taken")
)

// UserStore is the persistence boundary for user records and the
// per-user refresh-token anchor. Refresh-token writes go through
// column updates only, so they can never re-trigger password hashing.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByEmailOrUsername(ctx context.Context, identifier string) (*models.User, error)

	// SetRefreshToken overwrites the stored token unconditionally
	// (login). A nil token clears it (logout).
	SetRefreshToken(ctx context.Context, id uint, tok *string) error
	// RotateRefreshToken replaces old with new only if old is still the
	// stored value. Returns errTokenMismatch when the compare fails, so
	// concurrent rotations of the same token cannot both succeed.
	RotateRefreshToken(ctx context.Context, id uint, oldTok, newTok string) error

	UpdatePassword(ctx context.Context, id uint, hash []byte) error
	UpdateAccount(ctx context.Context, id uint, fullName, email string) (*models.User, error)
	UpdateImage(ctx context.Context, id uint, column, url string) (*models.User, error)
}

type gormUserStore struct {
	db *gorm.DB
}

func newGormUserStore(db *gorm.DB) *gormUserStore {
	return &gormUserStore{db: db}
}

func (s *gormUserStore) Create(ctx context.Context, u *models.User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueConstraintError(err) {
			return errDuplicateUser
		}
		return err
	}
	return nil
}

func (s *gormUserStore) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *gormUserStore) FindByEmailOrUsername(ctx context.Context, identifier string) (*models.User, error) {
	identifier = normalizeIdentifier(identifier)
	var u models.User
	err := s.db.WithContext(ctx).
		Where("email = ? OR username = ?", identifier, identifier).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *gormUserStore) SetRefreshToken(ctx context.Context, id uint, tok *string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("refresh_token", tok)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errUserNotFound
	}
	return nil
}

func (s *gormUserStore) RotateRefreshToken(ctx context.Context, id uint, oldTok, newTok string) error {
	// Single conditional UPDATE: the database compares and swaps
	// atomically, so two racing refreshes of the same token cannot both
	// observe a match.
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND refresh_token = ?", id, oldTok).
		Update("refresh_token", newTok)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errTokenMismatch
	}
	return nil
}

func (s *gormUserStore) UpdatePassword(ctx context.Context, id uint, hash []byte) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("hashed_password", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errUserNotFound
	}
	return nil
}

func (s *gormUserStore) UpdateAccount(ctx context.Context, id uint, fullName, email string) (*models.User, error) {
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"full_name": fullName, "email": normalizeIdentifier(email)}).Error
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, errDuplicateUser
		}
		return nil, err
	}
	return s.FindByID(ctx, id)
}

func (s *gormUserStore) UpdateImage(ctx context.Context, id uint, column, url string) (*models.User, error) {
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update(column, url).Error
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, id)
}
