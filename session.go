package main

import (
	"context"
	"crypto/subtle"
	"errors"

	"go.uber.org/zap"

	"vtube/models"
	"vtube/pkg/token"
)

// TokenPair bundles a short-lived access token and a long-lived
// refresh token, as returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// SessionManager drives the per-user session state machine. The state
// is the refresh_token column on the user record: nil is logged out,
// a value is the one live session. Login overwrites it, refresh
// rotates it behind a compare-and-swap, logout clears it. All failures
// surface as apiError values for the transport layer to map.
type SessionManager struct {
	store UserStore
	codec *token.Codec
	log   *zap.Logger
}

func newSessionManager(store UserStore, codec *token.Codec, log *zap.Logger) *SessionManager {
	return &SessionManager{store: store, codec: codec, log: log}
}

func (m *SessionManager) issuePair(u *models.User) (TokenPair, error) {
	access, err := m.codec.IssueAccess(u.ID, token.Profile{
		Username: u.Username,
		Email:    u.Email,
		FullName: u.FullName,
	})
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := m.codec.IssueRefresh(u.ID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Login verifies credentials and starts a new session. Any previously
// stored refresh token is overwritten, which invalidates sessions on
// other devices (one live session per user).
func (m *SessionManager) Login(ctx context.Context, identifier, password string) (*models.User, TokenPair, error) {
	user, err := m.store.FindByEmailOrUsername(ctx, identifier)
	if err != nil {
		if errors.Is(err, errUserNotFound) {
			return nil, TokenPair{}, notFound("user not found")
		}
		m.log.Error("login: user lookup failed", zap.Error(err))
		return nil, TokenPair{}, dependencyFailure("login failed")
	}

	if !checkPassword(password, user.HashedPassword) {
		return nil, TokenPair{}, unauthorized("invalid password")
	}

	pair, err := m.issuePair(user)
	if err != nil {
		m.log.Error("login: token issuance failed", zap.Error(err))
		return nil, TokenPair{}, dependencyFailure("failed to generate tokens")
	}
	if err := m.store.SetRefreshToken(ctx, user.ID, &pair.RefreshToken); err != nil {
		m.log.Error("login: storing refresh token failed", zap.Error(err))
		return nil, TokenPair{}, dependencyFailure("failed to generate tokens")
	}
	user.RefreshToken = &pair.RefreshToken
	return user, pair, nil
}

// Refresh validates a presented refresh token and rotates the session.
//
// Two separate checks guard the rotation: the signature proves the
// token is authentic and unexpired, and the comparison against the
// stored value proves it has not been superseded by a later rotation
// or a logout. A superseded token is reported as used even though its
// signature still verifies.
func (m *SessionManager) Refresh(ctx context.Context, presented string) (TokenPair, error) {
	claims, err := m.codec.VerifyRefresh(presented)
	if err != nil {
		return TokenPair{}, unauthorized("invalid refresh token")
	}

	user, err := m.store.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, errUserNotFound) {
			return TokenPair{}, unauthorized("invalid refresh token")
		}
		m.log.Error("refresh: user lookup failed", zap.Error(err))
		return TokenPair{}, dependencyFailure("refresh failed")
	}

	if user.RefreshToken == nil ||
		subtle.ConstantTimeCompare([]byte(presented), []byte(*user.RefreshToken)) != 1 {
		return TokenPair{}, unauthorized("Refresh token is Expired or used")
	}

	pair, err := m.issuePair(user)
	if err != nil {
		m.log.Error("refresh: token issuance failed", zap.Error(err))
		return TokenPair{}, dependencyFailure("failed to generate tokens")
	}

	// The store performs the swap conditionally; when two refreshes race
	// on the same token only one write matches.
	if err := m.store.RotateRefreshToken(ctx, user.ID, presented, pair.RefreshToken); err != nil {
		if errors.Is(err, errTokenMismatch) {
			return TokenPair{}, unauthorized("Refresh token is Expired or used")
		}
		m.log.Error("refresh: rotation failed", zap.Error(err))
		return TokenPair{}, dependencyFailure("refresh failed")
	}
	return pair, nil
}

// Logout clears the stored refresh token. Older tokens keep verifying
// cryptographically but fail the stored-value check from now on.
func (m *SessionManager) Logout(ctx context.Context, userID uint) error {
	if err := m.store.SetRefreshToken(ctx, userID, nil); err != nil {
		if errors.Is(err, errUserNotFound) {
			return unauthorized("invalid session")
		}
		m.log.Error("logout failed", zap.Error(err))
		return dependencyFailure("logout failed")
	}
	return nil
}

// ChangePassword re-hashes and stores a new password after verifying
// the old one. The stored refresh token is left untouched: the current
// session stays valid across a password change.
func (m *SessionManager) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	if !validPassword(newPassword) {
		return badRequest("new password too short (min 6)")
	}

	user, err := m.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, errUserNotFound) {
			return unauthorized("invalid session")
		}
		m.log.Error("change password: user lookup failed", zap.Error(err))
		return dependencyFailure("password change failed")
	}

	if !checkPassword(oldPassword, user.HashedPassword) {
		return badRequest("invalid old password")
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		m.log.Error("change password: hashing failed", zap.Error(err))
		return dependencyFailure("password change failed")
	}
	if err := m.store.UpdatePassword(ctx, userID, hash); err != nil {
		m.log.Error("change password: persist failed", zap.Error(err))
		return dependencyFailure("password change failed")
	}
	return nil
}
