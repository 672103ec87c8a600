package main

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vtube/models"
	"vtube/pkg/media"
	"vtube/pkg/token"
)

const maxImageBytes = 5 * 1024 * 1024

type server struct {
	cfg      *Config
	log      *zap.Logger
	store    UserStore
	sessions *SessionManager
	codec    *token.Codec
	media    media.Store
}

func newServer(cfg *Config, log *zap.Logger, store UserStore, sessions *SessionManager, codec *token.Codec, mediaStore media.Store) *server {
	return &server{cfg: cfg, log: log, store: store, sessions: sessions, codec: codec, media: mediaStore}
}

func (s *server) setupRoutes(r *gin.Engine) {
	r.POST("/register", s.registerHandler)
	r.POST("/login", s.loginHandler)
	r.POST("/refresh", s.refreshHandler)
	authGroup := r.Group("")
	authGroup.Use(s.authMiddleware())
	authGroup.POST("/logout", s.logoutHandler)
	authGroup.GET("/me", s.meHandler)
	authGroup.POST("/change-password", s.changePasswordHandler)
	authGroup.PATCH("/account", s.updateAccountHandler)
	authGroup.PATCH("/avatar", s.updateAvatarHandler)
	authGroup.PATCH("/cover-image", s.updateCoverImageHandler)
}

// requestContext bounds store and upload calls to the configured
// per-request timeout.
func (s *server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.cfg.Server.RequestTimeout)
}

func respondJSON(c *gin.Context, status int, data interface{}, message string) {
	c.JSON(status, gin.H{"success": true, "data": data, "message": message})
}

// respondError is the single place errors become HTTP responses.
func respondError(c *gin.Context, err error) {
	status, msg := httpStatus(err)
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

func (s *server) setAuthCookies(c *gin.Context, pair TokenPair) {
	// Session cookies: no explicit expiry, HTTP-only, secure transport.
	c.SetCookie("accessToken", pair.AccessToken, 0, "/", s.cfg.Auth.CookieDomain, s.cfg.Auth.CookieSecure, true)
	c.SetCookie("refreshToken", pair.RefreshToken, 0, "/", s.cfg.Auth.CookieDomain, s.cfg.Auth.CookieSecure, true)
}

func (s *server) clearAuthCookies(c *gin.Context) {
	c.SetCookie("accessToken", "", -1, "/", s.cfg.Auth.CookieDomain, s.cfg.Auth.CookieSecure, true)
	c.SetCookie("refreshToken", "", -1, "/", s.cfg.Auth.CookieDomain, s.cfg.Auth.CookieSecure, true)
}

// authMiddleware accepts the access token from the accessToken cookie
// or, failing that, a Bearer Authorization header, and stores the
// verified subject id in the request context.
func (s *server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := c.Cookie("accessToken")
		if err != nil || tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				tokenString = authHeader[len("Bearer "):]
			}
		}
		if tokenString == "" {
			respondError(c, unauthorized("authentication required"))
			return
		}
		claims, err := s.codec.VerifyAccess(tokenString)
		if err != nil {
			respondError(c, unauthorized("invalid access token"))
			return
		}
		c.Set("userID", claims.UserID)
		c.Next()
	}
}

func userIDFromContext(c *gin.Context) (uint, bool) {
	v, ok := c.Get("userID")
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// uploadImage normalizes an uploaded image and pushes it to the media
// store, returning the public URL and the storage key so a caller can
// delete the object again if a later write fails.
func (s *server) uploadImage(ctx context.Context, fh *multipart.FileHeader, folder string) (string, string, error) {
	if fh.Size > maxImageBytes {
		return "", "", badRequest("file too large (max 5MB)")
	}
	f, err := fh.Open()
	if err != nil {
		return "", "", badRequest("unreadable file")
	}
	defer f.Close()

	buf, contentType, err := media.NormalizeImage(f)
	if err != nil {
		return "", "", badRequest("unsupported image format")
	}
	key := media.ObjectKey(folder, ".jpg")
	url, err := s.media.Upload(ctx, key, contentType, buf)
	if err != nil {
		s.log.Error("image upload failed", zap.String("folder", folder), zap.Error(err))
		return "", "", dependencyFailure("failed to upload image")
	}
	return url, key, nil
}

// removeUploads is best-effort cleanup of objects uploaded ahead of a
// record write that then failed.
func (s *server) removeUploads(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.media.Delete(ctx, key); err != nil {
			s.log.Warn("orphaned upload not removed", zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *server) registerHandler(c *gin.Context) {
	fullName := strings.TrimSpace(c.PostForm("fullName"))
	email := normalizeIdentifier(c.PostForm("email"))
	username := normalizeIdentifier(c.PostForm("username"))
	password := c.PostForm("password")

	if fullName == "" || email == "" || username == "" || password == "" {
		respondError(c, badRequest("all fields are required"))
		return
	}
	if !validPassword(password) {
		respondError(c, badRequest("password too short (min 6)"))
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	for _, identifier := range []string{email, username} {
		if _, err := s.store.FindByEmailOrUsername(ctx, identifier); err == nil {
			respondError(c, conflict("user already exists with this email or username"))
			return
		}
	}

	avatarFile, err := c.FormFile("avatar")
	if err != nil {
		respondError(c, badRequest("avatar file is required"))
		return
	}
	avatarURL, avatarKey, err := s.uploadImage(ctx, avatarFile, "avatars")
	if err != nil {
		respondError(c, err)
		return
	}
	uploaded := []string{avatarKey}

	coverURL := ""
	if coverFile, err := c.FormFile("coverImage"); err == nil {
		var coverKey string
		coverURL, coverKey, err = s.uploadImage(ctx, coverFile, "covers")
		if err != nil {
			s.removeUploads(ctx, uploaded)
			respondError(c, err)
			return
		}
		uploaded = append(uploaded, coverKey)
	}

	hash, err := hashPassword(password)
	if err != nil {
		s.log.Error("register: hashing failed", zap.Error(err))
		s.removeUploads(ctx, uploaded)
		respondError(c, dependencyFailure("failed to create user"))
		return
	}

	user := &models.User{
		FullName:       fullName,
		Email:          email,
		Username:       username,
		HashedPassword: hash,
		Avatar:         avatarURL,
		CoverImage:     coverURL,
	}
	if err := s.store.Create(ctx, user); err != nil {
		// Images went up before the insert; don't leave them orphaned.
		s.removeUploads(ctx, uploaded)
		if errors.Is(err, errDuplicateUser) {
			respondError(c, conflict("user already exists with this email or username"))
			return
		}
		s.log.Error("register: create failed", zap.Error(err))
		respondError(c, dependencyFailure("failed to create user"))
		return
	}
	respondJSON(c, http.StatusCreated, user, "user registered successfully")
}

func (s *server) loginHandler(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, badRequest("invalid request body"))
		return
	}
	identifier := req.Email
	if identifier == "" {
		identifier = req.Username
	}
	if identifier == "" {
		respondError(c, badRequest("username or email is required"))
		return
	}
	if req.Password == "" {
		respondError(c, badRequest("password is required"))
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	user, pair, err := s.sessions.Login(ctx, identifier, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	s.setAuthCookies(c, pair)
	respondJSON(c, http.StatusOK, gin.H{
		"user":         user,
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	}, "user logged in successfully")
}

func (s *server) refreshHandler(c *gin.Context) {
	// Cookie first, request body as fallback.
	presented, _ := c.Cookie("refreshToken")
	if presented == "" {
		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := c.ShouldBindJSON(&req); err == nil {
			presented = req.RefreshToken
		}
	}
	if presented == "" {
		respondError(c, unauthorized("refresh token is required"))
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	pair, err := s.sessions.Refresh(ctx, presented)
	if err != nil {
		respondError(c, err)
		return
	}
	s.setAuthCookies(c, pair)
	respondJSON(c, http.StatusOK, pair, "access token refreshed successfully")
}

func (s *server) logoutHandler(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		respondError(c, unauthorized("authentication required"))
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	if err := s.sessions.Logout(ctx, userID); err != nil {
		respondError(c, err)
		return
	}
	s.clearAuthCookies(c)
	respondJSON(c, http.StatusOK, gin.H{}, "user logged out successfully")
}

func (s *server) meHandler(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		respondError(c, unauthorized("authentication required"))
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		respondError(c, unauthorized("invalid session"))
		return
	}
	respondJSON(c, http.StatusOK, user, "current user fetched successfully")
}

func (s *server) changePasswordHandler(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		respondError(c, unauthorized("authentication required"))
		return
	}
	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.OldPassword == "" || req.NewPassword == "" {
		respondError(c, badRequest("oldPassword and newPassword are required"))
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	if err := s.sessions.ChangePassword(ctx, userID, req.OldPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{}, "password changed successfully")
}

func (s *server) updateAccountHandler(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		respondError(c, unauthorized("authentication required"))
		return
	}
	var req struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.FullName) == "" || strings.TrimSpace(req.Email) == "" {
		respondError(c, badRequest("fullName and email are required"))
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	user, err := s.store.UpdateAccount(ctx, userID, strings.TrimSpace(req.FullName), req.Email)
	if err != nil {
		if errors.Is(err, errDuplicateUser) {
			respondError(c, conflict("email already taken"))
			return
		}
		s.log.Error("account update failed", zap.Error(err))
		respondError(c, dependencyFailure("account update failed"))
		return
	}
	respondJSON(c, http.StatusOK, user, "account details updated successfully")
}

func (s *server) updateAvatarHandler(c *gin.Context) {
	s.updateImageHandler(c, "avatar", "avatars", "avatar updated successfully")
}

func (s *server) updateCoverImageHandler(c *gin.Context) {
	s.updateImageHandler(c, "cover_image", "covers", "cover image updated successfully")
}

func (s *server) updateImageHandler(c *gin.Context, column, folder, message string) {
	userID, ok := userIDFromContext(c)
	if !ok {
		respondError(c, unauthorized("authentication required"))
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, badRequest("file is required"))
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	url, key, err := s.uploadImage(ctx, fh, folder)
	if err != nil {
		respondError(c, err)
		return
	}
	user, err := s.store.UpdateImage(ctx, userID, column, url)
	if err != nil {
		s.log.Error("image update failed", zap.String("column", column), zap.Error(err))
		s.removeUploads(ctx, []string{key})
		respondError(c, dependencyFailure("image update failed"))
		return
	}
	respondJSON(c, http.StatusOK, user, message)
}
