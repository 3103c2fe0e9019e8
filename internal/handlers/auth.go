package handlers

import (
	"net/http"
	"strings"
	"time"
	"unicode"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/nano-social/backend/internal/middleware"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// Tokens expire after 72 hours
const tokenLifetime = 72 * time.Hour

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	userRepository repositories.UserRepository
	jwtSecret      string
	denylist       middleware.TokenDenylist
}

// NewAuthHandler creates a new AuthHandler. Logged out tokens go to denylist.
func NewAuthHandler(userRepo repositories.UserRepository, jwtSecret string, denylist middleware.TokenDenylist) *AuthHandler {
	return &AuthHandler{
		userRepository: userRepo,
		jwtSecret:      jwtSecret,
		denylist:       denylist,
	}
}

// RegisterAuthRoutes registers authentication-related routes. firebase guards
// the Firebase login route, jwtAuth the logout route.
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group, firebase, jwtAuth echo.MiddlewareFunc) {
	g.POST("/signup", h.Signup)
	g.POST("/signin", h.SignIn)
	g.POST("/firebase-login", h.FirebaseLogin, firebase)
	g.POST("/logout", h.Logout, jwtAuth)
}

// Signup handles local user registration with username, email and password
func (h *AuthHandler) Signup(c echo.Context) error {
	var req models.SignupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	// Check if user with this email already exists
	if _, err := h.userRepository.GetUserByEmail(ctx, req.Email); err == nil {
		return echo.NewHTTPError(http.StatusConflict, "User with this email already registered")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return httpError(c, err, "")
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to hash password")
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: string(hashedPassword),
	}
	if err := h.userRepository.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return echo.NewHTTPError(http.StatusConflict, "Username already taken")
		}
		return httpError(c, err, "")
	}

	// Generate and return JWT for the newly registered user
	token, err := h.generateJWT(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token after signup")
	}

	return c.JSON(http.StatusCreated, echo.Map{"token": token, "user": user})
}

// SignIn handles local user authentication with email and password
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req models.SignInRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.userRepository.GetUserByEmail(c.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
		}
		return httpError(c, err, "")
	}

	// Firebase-only accounts have no local password
	if user.Password == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	}

	token, err := h.generateJWT(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	return c.JSON(http.StatusOK, echo.Map{"token": token, "user": user})
}

// FirebaseLogin exchanges a verified Firebase ID token for a local JWT,
// creating or linking the local account on first use.
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	token, ok := c.Get("firebaseToken").(*auth.Token)
	if !ok || token == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Firebase ID token")
	}
	ctx := c.Request().Context()

	email, _ := token.Claims["email"].(string)
	if email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Firebase account has no email")
	}

	// Try to find user by Firebase UID, then by email
	user, err := h.userRepository.GetUserByFirebaseUID(ctx, token.UID)
	switch {
	case err == nil:
	case errors.Is(err, repositories.ErrNotFound):
		user, err = h.userRepository.GetUserByEmail(ctx, email)
		switch {
		case err == nil:
			uid := token.UID
			user.FirebaseUID = &uid
			if err := h.userRepository.UpdateUser(ctx, user); err != nil {
				return httpError(c, err, "")
			}
		case errors.Is(err, repositories.ErrNotFound):
			if user, err = h.createFirebaseUser(c, token.UID, email); err != nil {
				return httpError(c, err, "")
			}
		default:
			return httpError(c, err, "")
		}
	default:
		return httpError(c, err, "")
	}

	localJWT, err := h.generateJWT(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate local JWT")
	}

	return c.JSON(http.StatusOK, echo.Map{"token": localJWT, "user": user})
}

// Logout revokes the caller's token until it would have expired anyway
func (h *AuthHandler) Logout(c echo.Context) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	if claims.ID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Token cannot be revoked")
	}

	until := time.Now().Add(tokenLifetime)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if err := h.denylist.Revoke(c.Request().Context(), claims.ID, until); err != nil {
		return httpError(c, err, "")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Logged out successfully"})
}

func (h *AuthHandler) createFirebaseUser(c echo.Context, uid, email string) (*models.User, error) {
	base := usernameFromEmail(email)
	user := &models.User{Username: base, Email: email, FirebaseUID: &uid}
	err := h.userRepository.CreateUser(c.Request().Context(), user)
	if errors.Is(err, repositories.ErrAlreadyExists) {
		// username clash, retry once with a random suffix
		user = &models.User{Username: base + strings.ReplaceAll(uuid.NewString(), "-", "")[:6], Email: email, FirebaseUID: &uid}
		err = h.userRepository.CreateUser(c.Request().Context(), user)
	}
	return user, err
}

func usernameFromEmail(email string) string {
	local := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		local = email[:at]
	}
	var b strings.Builder
	for _, r := range local {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if len(name) < 3 {
		name = "user" + name
	}
	if len(name) > 40 {
		name = name[:40]
	}
	return name
}

// generateJWT generates a JWT token for a given user
func (h *AuthHandler) generateJWT(user *models.User) (string, error) {
	claims := &models.JwtCustomClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.jwtSecret))
}
