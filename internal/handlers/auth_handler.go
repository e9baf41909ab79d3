package handlers

import (
	"errors"
	"net/mail"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pedrowpmiguel/fitconnect-sub000/internal/models"
	"github.com/pedrowpmiguel/fitconnect-sub000/internal/repository"
	"github.com/pedrowpmiguel/fitconnect-sub000/pkg/utils"
)

type AuthHandler struct {
	userRepo  *repository.UserRepository
	jwtSecret string
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	TrainerID *int64 `json:"trainerId"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func NewAuthHandler(userRepo *repository.UserRepository, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
	}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	parsedEmail, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid email format")
	}
	req.Email = strings.ToLower(parsedEmail.Address)
	if len(req.Password) < 8 {
		return respondError(c, fiber.StatusBadRequest, "Password must be at least 8 characters")
	}
	if strings.TrimSpace(req.Name) == "" {
		return respondError(c, fiber.StatusBadRequest, "Name is required")
	}
	if req.Role != models.RoleClient && req.Role != models.RoleTrainer {
		return respondError(c, fiber.StatusBadRequest, "Invalid role")
	}
	if req.Role == models.RoleTrainer && req.TrainerID != nil {
		return respondError(c, fiber.StatusBadRequest, "Trainers cannot have a trainer")
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: hashed,
		Name:         strings.TrimSpace(req.Name),
		Role:         req.Role,
		TrainerID:    req.TrainerID,
	}
	if err := h.userRepo.CreateUser(c.Context(), user); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return respondError(c, fiber.StatusConflict, "Email already exists")
		}
		return respondError(c, fiber.StatusInternalServerError, "Failed to create user")
	}

	token, err := utils.GenerateToken(strconv.FormatInt(user.ID, 10), user.Role, h.jwtSecret)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to generate token")
	}

	return respondCreated(c, fiber.Map{"user": user, "token": token})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	user, err := h.userRepo.GetByEmail(c.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return respondError(c, fiber.StatusUnauthorized, "Invalid credentials")
		}
		return respondError(c, fiber.StatusInternalServerError, "Failed to log in")
	}

	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		return respondError(c, fiber.StatusUnauthorized, "Invalid credentials")
	}

	token, err := utils.GenerateToken(strconv.FormatInt(user.ID, 10), user.Role, h.jwtSecret)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to generate token")
	}

	return respondOK(c, fiber.Map{"user": user, "token": token})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	actorID, _, err := actorFromContext(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	user, err := h.userRepo.GetByID(c.Context(), actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return respondError(c, fiber.StatusNotFound, "User not found")
		}
		return respondError(c, fiber.StatusInternalServerError, "Failed to load user")
	}

	return respondOK(c, fiber.Map{"user": user})
}
