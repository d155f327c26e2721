package services

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"time"

	"civilsite-backend-go/internal/db"
	"civilsite-backend-go/internal/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

const msgInvalidCredentials = "Invalid credentials"

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

type CreateAdminInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (in CreateAdminInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username,
			validation.Required.Error("username is required"),
			validation.Length(3, 64).Error("username must be 3-64 characters"),
			validation.Match(usernamePattern).Error("username may only contain letters, digits, dots, dashes and underscores"),
		),
		validation.Field(&in.Password,
			validation.Required.Error("password is required"),
			validation.Length(8, 128).Error("password must be 8-128 characters"),
		),
		validation.Field(&in.Role, validation.In(models.RoleAdmin, models.RoleEmployee).Error("role must be ADMIN or EMPLOYEE")),
	)
}

func FindAdminByUsername(ctx context.Context, conn *sqlx.DB, username string) (models.Admin, error) {
	var admin models.Admin
	err := conn.GetContext(ctx, &admin, conn.Rebind(`
SELECT id, username, password_hash, role, created_at FROM admins WHERE username = ?`), username)
	return admin, err
}

func ListAdmins(ctx context.Context, conn *sqlx.DB) ([]models.Admin, error) {
	admins := []models.Admin{}
	err := conn.SelectContext(ctx, &admins, `SELECT id, username, password_hash, role, created_at FROM admins ORDER BY id`)
	return admins, err
}

func CountAdmins(ctx context.Context, conn *sqlx.DB) (int, error) {
	var n int
	err := conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM admins`)
	return n, err
}

// CreateAdmin validates and stores a new account with a hashed password.
// A taken username is a conflict.
func CreateAdmin(ctx context.Context, conn *sqlx.DB, tokens TokenService, in CreateAdminInput) (models.Admin, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Role = strings.ToUpper(strings.TrimSpace(in.Role))
	if in.Role == "" {
		in.Role = models.RoleEmployee
	}
	if err := Validation(in.Validate()); err != nil {
		return models.Admin{}, err
	}
	hash, err := tokens.HashPassword(in.Password)
	if err != nil {
		return models.Admin{}, WrapError(err, "hash password")
	}
	admin := models.Admin{
		Username:     in.Username,
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	err = conn.QueryRowxContext(ctx, conn.Rebind(`
INSERT INTO admins (username, password_hash, role, created_at) VALUES (?, ?, ?, ?) RETURNING id`),
		admin.Username, admin.PasswordHash, admin.Role, admin.CreatedAt).Scan(&admin.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return models.Admin{}, ErrConflict("Username already exists")
		}
		return models.Admin{}, err
	}
	return admin, nil
}

// DeleteAdmin removes an account. Nobody can delete the account they are signed in with.
func DeleteAdmin(ctx context.Context, conn *sqlx.DB, actorID, id int64) error {
	if id <= 0 {
		return ErrBadRequest("id must be a positive integer id")
	}
	if id == actorID {
		return ErrBadRequest("You cannot delete your own account")
	}
	res, err := conn.ExecContext(ctx, conn.Rebind(`DELETE FROM admins WHERE id = ?`), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound("Employee not found")
	}
	return nil
}

// Authenticate checks a username/password pair. Unknown users and wrong
// passwords produce the same error.
func Authenticate(ctx context.Context, conn *sqlx.DB, tokens TokenService, username, password string) (models.Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return models.Admin{}, ErrUnauthorized(msgInvalidCredentials)
	}
	admin, err := FindAdminByUsername(ctx, conn, username)
	if errors.Is(err, sql.ErrNoRows) {
		tokens.BurnPasswordCheck(password)
		return models.Admin{}, ErrUnauthorized(msgInvalidCredentials)
	}
	if err != nil {
		return models.Admin{}, err
	}
	if !tokens.VerifyPassword(password, admin.PasswordHash) {
		return models.Admin{}, ErrUnauthorized(msgInvalidCredentials)
	}
	return admin, nil
}

// EnsureBootstrapAdmin creates the first ADMIN account when none exist.
func EnsureBootstrapAdmin(ctx context.Context, conn *sqlx.DB, tokens TokenService, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	n, err := CountAdmins(ctx, conn)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	admin, err := CreateAdmin(ctx, conn, tokens, CreateAdminInput{Username: username, Password: password, Role: models.RoleAdmin})
	if err != nil {
		return WrapError(err, "bootstrap admin")
	}
	log.Info().Str("username", admin.Username).Msg("bootstrap admin created")
	return nil
}
