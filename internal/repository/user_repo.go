package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pedrowpmiguel/fitconnect-sub000/internal/models"
)

type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, name, role, trainer_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query, user.Email, user.PasswordHash, user.Name, user.Role, user.TrainerID).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, name, role, trainer_id, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, email).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.Role, &user.TrainerID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, name, role, trainer_id, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, id).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.Role, &user.TrainerID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// TrainerContact returns the client's assigned trainer, if any.
func (r *UserRepository) TrainerContact(ctx context.Context, clientID int64) (*models.Contact, error) {
	query := `
		SELECT t.id, t.name, t.role
		FROM users c
		JOIN users t ON t.id = c.trainer_id
		WHERE c.id = $1
	`
	var contact models.Contact
	err := r.db.QueryRow(ctx, query, clientID).
		Scan(&contact.ID, &contact.Name, &contact.Role)
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// ClientContacts returns every client assigned to the trainer.
func (r *UserRepository) ClientContacts(ctx context.Context, trainerID int64) ([]models.Contact, error) {
	query := `
		SELECT id, name, role
		FROM users
		WHERE trainer_id = $1
		ORDER BY name ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, trainerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := make([]models.Contact, 0)
	for rows.Next() {
		var contact models.Contact
		if err := rows.Scan(&contact.ID, &contact.Name, &contact.Role); err != nil {
			return nil, err
		}
		contacts = append(contacts, contact)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return contacts, nil
}

// IsAssigned reports whether clientID has trainerID as their trainer.
func (r *UserRepository) IsAssigned(ctx context.Context, trainerID, clientID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE id = $1 AND trainer_id = $2
		)
	`
	var assigned bool
	if err := r.db.QueryRow(ctx, query, clientID, trainerID).Scan(&assigned); err != nil {
		return false, err
	}
	return assigned, nil
}
