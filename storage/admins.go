package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/verivote/dreip-backend/log"
)

// Admin is an administrator account document. PasswordHash is an Argon2i
// PHC-formatted string.
type Admin struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	PasswordHash string             `bson:"password_hash"`
}

// AdminByUsername returns the admin with the given username.
func (s *Store) AdminByUsername(ctx context.Context, username string) (*Admin, error) {
	var admin Admin
	err := s.admins().FindOne(ctx, bson.M{"username": username}).Decode(&admin)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find admin %q: %w", username, err)
	}
	return &admin, nil
}

// AdminByID returns the admin with the given document ID.
func (s *Store) AdminByID(ctx context.Context, id primitive.ObjectID) (*Admin, error) {
	var admin Admin
	err := s.admins().FindOne(ctx, bson.M{"_id": id}).Decode(&admin)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find admin: %w", err)
	}
	return &admin, nil
}

// CreateAdmin inserts a new administrator account.
func (s *Store) CreateAdmin(ctx context.Context, username, passwordHash string) error {
	_, err := s.admins().InsertOne(ctx, Admin{Username: username, PasswordHash: passwordHash})
	if err != nil {
		return fmt.Errorf("insert admin %q: %w", username, err)
	}
	return nil
}

// EnsureAdmin seeds the given administrator account if no admin exists at
// all, so a fresh deployment is never locked out.
func (s *Store) EnsureAdmin(ctx context.Context, username, passwordHash string) error {
	count, err := s.admins().CountDocuments(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if count > 0 {
		return nil
	}
	log.Infow("seeding initial admin account", "username", username)
	return s.CreateAdmin(ctx, username, passwordHash)
}
