package api

import (
	"context"
	"net/http"

	"github.com/mender-qa/mgmtctl/pkg/model"
	"github.com/mender-qa/mgmtctl/pkg/util"
)

// UserService wraps the user administration API (v1). Login itself lives in
// Session.
type UserService struct {
	c *Client
}

// Settings returns the settings document of the logged-in user.
func (s *UserService) Settings(ctx context.Context) (model.UserSettings, error) {
	settings := model.UserSettings{}
	if err := s.c.getJSON(ctx, useradmV1+"/settings", nil, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// SaveSettings replaces the settings document of the logged-in user.
func (s *UserService) SaveSettings(ctx context.Context, settings model.UserSettings) error {
	if settings == nil {
		settings = model.UserSettings{}
	}
	_, err := s.c.sendJSON(ctx, http.MethodPost, useradmV1+"/settings", http.StatusCreated, settings, nil)
	return err
}

// Create adds a user and returns its id.
func (s *UserService) Create(ctx context.Context, email, password string) (string, error) {
	v := &util.ValidationBuilder{}
	v.Require("email", email)
	v.Require("password", password)
	if err := v.Build(); err != nil {
		return "", err
	}
	header, err := s.c.sendJSON(ctx, http.MethodPost, useradmV1+"/users", http.StatusCreated,
		model.NewUser{Email: email, Password: password}, nil)
	if err != nil {
		return "", err
	}
	return idFromLocation(header), nil
}

// List returns every user of the tenant.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.c.getJSON(ctx, useradmV1+"/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Get returns one user.
func (s *UserService) Get(ctx context.Context, userID string) (*model.User, error) {
	if err := requireID("user id", userID); err != nil {
		return nil, err
	}
	var u model.User
	if err := s.c.getJSON(ctx, pathJoin(useradmV1, "users", userID), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Update changes the email or password of a user.
func (s *UserService) Update(ctx context.Context, userID string, update model.UserUpdate) error {
	if err := requireID("user id", userID); err != nil {
		return err
	}
	if update.Email == "" && update.Password == "" {
		return util.NewValidationError("user update has no fields")
	}
	_, err := s.c.sendJSON(ctx, http.MethodPut, pathJoin(useradmV1, "users", userID), http.StatusNoContent, update, nil)
	return err
}

// Delete removes a user.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	if err := requireID("user id", userID); err != nil {
		return err
	}
	_, err := s.c.sendJSON(ctx, http.MethodDelete, pathJoin(useradmV1, "users", userID), http.StatusNoContent, nil, nil)
	return err
}
