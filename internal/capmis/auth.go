package capmis

import (
	"context"
	"net/http"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
}

type ProfileUpdate struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	if err := c.doJSON(ctx, "auth", http.MethodPost, "/api/auth/login", loginRequest{Email: email, Password: password}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	var s Session
	if err := c.doJSON(ctx, "auth", http.MethodPost, "/api/auth/register", in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, "auth", http.MethodPost, "/api/auth/logout", nil, nil)
}

func (c *Client) GetProfile(ctx context.Context) (*User, error) {
	var u User
	if err := c.doJSON(ctx, "auth", http.MethodGet, "/api/auth/profile", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) UpdateProfile(ctx context.Context, in ProfileUpdate) (*User, error) {
	var u User
	if err := c.doJSON(ctx, "auth", http.MethodPut, "/api/auth/profile", in, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	in := struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}{current, next}
	return c.doJSON(ctx, "auth", http.MethodPost, "/api/auth/change-password", in, nil)
}
