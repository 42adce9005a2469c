package handlers

import (
	"errors"
	"regexp"
	"strings"
)

var (
	emailPattern           = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	passwordUpperPattern   = regexp.MustCompile(`[A-Z]`)
	passwordLowerPattern   = regexp.MustCompile(`[a-z]`)
	passwordDigitPattern   = regexp.MustCompile(`[0-9]`)
	passwordSpecialPattern = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

func validateRegister(req RegisterRequest) error {
	if req.Email == "" {
		return errors.New("Email is required")
	}
	if !emailPattern.MatchString(req.Email) {
		return errors.New("Invalid email address")
	}
	if req.Username == "" {
		return errors.New("Username is required")
	}
	if len(req.Username) < 3 || len(req.Username) > 20 {
		return errors.New("Username must be between 3 and 20 characters long")
	}
	if req.Name.First == "" {
		return errors.New("First name is required")
	}
	if len(req.Name.First) < 2 || len(req.Name.First) > 50 {
		return errors.New("First name must be between 2 and 50 characters long")
	}
	if req.Name.Last != "" && (len(req.Name.Last) < 2 || len(req.Name.Last) > 50) {
		return errors.New("Last name must be between 2 and 50 characters long")
	}
	if err := validatePassword(req.Password); err != nil {
		return err
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		return errors.New("Passwords do not match")
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return errors.New("Password is required")
	}
	if len(password) < 8 || len(password) > 50 {
		return errors.New("Password must be between 8 and 50 characters long")
	}
	if !passwordUpperPattern.MatchString(password) ||
		!passwordLowerPattern.MatchString(password) ||
		!passwordDigitPattern.MatchString(password) ||
		!passwordSpecialPattern.MatchString(password) {
		return errors.New("Password must contain at least one uppercase letter, one lowercase letter, one number, and one special character")
	}
	return nil
}

// validateRecognition enforces the exclusive-or identifier: exactly one of
// email or username.
func validateRecognition(rec Recognition) error {
	email := strings.TrimSpace(rec.Email)
	username := strings.TrimSpace(rec.Username)
	if (email == "") == (username == "") {
		return errors.New("Provide either an email or a username")
	}
	if email != "" && !emailPattern.MatchString(email) {
		return errors.New("Invalid email address")
	}
	if username != "" && (len(username) < 3 || len(username) > 30) {
		return errors.New("Username must be between 3 and 30 characters long")
	}
	return nil
}

func validateLogin(req LoginRequest) error {
	if err := validateRecognition(req.Recognition); err != nil {
		return err
	}
	if len(req.Password) < 8 {
		return errors.New("Password must be at least 8 characters long")
	}
	return nil
}
