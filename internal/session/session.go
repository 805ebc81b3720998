package session

import (
	"errors"
	"strings"
)

// Role determines what a session may see and do.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
	RoleGuest Role = "GUEST"
)

var (
	// ErrInvalidRole indicates an unknown role value.
	ErrInvalidRole = errors.New("session: invalid role")
	// ErrMissingUnit indicates a non-admin session without a unit.
	ErrMissingUnit = errors.New("session: unit is required")
	// ErrMissingOfficers indicates a field session without both officers.
	ErrMissingOfficers = errors.New("session: both officers are required")
)

// ParseRole normalizes raw into a Role.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	case RoleGuest:
		return RoleGuest, nil
	default:
		return "", ErrInvalidRole
	}
}

// Session is chosen at login and lives for one login.
type Session struct {
	Role     Role   `json:"role"`
	Unit     string `json:"ulp,omitempty"`
	Officer1 string `json:"petugas1,omitempty"`
	Officer2 string `json:"petugas2,omitempty"`
}

// Normalize trims fields and drops the ones the role does not carry.
func (s Session) Normalize() (Session, error) {
	role, err := ParseRole(string(s.Role))
	if err != nil {
		return Session{}, err
	}
	normalized := Session{
		Role:     role,
		Unit:     strings.TrimSpace(s.Unit),
		Officer1: strings.TrimSpace(s.Officer1),
		Officer2: strings.TrimSpace(s.Officer2),
	}

	switch role {
	case RoleAdmin:
		normalized.Officer1 = ""
		normalized.Officer2 = ""
	case RoleGuest:
		normalized.Officer1 = ""
		normalized.Officer2 = ""
		if normalized.Unit == "" {
			return Session{}, ErrMissingUnit
		}
	case RoleUser:
		if normalized.Unit == "" {
			return Session{}, ErrMissingUnit
		}
		if normalized.Officer1 == "" || normalized.Officer2 == "" {
			return Session{}, ErrMissingOfficers
		}
	}
	return normalized, nil
}

// IsAdmin reports whether the session has administrative rights.
func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// CanSubmit reports whether the session may create or edit reports.
func (s Session) CanSubmit() bool {
	return s.Role == RoleAdmin || s.Role == RoleUser
}

// Scope is the unit every view of this session is bounded to; admins are unbounded.
func (s Session) Scope() string {
	if s.IsAdmin() {
		return ""
	}
	return s.Unit
}
