package dto

import (
	"time"

	domainuser "pingme/internal/domain/user"
)

// UserRef is the minimal projection used wherever a sender or participant
// is exposed.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Mobile   string `json:"mobile"`
}

type UserProfile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Mobile    string    `json:"mobile"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AuthResponse struct {
	User  UserProfile `json:"user"`
	Token string      `json:"token"`
}

type UserList struct {
	Users []UserRef `json:"users"`
}

func MapUserRef(user *domainuser.User) UserRef {
	if user == nil {
		return UserRef{}
	}
	return UserRef{
		ID:       string(user.ID),
		Username: user.Username,
		Mobile:   user.Mobile,
	}
}

func MapUserProfile(user *domainuser.User) UserProfile {
	if user == nil {
		return UserProfile{}
	}
	return UserProfile{
		ID:        string(user.ID),
		Username:  user.Username,
		Mobile:    user.Mobile,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func NewAuthResponse(user *domainuser.User, token string) AuthResponse {
	return AuthResponse{
		User:  MapUserProfile(user),
		Token: token,
	}
}
