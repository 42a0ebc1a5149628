package github

import (
	"strconv"

	"github.com/goliatone/go-identity"
)

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

func mapProfile(user *githubUser, email string) *identity.Profile {
	if user == nil {
		return nil
	}

	return &identity.Profile{
		Provider:   identity.AuthMethodGitHub,
		ProviderID: strconv.FormatInt(user.ID, 10),
		Email:      email,
		FullName:   user.Name,
		Username:   user.Login,
		AvatarURL:  user.AvatarURL,
	}
}
