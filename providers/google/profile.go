package google

import "github.com/goliatone/go-identity"

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	Locale        string `json:"locale"`
}

func mapProfile(info *googleUserInfo) *identity.Profile {
	if info == nil {
		return nil
	}

	return &identity.Profile{
		Provider:   identity.AuthMethodGoogle,
		ProviderID: info.Sub,
		Email:      info.Email,
		FullName:   info.Name,
		AvatarURL:  info.Picture,
	}
}
