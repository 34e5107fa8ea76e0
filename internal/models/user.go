package models

type User struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Email     string `json:"email" yaml:"email"`
	AvatarURL string `json:"avatarUrl,omitempty" yaml:"avatarUrl,omitempty"`
	Username  string `json:"username" yaml:"username"`
}

// UserFromMetadata builds a profile from Supabase user metadata, which OAuth
// providers and the sign-up form fill with different keys.
func UserFromMetadata(id, email string, meta map[string]interface{}) User {
	return User{
		ID:        id,
		Email:     email,
		Name:      firstString(meta, "name", "full_name"),
		Username:  firstString(meta, "user_name", "preferred_username"),
		AvatarURL: firstString(meta, "avatar_url", "picture"),
	}
}

func firstString(meta map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := meta[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
