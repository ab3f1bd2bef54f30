package domain

// User is an identity record. PasswordHash is an opaque encoded hash and must
// never appear in a response body.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
}

// Profile is the public projection of a user returned by the login endpoint.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Profile returns the public view of the user.
func (u User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Email: u.Email}
}
