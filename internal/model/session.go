package model

// Session is the authenticated state persisted by the credential store.
// AccessToken and RefreshToken are either both set or both empty.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *UserProfile
}

// Valid reports whether both tokens are present.
func (s Session) Valid() bool {
	return s.AccessToken != "" && s.RefreshToken != ""
}

// Empty reports whether the session carries no credentials at all.
func (s Session) Empty() bool {
	return s.AccessToken == "" && s.RefreshToken == "" && s.User == nil
}
