// Package state holds the in-memory view of the session used by the UI
// layer. It is seeded from the credential store and driven by actions.
package state

import "github.com/dtroode/gophdate-session/internal/model"

// ActionType names a state transition.
type ActionType string

const (
	LoginStart    ActionType = "LOGIN_START"
	LoginSuccess  ActionType = "LOGIN_SUCCESS"
	LoginFailure  ActionType = "LOGIN_FAILURE"
	Logout        ActionType = "LOGOUT"
	UpdateProfile ActionType = "UPDATE_PROFILE"
	ClearError    ActionType = "CLEAR_ERROR"
	InitComplete  ActionType = "INIT_COMPLETE"
)

// Action is a transition request. Only the fields relevant to Type are read.
type Action struct {
	Type        ActionType
	User        *model.UserProfile
	AccessToken string
	Err         error
}

// State is the UI session snapshot.
type State struct {
	User            *model.UserProfile
	AccessToken     string
	IsAuthenticated bool
	IsLoading       bool
	Initialized     bool
	Error           string
}

// Initial is the state before the credential store has been read.
func Initial() State {
	return State{IsLoading: true}
}

// Reduce returns the state that results from applying a to s. Unknown
// actions leave the state unchanged.
func Reduce(s State, a Action) State {
	switch a.Type {
	case LoginStart:
		s.IsLoading = true
		s.Error = ""
	case LoginSuccess:
		s.User = cloneUser(a.User)
		s.AccessToken = a.AccessToken
		s.IsAuthenticated = a.AccessToken != ""
		s.IsLoading = false
		s.Error = ""
	case LoginFailure:
		s.User = nil
		s.AccessToken = ""
		s.IsAuthenticated = false
		s.IsLoading = false
		s.Error = errorMessage(a.Err)
	case Logout:
		s = State{Initialized: s.Initialized}
	case UpdateProfile:
		if a.User != nil {
			s.User = cloneUser(a.User)
		}
	case ClearError:
		s.Error = ""
	case InitComplete:
		s.User = cloneUser(a.User)
		s.AccessToken = a.AccessToken
		s.IsAuthenticated = a.AccessToken != ""
		s.IsLoading = false
		s.Initialized = true
	}
	return s
}

func cloneUser(u *model.UserProfile) *model.UserProfile {
	if u == nil {
		return nil
	}
	c := *u
	c.Photos = append([]string(nil), u.Photos...)
	c.Preferences.Genders = append([]string(nil), u.Preferences.Genders...)
	return &c
}

func errorMessage(err error) string {
	if err == nil {
		return "login failed"
	}
	return err.Error()
}
