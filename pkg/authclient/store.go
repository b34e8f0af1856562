// pkg/authclient/store.go

// Package authclient is a client-side companion to the auth API: one Store
// per identity domain, holding the view state a front end renders from
// (current user, loading flags, last error or message). All requests share a
// cookie jar so the HTTP-only session cookie rides along automatically.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"
)

// User is the client-visible identity shape returned by the API.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}

// State is a point-in-time snapshot of the store.
type State struct {
	User            *User
	IsAuthenticated bool
	IsLoading       bool
	IsCheckingAuth  bool
	Error           string
	Message         string
}

// APIError carries the server's envelope message for a failed request.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Store tracks auth state for one identity domain. Operations are safe for
// concurrent use; a generation counter discards stale completions so a slow
// request can never clobber the result of a later one.
type Store struct {
	client  *http.Client
	baseURL string // e.g. "http://localhost:5001/api/auth"

	mu    sync.Mutex
	gen   uint64
	state State
}

// NewStore builds a store for the API mounted at baseURL (including the
// domain's route prefix).
func NewStore(baseURL string) (*Store, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Store{
		client: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.state
	if s.state.User != nil {
		u := *s.state.User
		snap.User = &u
	}
	return snap
}

// Signup registers a new account. The caller stays unauthenticated; the next
// step is VerifyEmail with the emailed code.
func (s *Store) Signup(ctx context.Context, email, password, name string) error {
	gen := s.begin(false)

	env, err := s.post(ctx, "/signup", map[string]string{
		"email": email, "password": password, "name": name,
	})
	if err != nil {
		s.fail(gen, err)
		return err
	}

	s.finish(gen, func(st *State) {
		st.Message = env.Message
	})
	return nil
}

// VerifyEmail redeems the emailed code and, on success, flips the store to
// authenticated with the returned user.
func (s *Store) VerifyEmail(ctx context.Context, code string) error {
	gen := s.begin(false)

	env, err := s.post(ctx, "/verify-email", map[string]string{"code": code})
	if err != nil {
		s.fail(gen, err)
		return err
	}

	s.finish(gen, func(st *State) {
		st.User = env.Data.User
		st.IsAuthenticated = env.Data.User != nil
		st.Message = env.Message
	})
	return nil
}

// ResendVerification asks for a fresh signup code.
func (s *Store) ResendVerification(ctx context.Context, email string) error {
	gen := s.begin(false)

	env, err := s.post(ctx, "/resend-verification", map[string]string{"email": email})
	if err != nil {
		s.fail(gen, err)
		return err
	}

	s.finish(gen, func(st *State) {
		st.Message = env.Message
	})
	return nil
}

// Login authenticates with email and password.
func (s *Store) Login(ctx context.Context, email, password string) error {
	gen := s.begin(false)

	env, err := s.post(ctx, "/login", map[string]string{
		"email": email, "password": password,
	})
	if err != nil {
		s.fail(gen, err)
		return err
	}

	s.finish(gen, func(st *State) {
		st.User = env.Data.User
		st.IsAuthenticated = env.Data.User != nil
		st.Message = env.Message
	})
	return nil
}

// Logout ends the session and forgets the user locally.
func (s *Store) Logout(ctx context.Context) error {
	gen := s.begin(false)

	env, err := s.post(ctx, "/logout", nil)
	if err != nil {
		s.fail(gen, err)
		return err
	}

	s.finish(gen, func(st *State) {
		st.User = nil
		st.IsAuthenticated = false
		st.Message = env.Message
	})
	return nil
}

// ForgotPassword requests a reset link. The server answers the same way
// whether or not the email is registered.
func (s *Store) ForgotPassword(ctx context.Context, email string) error {
	gen := s.begin(false)

	env, err := s.post(ctx, "/forgot-password", map[string]string{"email": email})
	if err != nil {
		s.fail(gen, err)
		return err
	}

	s.finish(gen, func(st *State) {
		st.Message = env.Message
	})
	return nil
}

// ResetPassword completes the reset flow with the token from the emailed
// link. The store stays unauthenticated; the caller must log in.
func (s *Store) ResetPassword(ctx context.Context, token, password string) error {
	gen := s.begin(false)

	env, err := s.post(ctx, "/reset-password/"+token, map[string]string{"password": password})
	if err != nil {
		s.fail(gen, err)
		return err
	}

	s.finish(gen, func(st *State) {
		st.Message = env.Message
	})
	return nil
}

// ChangePassword replaces the password for the logged-in account.
func (s *Store) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	gen := s.begin(false)

	env, err := s.post(ctx, "/change-password", map[string]string{
		"currentPassword": currentPassword, "newPassword": newPassword,
	})
	if err != nil {
		s.fail(gen, err)
		return err
	}

	s.finish(gen, func(st *State) {
		st.Message = env.Message
	})
	return nil
}

// UpdateProfile updates name and email for the logged-in account.
func (s *Store) UpdateProfile(ctx context.Context, name, email string) error {
	gen := s.begin(false)

	env, err := s.post(ctx, "/update-profile", map[string]string{
		"name": name, "email": email,
	})
	if err != nil {
		s.fail(gen, err)
		return err
	}

	s.finish(gen, func(st *State) {
		if env.Data.User != nil {
			st.User = env.Data.User
		}
		st.Message = env.Message
	})
	return nil
}

// CheckAuth resolves the session cookie to a user. Unlike every other
// operation it never records an error: any failure simply lands the store in
// the anonymous state, mirroring app bootstrap where "not logged in" is a
// normal outcome.
func (s *Store) CheckAuth(ctx context.Context) error {
	gen := s.beginChecking()

	env, err := s.get(ctx, "/check-auth")
	if err != nil || env.Data.User == nil {
		s.finish(gen, func(st *State) {
			st.User = nil
			st.IsAuthenticated = false
		})
		return nil
	}

	s.finish(gen, func(st *State) {
		st.User = env.Data.User
		st.IsAuthenticated = true
	})
	return nil
}

// --- internals ---

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		User *User `json:"user"`
	} `json:"data"`
	Error string `json:"error"`
}

func (s *Store) begin(checking bool) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.state.IsLoading = true
	s.state.IsCheckingAuth = checking
	s.state.Error = ""
	s.state.Message = ""
	return s.gen
}

func (s *Store) beginChecking() uint64 {
	return s.begin(true)
}

// finish applies an update unless a newer operation has started since gen.
func (s *Store) finish(gen uint64, apply func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return
	}
	s.state.IsLoading = false
	s.state.IsCheckingAuth = false
	apply(&s.state)
}

func (s *Store) fail(gen uint64, err error) {
	message := err.Error()
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		message = apiErr.Message
	}

	s.finish(gen, func(st *State) {
		st.Error = message
	})
}

func (s *Store) post(ctx context.Context, path string, body any) (*envelope, error) {
	return s.do(ctx, http.MethodPost, path, body)
}

func (s *Store) get(ctx context.Context, path string) (*envelope, error) {
	return s.do(ctx, http.MethodGet, path, nil)
}

func (s *Store) do(ctx context.Context, method, path string, body any) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode >= 400 || !env.Success {
		message := env.Message
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{Status: resp.StatusCode, Message: message}
	}

	return &env, nil
}
