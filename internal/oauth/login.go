package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// ErrRedirectNotLoopback is returned when the redirect URI cannot be
// served by a local callback listener.
var ErrRedirectNotLoopback = errors.New("redirect URI must be an http loopback address with a port")

// Flow runs the authorization-code login with PKCE against a local
// callback listener on the configured redirect URI.
type Flow struct {
	Config *oauth2.Config
	Store  *FileStore
	Logger zerolog.Logger

	// Prompt shows the authorization URL to the user.
	Prompt func(authURL string)
}

type callback struct {
	code string
	err  error
}

// Run waits for the browser to return to the redirect URI, exchanges
// the code and saves the token.
func (f *Flow) Run(ctx context.Context) (*oauth2.Token, error) {
	redirect, err := url.Parse(f.Config.RedirectURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI: %w", err)
	}
	if err := checkLoopback(redirect); err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", redirect.Host, err)
	}

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	results := make(chan callback, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath(redirect), func(w http.ResponseWriter, r *http.Request) {
		res := readCallback(r, state)
		if res.err != nil {
			http.Error(w, "Login failed: "+res.err.Error(), http.StatusBadRequest)
		} else {
			_, _ = io.WriteString(w, "Login complete. You can close this window and return to the terminal.\n")
		}
		select {
		case results <- res:
		default:
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := f.Config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	f.Logger.Debug().Str("redirect", redirect.String()).Msg("waiting for authorization callback")
	if f.Prompt != nil {
		f.Prompt(authURL)
	}

	var res callback
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("login aborted: %w", ctx.Err())
	case res = <-results:
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := f.Config.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if f.Store != nil {
		if err := f.Store.Save(tok); err != nil {
			return nil, err
		}
	}
	return tok, nil
}

func readCallback(r *http.Request, state string) callback {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		return callback{err: fmt.Errorf("authorization denied: %s", e)}
	}
	if q.Get("state") != state {
		return callback{err: errors.New("state mismatch in authorization callback")}
	}
	code := q.Get("code")
	if code == "" {
		return callback{err: errors.New("authorization callback carried no code")}
	}
	return callback{code: code}
}

func checkLoopback(u *url.URL) error {
	if u.Scheme != "http" || u.Port() == "" {
		return fmt.Errorf("%w: %s", ErrRedirectNotLoopback, u)
	}
	host := u.Hostname()
	if host == "localhost" {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrRedirectNotLoopback, u)
}

func callbackPath(u *url.URL) string {
	if u.Path == "" {
		return "/"
	}
	return u.Path
}
