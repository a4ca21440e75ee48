package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	gogithub "github.com/google/go-github/v66/github"
	"github.com/shaun/figcode/server/internal/auth"
	"github.com/shaun/figcode/server/internal/github"
	"github.com/shaun/figcode/server/internal/oauth"
	"github.com/shaun/figcode/server/internal/push"
	logger "github.com/sirupsen/logrus"
)

const defaultRepoDescription = "Generated by Figma to Code"

// maxBodyBytes fits the largest push Validate accepts even when every content
// byte is JSON-escaped to \u00XX (6 bytes), plus room for paths and the envelope.
var maxBodyBytes int64 = push.MaxFiles*push.MaxFileBytes*6 + 1<<20

// GitHub is everything the handler needs from one authenticated GitHub session.
// Implemented by *github.Session; inject a fake in tests.
type GitHub interface {
	push.GitAPI
	GetUser(ctx context.Context) (*gogithub.User, error)
	ListRepos(ctx context.Context) ([]*gogithub.Repository, error)
	CreateRepo(ctx context.Context, name, description string, private bool) (*gogithub.Repository, error)
}

// Connector opens a GitHub session for a caller-supplied token.
type Connector func(ctx context.Context, token string) GitHub

// OAuth is implemented by *oauth.Exchanger.
type OAuth interface {
	Configured() bool
	AuthURL(redirectURI string) (url, state string, err error)
	Exchange(ctx context.Context, code, redirectURI string) (string, error)
}

type Handler struct {
	connect Connector
	oauth   OAuth
}

func NewHandler(oa OAuth) *Handler {
	client := github.NewClient()
	return NewHandlerWithGitHub(func(ctx context.Context, token string) GitHub {
		return client.Session(ctx, token)
	}, oa)
}

// NewHandlerWithGitHub builds a handler with a custom GitHub connector (e.g. for tests).
func NewHandlerWithGitHub(connect Connector, oa OAuth) *Handler {
	return &Handler{connect: connect, oauth: oa}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, ErrorResponse{Error: msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "Request too large")
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// upstreamError keeps GitHub's 401 so the client can ask for a new token;
// everything else is a 500.
func upstreamError(w http.ResponseWriter, action string, err error) {
	status := http.StatusInternalServerError
	if github.StatusCode(err) == http.StatusUnauthorized {
		status = http.StatusUnauthorized
	}
	logger.WithField("action", action).Errorf("[figcode] GitHub request failed: %v", err)
	respondError(w, status, err.Error())
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Dispatch routes on the action query parameter, the way the browser client calls it.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	switch r.Method {
	case http.MethodGet:
		if action == "oauth-url" {
			h.OAuthURL(w, r)
			return
		}
		h.read(w, r, action)
		return
	case http.MethodPost:
		switch action {
		case "exchange-code":
			h.ExchangeCode(w, r)
			return
		case "create-repo":
			h.CreateRepo(w, r)
			return
		case "push":
			h.Push(w, r)
			return
		}
	}
	respondError(w, http.StatusBadRequest, "Invalid action")
}

func (h *Handler) read(w http.ResponseWriter, r *http.Request, action string) {
	token := auth.TokenFromRequest(r)
	if token == "" {
		respondError(w, http.StatusUnauthorized, "GitHub token required")
		return
	}
	gh := h.connect(r.Context(), token)
	switch action {
	case "user":
		user, err := gh.GetUser(r.Context())
		if err != nil {
			upstreamError(w, action, err)
			return
		}
		respondJSON(w, http.StatusOK, user)
	case "repos":
		repos, err := gh.ListRepos(r.Context())
		if err != nil {
			upstreamError(w, action, err)
			return
		}
		respondJSON(w, http.StatusOK, repos)
	default:
		respondError(w, http.StatusBadRequest, "Invalid action")
	}
}

func (h *Handler) OAuthURL(w http.ResponseWriter, r *http.Request) {
	if !h.oauth.Configured() {
		respondError(w, http.StatusInternalServerError, oauth.ErrNotConfigured.Error())
		return
	}
	redirectURI, ok := oauth.NormalizeRedirectURI(r.URL.Query().Get("redirect_uri"))
	if !ok {
		respondError(w, http.StatusBadRequest, "A valid redirect_uri is required.")
		return
	}
	u, state, err := h.oauth.AuthURL(redirectURI)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, OAuthURLResponse{URL: u, State: state})
}

func (h *Handler) ExchangeCode(w http.ResponseWriter, r *http.Request) {
	if !h.oauth.Configured() {
		respondError(w, http.StatusInternalServerError, oauth.ErrNotConfigured.Error())
		return
	}
	var req ExchangeCodeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Code == "" {
		respondError(w, http.StatusBadRequest, "OAuth code is required.")
		return
	}
	var redirectURI string
	if req.RedirectURI != "" {
		var ok bool
		if redirectURI, ok = oauth.NormalizeRedirectURI(req.RedirectURI); !ok {
			respondError(w, http.StatusBadRequest, "A valid redirectUri is required.")
			return
		}
	}
	token, err := h.oauth.Exchange(r.Context(), req.Code, redirectURI)
	if err != nil {
		logger.Errorf("[figcode] OAuth exchange failed: %v", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	user, err := h.connect(r.Context(), token).GetUser(r.Context())
	if err != nil {
		upstreamError(w, "exchange-code", err)
		return
	}
	respondJSON(w, http.StatusOK, ExchangeCodeResponse{AccessToken: token, User: user})
}

func (h *Handler) CreateRepo(w http.ResponseWriter, r *http.Request) {
	var req CreateRepoRequest
	if !decode(w, r, &req) {
		return
	}
	if req.GitHubToken == "" {
		respondError(w, http.StatusBadRequest, "GitHub token required")
		return
	}
	if !push.ValidRepo(req.Repo) {
		respondError(w, http.StatusBadRequest, "Invalid repository name.")
		return
	}
	description := req.RepoDescription
	if description == "" {
		description = defaultRepoDescription
	}
	private := true
	if req.IsPrivate != nil {
		private = *req.IsPrivate
	}
	repo, err := h.connect(r.Context(), req.GitHubToken).CreateRepo(r.Context(), req.Repo, description, private)
	if err != nil {
		upstreamError(w, "create-repo", err)
		return
	}
	logger.Infof("[figcode] created repository %s", repo.GetFullName())
	respondJSON(w, http.StatusOK, repo)
}

func (h *Handler) Push(w http.ResponseWriter, r *http.Request) {
	var req PushRequest
	if !decode(w, r, &req) {
		return
	}
	if req.GitHubToken == "" {
		respondError(w, http.StatusBadRequest, "GitHub token required")
		return
	}
	if req.Owner == "" || req.Repo == "" || len(req.Files) == 0 {
		respondError(w, http.StatusBadRequest, "owner, repo, and files are required")
		return
	}
	preq := push.Request{
		Owner:   req.Owner,
		Repo:    req.Repo,
		Branch:  req.Branch,
		Message: req.CommitMessage,
		Files:   req.Files,
	}
	// Checked here as well as in the pipeline so a bad request never opens a session.
	if _, err := preq.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	logger.Infof("[figcode] Pushing %d files to %s/%s", len(req.Files), req.Owner, req.Repo)
	res, err := push.NewPipeline(h.connect(r.Context(), req.GitHubToken)).Push(r.Context(), preq)
	if err != nil {
		var verr *push.ValidationError
		if errors.As(err, &verr) {
			respondError(w, http.StatusBadRequest, verr.Message)
			return
		}
		logger.Errorf("[figcode] GitHub push failed: %v", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}
