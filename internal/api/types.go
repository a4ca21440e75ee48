package api

import (
	gogithub "github.com/google/go-github/v66/github"
	"github.com/shaun/figcode/server/internal/push"
)

type PushRequest struct {
	GitHubToken   string      `json:"githubToken"`
	Owner         string      `json:"owner"`
	Repo          string      `json:"repo"`
	Branch        string      `json:"branch"`
	CommitMessage string      `json:"commitMessage"`
	Files         []push.File `json:"files"`
}

type CreateRepoRequest struct {
	GitHubToken     string `json:"githubToken"`
	Repo            string `json:"repo"`
	RepoDescription string `json:"repoDescription"`
	IsPrivate       *bool  `json:"isPrivate"`
}

type ExchangeCodeRequest struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirectUri"`
}

type ExchangeCodeResponse struct {
	AccessToken string         `json:"accessToken"`
	User        *gogithub.User `json:"user"`
}

type OAuthURLResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
