package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/idriskr/portfolio-admin/internal/auth"
	"github.com/idriskr/portfolio-admin/internal/config"
	"github.com/idriskr/portfolio-admin/internal/github"
	"github.com/rs/zerolog"
)

// NewRouter serves UpdateFile on every path. Preflights are answered before
// method checks, and method checks before the admin key is looked at.
func NewRouter(h *Handler, cfg *config.Config, log zerolog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(requestID(log))
	r.Use(requestLogger)
	r.Use(cors(cfg.AllowOrigin))
	r.MethodNotAllowed(h.MethodNotAllowed)
	r.NotFound(h.MethodNotAllowed)
	r.Group(func(r chi.Router) {
		r.Use(auth.AdminKey(cfg.AdminSecret, http.HandlerFunc(h.Unauthorized)))
		r.Post("/", h.UpdateFile)
		r.Post("/*", h.UpdateFile)
	})
	return r
}

// New wires the GitHub client, handler and router from cfg.
func New(cfg *config.Config, log zerolog.Logger) (http.Handler, error) {
	if cfg.AdminSecret == "" {
		log.Warn().Msg("ADMIN_SECRET not set, every request will be rejected")
	}
	if cfg.GitHubToken == "" {
		log.Warn().Msg("GITHUB_TOKEN not set, writes will be rejected by GitHub")
	}
	gh, err := github.NewClient(github.Options{
		Token:   cfg.GitHubToken,
		Owner:   cfg.Owner,
		Repo:    cfg.Repo,
		BaseURL: cfg.APIURL,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("owner", cfg.Owner).Str("repo", cfg.Repo).Str("branch", cfg.Branch).Msg("update-file handler ready")
	return NewRouter(NewHandler(gh, cfg.Branch), cfg, log), nil
}
