package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cratesim/cratesim/pkg/store"
)

// Server exposes the simulated registry over HTTP.
type Server struct {
	store *store.Store
	log   *slog.Logger
}

func NewServer(st *store.Store, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{store: st, log: log}
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// Routes builds the full router. Static path segments win over the
// {version} parameter, so /crates/foo/versions never reaches the
// version handler.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "PUT", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/summary", s.getSummary)

		r.Route("/crates", func(r chi.Router) {
			r.Get("/", s.listCrates)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.getCrate)
				r.Get("/versions", s.listVersions)
				r.Get("/downloads", s.getCrateDownloads)
				r.Get("/reverse_dependencies", s.listReverseDependencies)
				r.Put("/follow", s.followCrate)
				r.Delete("/follow", s.unfollowCrate)
				r.Get("/following", s.getFollowing)
				r.Get("/owner_user", s.listOwnerUsers)
				r.Get("/owner_team", s.listOwnerTeams)
				r.Put("/owners", s.addOwners)
				r.Delete("/owners", s.removeOwners)
				r.Route("/{version}", func(r chi.Router) {
					r.Get("/", s.getVersion)
					r.Patch("/", s.patchVersion)
					r.Get("/authors", s.getVersionAuthors)
					r.Get("/dependencies", s.listVersionDependencies)
					r.Get("/downloads", s.getVersionDownloads)
				})
			})
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.listCategories)
			r.Get("/{slug}", s.getCategory)
		})
		r.Get("/category_slugs", s.listCategorySlugs)

		r.Route("/keywords", func(r chi.Router) {
			r.Get("/", s.listKeywords)
			r.Get("/{keyword}", s.getKeyword)
		})

		r.Route("/me", func(r chi.Router) {
			r.Get("/", s.getMe)
			r.Get("/updates", s.getUpdates)
			r.Get("/tokens", s.listTokens)
			r.Post("/tokens", s.createToken)
			r.Delete("/tokens/{id}", s.revokeToken)
			r.Put("/crate_owner_invitations/{crate}", s.redeemInvitation)
		})

		r.Put("/confirm/{token}", s.confirmEmail)

		r.Route("/users", func(r chi.Router) {
			r.Get("/{login}", s.getUser)
			r.Put("/{id}", s.updateUser)
			r.Put("/{id}/resend", s.resendVerification)
			r.Post("/{id}/emails", s.addEmail)
			r.Delete("/{id}/emails/{emailID}", s.deleteEmail)
			r.Put("/{id}/emails/{emailID}/set_primary", s.setPrimaryEmail)
			r.Put("/{id}/emails/{emailID}/set_notification", s.setNotificationEmail)
		})

		r.Route("/trusted_publishing", func(r chi.Router) {
			r.Get("/github_configs", s.listGithubConfigs)
			r.Post("/github_configs", s.createGithubConfig)
			r.Delete("/github_configs/{id}", s.deleteGithubConfig)
			r.Get("/gitlab_configs", s.listGitlabConfigs)
			r.Post("/gitlab_configs", s.createGitlabConfig)
			r.Delete("/gitlab_configs/{id}", s.deleteGitlabConfig)
		})
	})

	r.Route("/api/private", func(r chi.Router) {
		r.Get("/crate_owner_invitations", s.listInvitations)
		r.Delete("/session", s.deleteSession)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w)
	})

	return r
}
