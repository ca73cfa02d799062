package api

//go:generate go run github.com/discord-gophers/goapi-gen --package=api --out=api.gen.go openapi.yaml

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-sso/pkg/sessiontoken"
)

// Routes returns the router to mount under the API prefix:
//
//	GET|POST /{realm}/start
//	GET      /{realm}/callback
//	GET      /{realm}/flash
//	GET      /me      (login token required)
//	POST     /logout
//	GET      /openapi.json
func Routes(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Use(h.SessionMiddleware)
	r.Get("/openapi.json", serveSpec)

	middlewares := map[string]func(http.Handler) http.Handler{}
	if h.throttle != nil {
		middlewares["throttle"] = h.throttle.Middleware(RealmFromRequest)
	}
	if h.issuer != nil {
		ja := h.issuer.JWTAuth()
		middlewares["authenticated"] = chi.Chain(
			sessiontoken.Verifier(ja, h.issuer.CookieName()),
			jwtauth.Authenticator(ja),
			sessiontoken.LoginUserMiddleware,
		).Handler
	}

	return Handler(h,
		WithRouter(r),
		WithMiddlewares(middlewares),
		WithErrorHandler(paramError),
	)
}

func serveSpec(w http.ResponseWriter, r *http.Request) {
	swagger, err := GetSwagger()
	if err != nil {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, Error{Error: "internal_error", ErrorDescription: "Failed to load API description"})
		return
	}
	render.JSON(w, r, swagger)
}
