package handler

import "net/http"

// Middleware wraps a handler
type Middleware func(http.Handler) http.Handler

// Router mounts every endpoint on a ServeMux. Nil middleware is skipped.
type Router struct {
	Prefix string

	Health   *HealthHandler
	Accounts *AccountHandler
	Rides    *RideHandler
	Requests *RequestHandler
	Price    *PriceHandler
	Feed     *RideFeedHandler

	// Auth rejects requests without a valid bearer token
	Auth Middleware
	// Limit rate limits mutating endpoints
	Limit Middleware
	// JSON rejects non-JSON bodies
	JSON Middleware
}

// Register adds the routes to mux
func (rt Router) Register(mux *http.ServeMux) {
	p := rt.Prefix
	public := func(h http.HandlerFunc) http.Handler { return h }
	write := func(h http.HandlerFunc) http.Handler { return chain(h, rt.Limit, rt.JSON) }
	authed := func(h http.HandlerFunc) http.Handler { return chain(h, rt.Auth) }
	authedWrite := func(h http.HandlerFunc) http.Handler { return chain(h, rt.Auth, rt.Limit, rt.JSON) }

	mux.Handle("GET "+p+"/health", public(rt.Health.Health))
	mux.Handle("GET /healthz", public(rt.Health.Health))
	mux.Handle("GET /readyz", public(rt.Health.Ready))

	mux.Handle("POST "+p+"/signup", write(rt.Accounts.Signup))
	mux.Handle("POST "+p+"/login", write(rt.Accounts.Login))
	mux.Handle("GET "+p+"/user/{id}", public(rt.Accounts.GetUser))

	mux.Handle("POST "+p+"/rides", authedWrite(rt.Rides.Create))
	mux.Handle("GET "+p+"/rides", public(rt.Rides.List))
	mux.Handle("GET "+p+"/rides/{id}", public(rt.Rides.Get))
	mux.Handle("GET "+p+"/drivers/{id}/rides", public(rt.Rides.ListForDriver))
	mux.Handle("POST "+p+"/rides/{id}/complete", authedWrite(rt.Rides.Complete))
	mux.Handle("POST "+p+"/rides/{id}/cancel", authedWrite(rt.Rides.Cancel))

	mux.Handle("POST "+p+"/rides/{id}/requests", authedWrite(rt.Requests.Create))
	mux.Handle("GET "+p+"/rides/{id}/requests", authed(rt.Requests.List))
	mux.Handle("POST "+p+"/requests/{id}/accept", authedWrite(rt.Requests.Accept))
	mux.Handle("POST "+p+"/requests/{id}/reject", authedWrite(rt.Requests.Reject))

	mux.Handle("GET "+p+"/price", public(rt.Price.Quote))

	if rt.Feed != nil {
		mux.Handle("GET /ws/rides", rt.Feed)
	}
}

// chain applies middleware so the first one listed runs first
func chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}
