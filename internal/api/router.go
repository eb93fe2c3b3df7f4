package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/remarket/internal/auth"
	"github.com/erazemk/remarket/internal/catalog"
	"github.com/erazemk/remarket/internal/extract"
	"github.com/erazemk/remarket/internal/imaging"
	"github.com/erazemk/remarket/internal/importer"
	"github.com/erazemk/remarket/internal/upload"
)

// Deps are the services the API is built on.
type Deps struct {
	DB        *sql.DB
	JWTSecret string
	Admins    auth.AllowList
	Catalog   *catalog.Catalog
	Uploads   *upload.Orchestrator
	Imports   *importer.Registry
	Extractor extract.Extractor
	Imaging   imaging.Options
	Contact   string
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: d.DB, JWTSecret: d.JWTSecret, Admins: d.Admins}
	accountsHandler := &AccountsHandler{DB: d.DB}
	itemsHandler := &ItemsHandler{Catalog: d.Catalog, Uploads: d.Uploads, Admins: d.Admins, ContactNumber: d.Contact}
	importsHandler := &ImportsHandler{Imports: d.Imports, Extractor: d.Extractor, Imaging: d.Imaging}

	authMW := AuthMiddleware(d.JWTSecret, d.DB)
	optionalAuth := OptionalAuth(d.JWTSecret, d.DB)
	requireAdmin := RequireAdmin(d.DB, d.Admins)
	admin := func(h http.HandlerFunc) http.Handler {
		return authMW(requireAdmin(h))
	}

	// Public.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.Handle("GET /api/items", optionalAuth(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("GET /api/items/{id}", optionalAuth(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("GET /api/items/{id}/contact", optionalAuth(http.HandlerFunc(itemsHandler.Contact)))
	mux.HandleFunc("GET /api/categories", itemsHandler.Categories)

	// Any signed-in account.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Catalog management (allow-listed admins).
	mux.Handle("POST /api/items", admin(itemsHandler.Create))
	mux.Handle("PUT /api/items/{id}", admin(itemsHandler.Update))
	mux.Handle("DELETE /api/items/{id}", admin(itemsHandler.Delete))
	mux.Handle("DELETE /api/items", admin(itemsHandler.Clear))
	mux.Handle("POST /api/items/{id}/sale", admin(itemsHandler.Sell))
	mux.Handle("PUT /api/items/{id}/status", admin(itemsHandler.SetStatus))
	mux.Handle("GET /api/items/{id}/sales", admin(itemsHandler.Sales))
	mux.Handle("GET /api/sales", admin(itemsHandler.AllSales))
	mux.Handle("GET /api/stats", admin(itemsHandler.Stats))

	// AI assistance and bulk import.
	mux.Handle("POST /api/ai/analyze", admin(importsHandler.Analyze))
	mux.Handle("POST /api/imports", admin(importsHandler.Start))
	mux.Handle("GET /api/imports/{id}", admin(importsHandler.Get))
	mux.Handle("PUT /api/imports/{id}", admin(importsHandler.Revise))
	mux.Handle("POST /api/imports/{id}/retry", admin(importsHandler.Retry))
	mux.Handle("POST /api/imports/{id}/confirm", admin(importsHandler.Confirm))
	mux.Handle("DELETE /api/imports/{id}", admin(importsHandler.Cancel))

	// Accounts.
	mux.Handle("GET /api/accounts", admin(accountsHandler.List))
	mux.Handle("POST /api/accounts", admin(accountsHandler.Create))
	mux.Handle("PUT /api/accounts/{id}/password", admin(accountsHandler.ResetPassword))
	mux.Handle("DELETE /api/accounts/{id}", admin(accountsHandler.Delete))

	return mux
}
