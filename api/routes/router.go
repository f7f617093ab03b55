package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pawmart/storefront/api/controllers"
	"github.com/pawmart/storefront/api/middleware"
	"github.com/pawmart/storefront/internal/catalog"
	"github.com/pawmart/storefront/internal/chat"
	"github.com/pawmart/storefront/internal/orders"
	"github.com/pawmart/storefront/internal/reviews"
	"github.com/pawmart/storefront/internal/wishlist"
	"github.com/pawmart/storefront/pkg/config"
	"github.com/pawmart/storefront/pkg/logger"
)

// Deps bundles everything the HTTP facade serves. Chat may be nil when no
// chat endpoint is configured.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Cart     controllers.CartStore
	Merger   controllers.CartMerger
	Session  controllers.SessionManager
	Register controllers.Registrar
	Catalog  catalog.Service
	Wishlist wishlist.Service
	Orders   orders.Service
	Reviews  reviews.Service
	Chat     chat.Service
	Registry *prometheus.Registry
}

func NewRouter(deps Deps) http.Handler {
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(middleware.Recoverer(logg))
	r.Use(middleware.RequestID(logg))
	r.Use(middleware.Logging(logg))
	r.Use(middleware.CORS())

	r.Get("/healthz", controllers.HealthLive(deps.Config))
	r.Get("/readyz", controllers.HealthReady(deps.Config))
	if deps.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(deps.Cart, logg))
			r.Post("/items", controllers.CartAddItem(deps.Cart, deps.Catalog, logg))
			r.Put("/items/{productID}", controllers.CartSetQuantity(deps.Cart, logg))
			r.Delete("/items/{productID}", controllers.CartRemoveItem(deps.Cart, logg))
			r.Post("/clear", controllers.CartClear(deps.Cart, logg))
			r.Get("/notice", controllers.CartNotice(deps.Cart, logg))
			r.Delete("/notice", controllers.CartDismissNotice(deps.Cart, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductsList(deps.Catalog, logg))
			r.Get("/{productID}", controllers.ProductsGet(deps.Catalog, logg))
			r.Get("/{productID}/reviews", controllers.ReviewsList(deps.Reviews, logg))
			r.Post("/{productID}/reviews", controllers.ReviewsSubmit(deps.Reviews, logg))
		})

		r.Route("/session", func(r chi.Router) {
			r.Get("/", controllers.SessionGet(deps.Session, logg))
			r.Post("/login", controllers.SessionLogin(deps.Session, deps.Merger, logg))
			r.Post("/logout", controllers.SessionLogout(deps.Session, logg))
			r.Post("/register", controllers.SessionRegister(deps.Register, logg))
		})

		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", controllers.WishlistGet(deps.Wishlist, logg))
			r.Post("/items", controllers.WishlistAdd(deps.Wishlist, deps.Catalog, logg))
			r.Delete("/items/{productID}", controllers.WishlistRemove(deps.Wishlist, logg))
			r.Post("/items/{productID}/move-to-cart", controllers.WishlistMoveToCart(deps.Wishlist, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersHistory(deps.Orders, logg))
			r.Post("/", controllers.OrdersCheckout(deps.Orders, logg))
		})

		r.Route("/chat", func(r chi.Router) {
			r.Post("/conversation", controllers.ChatOpen(deps.Chat, logg))
			r.Delete("/conversation", controllers.ChatClose(deps.Chat, logg))
			r.Post("/messages", controllers.ChatSend(deps.Chat, logg))
			r.Get("/events", controllers.ChatEvents(deps.Chat, logg))
		})
	})

	return r
}
