package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aravindkp/shopsphere-backend/api/controllers"
	"github.com/aravindkp/shopsphere-backend/api/middleware"
	"github.com/aravindkp/shopsphere-backend/internal/address"
	"github.com/aravindkp/shopsphere-backend/internal/cart"
	checkoutsvc "github.com/aravindkp/shopsphere-backend/internal/checkout"
	"github.com/aravindkp/shopsphere-backend/internal/orders"
	"github.com/aravindkp/shopsphere-backend/internal/wallet"
	"github.com/aravindkp/shopsphere-backend/pkg/config"
	"github.com/aravindkp/shopsphere-backend/pkg/db"
	"github.com/aravindkp/shopsphere-backend/pkg/logger"
	"github.com/aravindkp/shopsphere-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	cartService cart.Service,
	addressService address.Service,
	checkoutService checkoutsvc.Service,
	ordersRepo orders.Repository,
	ordersService orders.Service,
	walletService wallet.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(cartService, logg))
			r.Post("/items", controllers.CartAddItem(cartService, logg))
			r.Delete("/items/{variantId}", controllers.CartRemoveItem(cartService, logg))
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", controllers.AddressList(addressService, logg))
			r.Post("/", controllers.AddressCreate(addressService, logg))
			r.Delete("/{addressId}", controllers.AddressDelete(addressService, logg))
			r.Post("/{addressId}/default", controllers.AddressSetDefault(addressService, logg))
		})

		r.Post("/checkout", controllers.Checkout(checkoutService, logg))
		r.Post("/checkout/verify", controllers.VerifyPayment(checkoutService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(ordersService, logg))
			r.Get("/{orderId}", controllers.OrderDetail(ordersService, logg))
			r.Post("/{orderId}/retry", controllers.RetryPayment(checkoutService, logg))
			r.Post("/{orderId}/items/{itemId}/cancel", controllers.CancelItem(ordersService, logg))
			r.Post("/{orderId}/items/{itemId}/return", controllers.RequestReturn(ordersService, logg))
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", controllers.WalletBalance(walletService, logg))
			r.Get("/transactions", controllers.WalletHistory(walletService, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/v1/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrderList(ordersService, logg))
			r.Get("/{orderId}", controllers.AdminOrderDetail(ordersRepo, logg))
			r.Post("/{orderId}/advance", controllers.AdminAdvanceOrder(ordersService, logg))
			r.Post("/{orderId}/cancel", controllers.AdminCancelOrder(ordersService, logg))
			r.Post("/{orderId}/items/{itemId}/return/approve", controllers.AdminApproveReturn(ordersService, logg))
			r.Post("/{orderId}/items/{itemId}/return/reject", controllers.AdminRejectReturn(ordersService, logg))
		})
	})

	return r
}
