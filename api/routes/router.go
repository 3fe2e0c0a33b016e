package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vendorahq/vendora-backend/api/controllers"
	webhookcontrollers "github.com/vendorahq/vendora-backend/api/controllers/webhooks"
	"github.com/vendorahq/vendora-backend/api/middleware"
	"github.com/vendorahq/vendora-backend/internal/address"
	"github.com/vendorahq/vendora-backend/internal/cart"
	checkoutsvc "github.com/vendorahq/vendora-backend/internal/checkout"
	"github.com/vendorahq/vendora-backend/internal/notifications"
	"github.com/vendorahq/vendora-backend/internal/orders"
	"github.com/vendorahq/vendora-backend/internal/payments"
	product "github.com/vendorahq/vendora-backend/internal/products"
	"github.com/vendorahq/vendora-backend/internal/refunds"
	"github.com/vendorahq/vendora-backend/internal/wallet"
	"github.com/vendorahq/vendora-backend/pkg/auth/session"
	"github.com/vendorahq/vendora-backend/pkg/config"
	"github.com/vendorahq/vendora-backend/pkg/db"
	"github.com/vendorahq/vendora-backend/pkg/logger"
	"github.com/vendorahq/vendora-backend/pkg/metrics"
	"github.com/vendorahq/vendora-backend/pkg/razorpay"
	"github.com/vendorahq/vendora-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs. The webhook route works
// without auth middleware; everything under /api/v1 requires a bearer token.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         *redis.Client
	Sessions      session.AccessSessionChecker
	Razorpay      *razorpay.Client
	WebhookGuard  *payments.WebhookGuard
	Webhooks      *metrics.WebhookMetrics
	Products      *product.Repository
	Cart          cart.Service
	Checkout      checkoutsvc.Service
	Payments      payments.Service
	Orders        orders.Service
	Refunds       refunds.Service
	Wallet        wallet.Service
	Addresses     address.Service
	Notifications notifications.Service
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	// A typed nil here would dodge the middleware's nil check.
	var idemStore redis.IdempotencyStore
	var redisPing db.Pinger
	if d.Redis != nil {
		idemStore = d.Redis
		redisPing = d.Redis
	}
	var webhookVerifier webhookcontrollers.SignatureVerifier
	if d.Razorpay != nil {
		webhookVerifier = d.Razorpay
	}
	var webhookGuard webhookcontrollers.EventGuard
	if d.WebhookGuard != nil {
		webhookGuard = d.WebhookGuard
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.DB, redisPing))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Route("/v1/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(d.Products, logg))
			r.Get("/{productId}", controllers.GetProduct(d.Products, logg))
		})
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/razorpay", webhookcontrollers.RazorpayWebhook(d.Payments, webhookVerifier, webhookGuard, d.Webhooks, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(d.Cart, logg))
			r.Post("/items", controllers.CartAddItem(d.Cart, logg))
			r.Delete("/items/{productId}", controllers.CartRemoveItem(d.Cart, logg))
			r.Post("/coupon", controllers.CartApplyCoupon(d.Cart, logg))
			r.Delete("/coupon", controllers.CartRemoveCoupon(d.Cart, logg))
		})

		r.Post("/checkout", controllers.Checkout(d.Checkout, logg))

		r.Route("/payments", func(r chi.Router) {
			r.Post("/intent", controllers.PaymentIntent(d.Payments, logg))
			r.Post("/verify", controllers.PaymentVerify(d.Payments, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(d.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(d.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.CancelOrder(d.Orders, logg))
			r.Post("/{orderId}/refund", controllers.RequestRefund(d.Refunds, logg))
		})

		r.Get("/wallet", controllers.WalletBalance(d.Wallet, logg))

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", controllers.ListAddresses(d.Addresses, logg))
			r.Post("/", controllers.CreateAddress(d.Addresses, logg))
			r.Put("/{addressId}", controllers.UpdateAddress(d.Addresses, logg))
			r.Delete("/{addressId}", controllers.DeleteAddress(d.Addresses, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(d.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(d.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(d.Notifications, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Get("/ping", controllers.AdminPing())
		r.Route("/v1/orders", func(r chi.Router) {
			r.Post("/{orderId}/status", controllers.AdminUpdateOrderStatus(d.Orders, logg))
			r.Post("/{orderId}/delivered", controllers.AdminMarkDelivered(d.Orders, logg))
		})
	})

	return r
}
