package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	deliveryctrl "mealrun/internal/delivery/controller"
	orderctrl "mealrun/internal/order/controller"
)

func NewRouter(
	orders *orderctrl.OrderController,
	deliveries *deliveryctrl.DeliveryController,
	authenticate func(http.Handler) http.Handler,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/order", func(r chi.Router) {
		r.Use(authenticate)
		r.Post("/place-order", orders.PlaceOrder)
		r.Post("/verify-payment/{orderId}", orders.VerifyPayment)
		r.Get("/my-orders", orders.MyOrders)
		r.Get("/get-order-by-id/{orderId}", orders.GetOrderByID)
		r.Post("/update-status/{orderId}/{shopId}", orders.UpdateStatus)
		r.Post("/send-delivery-otp", orders.SendDeliveryOtp)
		r.Post("/verify-delivery-otp", orders.VerifyDeliveryOtp)
		r.Post("/cancel-order/{orderId}", orders.CancelOrder)
		r.Put("/special-instructions/{orderId}", orders.UpdateSpecialInstructions)
		r.Post("/hide-order/{orderId}", orders.HideOrder)
		r.Delete("/delete-order/{orderId}", orders.DeleteOrder)
	})

	r.Route("/api/delivery", func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/eligible/{shopOrderId}", deliveries.EligibleCouriers)
		r.Get("/get-assignments", deliveries.GetAssignments)
		r.Post("/accept/{shopOrderId}", deliveries.AcceptAssignment)
		r.Get("/current", deliveries.CurrentDelivery)
		r.Get("/deliveries", deliveries.Deliveries)
		r.Get("/counts", deliveries.Counts)
		r.Put("/availability", deliveries.SetAvailability)
		r.Post("/approve/{courierId}", deliveries.ApproveCourier)
	})

	return r
}

// requestLogger is chi's middleware.Logger, written to zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("http request",
					zap.String("requestId", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
