package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/controllers"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/middleware"
)

// Handlers bundles the controllers mounted by Register. Webhooks is nil when
// no webhook secret is configured.
type Handlers struct {
	Orders   *controllers.OrderController
	Products *controllers.ProductController
	Webhooks *controllers.WebhookController
}

func RegisterOrderRoutes(r gin.IRouter, oc *controllers.OrderController) {
	orders := r.Group("/orders")
	orders.POST("", oc.CreateOrder)
	orders.POST("/verify", oc.VerifyPayment)

	authed := orders.Group("", middleware.RequireIdentity())
	authed.GET("", oc.ListOrders)
	authed.GET("/:id", oc.GetOrder)
	authed.PUT("/:id/cancel", oc.CancelOrder)

	admin := orders.Group("", middleware.AdminOnly())
	admin.PATCH("/:id", oc.UpdateOrderStatus)
	admin.DELETE("/:id", oc.DeleteOrder)
}

func RegisterProductRoutes(r gin.IRouter, pc *controllers.ProductController) {
	products := r.Group("/products")
	products.GET("", pc.ListProducts)
	products.GET("/:id", pc.GetProduct)
	products.GET("/:id/image", pc.GetImage)

	admin := products.Group("", middleware.AdminOnly())
	admin.POST("", pc.CreateProduct)
	admin.PUT("/:id", pc.UpdateProduct)
	admin.DELETE("/:id", pc.DeleteProduct)
	admin.PUT("/:id/image", pc.UploadImage)
}

func RegisterWebhookRoutes(r gin.IRouter, wc *controllers.WebhookController) {
	r.POST("/webhooks/payment", wc.PaymentWebhook)
}

// Register mounts every route group on r.
func Register(r gin.IRouter, h Handlers) error {
	if err := RegisterValidators(); err != nil {
		return err
	}
	RegisterOrderRoutes(r, h.Orders)
	RegisterProductRoutes(r, h.Products)
	if h.Webhooks != nil {
		RegisterWebhookRoutes(r, h.Webhooks)
	}
	return nil
}
