package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/shopfront/checkout/docs"
	"github.com/shopfront/checkout/internal/cart"
	"github.com/shopfront/checkout/internal/config"
	"github.com/shopfront/checkout/internal/httpx"
	"github.com/shopfront/checkout/internal/order"
	"github.com/shopfront/checkout/internal/product"
	"github.com/shopfront/checkout/internal/storage"
)

// @title Storefront Checkout API
// @version 1.0
// @description Cart-to-order checkout with transactional inventory reservation.
// @BasePath /
func main() {
	cfg := config.Load()
	ctx := context.Background()

	if cfg.RunMigrations {
		if err := storage.Migrate(cfg.PostgresDSN, cfg.MigrationsDir); err != nil {
			log.Fatalf("migrations: %v", err)
		}
	}

	pool, err := storage.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	orders := order.NewPGRepo(pool)
	svc := order.NewService(orders, order.Pricing{
		TaxRate:          cfg.TaxRate,
		ShippingFlat:     cfg.ShippingFlat,
		FreeShippingOver: cfg.FreeShippingOver,
	})
	carts := cart.NewPGRepo(pool)
	products := product.NewPGRepo(pool)

	m := httpx.NewMetrics("checkout")

	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger(), httpx.Identity(), m.Middleware())

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", httpx.MetricsHandler())
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.POST("/checkout", checkoutHandler(svc, carts))
	r.GET("/orders", listOrdersHandler(svc))
	r.GET("/orders/:id", getOrderHandler(svc))
	r.POST("/orders/:id/cancel", cancelOrderHandler(svc))
	r.PUT("/orders/:id/status", updateOrderStatusHandler(svc))

	r.GET("/cart", getCartHandler(carts))
	r.POST("/cart/items", addCartItemHandler(carts, products))
	r.DELETE("/cart/items/:product_id", removeCartItemHandler(carts))
	r.DELETE("/cart", clearCartHandler(carts))

	r.GET("/products", listProductsHandler(products))
	r.GET("/products/:id", getProductHandler(products))
	r.POST("/products", createProductHandler(products))
	r.PUT("/products/:id", updateProductHandler(products))

	log.Printf("checkout-service listening on %s", cfg.HTTPAddr)
	log.Fatal(r.Run(cfg.HTTPAddr))
}
