// Package server exposes the cart core over HTTP: the remote cart API the
// storefront syncs against, the product listing, and a simulated checkout.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	cartdomain "github.com/poshpearl/poshcart/internal/cart/domain"
	catalogapp "github.com/poshpearl/poshcart/internal/catalog/app"
	catalogdomain "github.com/poshpearl/poshcart/internal/catalog/domain"
	checkoutapp "github.com/poshpearl/poshcart/internal/checkout/app"
	checkoutadapter "github.com/poshpearl/poshcart/internal/checkout/infra/adapter"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	sessionCookie = "sessionid"
	csrfCookie    = "csrftoken"
	csrfHeader    = "X-CSRFToken"
)

type Server struct {
	catalog *catalogapp.Service
	carts   *CartManager
	log     *slog.Logger
	phone   string
}

func New(catalog *catalogapp.Service, carts *CartManager, log *slog.Logger, phone string) *Server {
	return &Server{catalog: catalog, carts: carts, log: log, phone: phone}
}

// Router assembles the gin engine. Mutating cart routes sit behind the CSRF
// check; every route gets a session cookie so carts survive across requests.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog(), s.ensureSession())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")
	api.GET("/products", s.listProducts)
	api.GET("/cart", s.getCart)

	guarded := api.Group("", s.requireCSRF())
	guarded.POST("/products", s.addProduct)
	guarded.POST("/cart/items", s.addCartItem)
	guarded.PATCH("/cart/items/:id", s.updateCartItem)
	guarded.DELETE("/cart/items/:id", s.removeCartItem)
	guarded.DELETE("/cart", s.clearCart)
	guarded.POST("/checkout", s.checkout)

	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("took", time.Since(start)),
		)
	}
}

// ensureSession issues the session and anti-forgery cookies on first
// contact, the same handshake the original storefront relied on.
func (s *Server) ensureSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if key, err := c.Cookie(sessionCookie); err != nil || key == "" {
			key = uuid.NewString()
			c.SetCookie(sessionCookie, key, 0, "/", "", false, true)
			c.Set(sessionCookie, key)
		}
		if _, err := c.Cookie(csrfCookie); err != nil {
			c.SetCookie(csrfCookie, uuid.NewString(), 0, "/", "", false, false)
		}
		c.Next()
	}
}

// requireCSRF enforces the double-submit check: the csrftoken cookie must
// exist and match the X-CSRFToken header.
func (s *Server) requireCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Request.Cookie(csrfCookie)
		if err != nil || token.Value == "" || c.GetHeader(csrfHeader) != token.Value {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": "CSRF_FAILED", "error": "CSRF token missing or incorrect"})
			return
		}
		c.Next()
	}
}

func (s *Server) session(c *gin.Context) *sessionCart {
	key, err := c.Cookie(sessionCookie)
	if err != nil || key == "" {
		// First contact: ensureSession minted the cookie on this very
		// request and stashed it in the context.
		key = c.GetString(sessionCookie)
	}
	return s.carts.GetOrCreate(c.Request.Context(), key)
}

func (s *Server) fail(c *gin.Context, err error) {
	status, code, msg := httpStatusFromErr(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", slog.Any("err", err))
	}
	c.JSON(status, gin.H{"code": code, "error": msg})
}

type productOut struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Price       int64  `json:"price"`
	PriceLabel  string `json:"price_label"`
	Currency    string `json:"currency"`
	Stock       string `json:"stock"`
	ImageRef    string `json:"image_ref,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

func toProductOut(p catalogdomain.Product) productOut {
	return productOut{
		ID:          p.ID,
		Title:       p.Title,
		Price:       p.Price.Amount,
		PriceLabel:  p.Price.Label(),
		Currency:    p.Price.Currency,
		Stock:       string(p.Stock),
		ImageRef:    p.ImageRef,
		Description: p.Description,
		Category:    p.Category,
	}
}

func (s *Server) listProducts(c *gin.Context) {
	products, err := s.catalog.List(c.Request.Context(), c.Query("q"))
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]productOut, 0, len(products))
	for _, p := range products {
		out = append(out, toProductOut(p))
	}
	c.JSON(http.StatusOK, out)
}

type productIn struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Price       int64  `json:"price"`
	Currency    string `json:"currency"`
	Stock       string `json:"stock"`
	ImageRef    string `json:"image_ref"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

func (s *Server) addProduct(c *gin.Context) {
	var in productIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_ARGUMENT", "error": "malformed body"})
		return
	}
	if in.Currency == "" {
		in.Currency = "NGN"
	}
	p, err := s.catalog.AddProduct(c.Request.Context(), catalogdomain.Product{
		ID:          in.ID,
		Title:       in.Title,
		Price:       catalogdomain.Money{Currency: in.Currency, Amount: in.Price},
		Stock:       catalogdomain.Status(in.Stock),
		ImageRef:    in.ImageRef,
		Description: in.Description,
		Category:    in.Category,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toProductOut(p))
}

type cartLineOut struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Currency  string `json:"currency"`
	LineTotal int64  `json:"line_total"`
}

type cartOut struct {
	ID       string        `json:"id"`
	Items    []cartLineOut `json:"items"`
	Subtotal int64         `json:"subtotal"`
	Currency string        `json:"currency"`
}

func (s *Server) renderCart(c *gin.Context, sess *sessionCart) cartOut {
	snap := sess.svc.Snapshot(c.Request.Context())
	out := cartOut{
		ID:       sess.id,
		Items:    make([]cartLineOut, 0, len(snap.Lines)),
		Subtotal: snap.Subtotal,
		Currency: snap.Currency,
	}
	for _, l := range snap.Lines {
		out.Items = append(out.Items, cartLineOut{
			ID:        sess.lineID(l.ProductID),
			ProductID: l.ProductID,
			Name:      l.Title,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Currency:  l.Currency,
			LineTotal: l.LineTotal,
		})
	}
	return out
}

func (s *Server) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, s.renderCart(c, s.session(c)))
}

func (s *Server) addCartItem(c *gin.Context) {
	var in struct {
		ProductID string `json:"product_id"`
		Quantity  *int   `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_ARGUMENT", "error": "malformed body"})
		return
	}
	qty := 1
	if in.Quantity != nil {
		qty = *in.Quantity
	}
	if qty < 1 {
		s.fail(c, cartdomain.ErrInvalidQuantity)
		return
	}
	// The server only accepts products it knows; the local store is more
	// forgiving by design.
	if _, err := s.catalog.Get(c.Request.Context(), in.ProductID); err != nil {
		s.fail(c, err)
		return
	}

	sess := s.session(c)
	if err := sess.svc.AddToCart(c.Request.Context(), in.ProductID, qty); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.renderCart(c, sess))
}

// resolveLine maps a line id back to a product currently in the cart. Line
// aliases outlive removals, so membership is checked against the cart too.
func (s *Server) resolveLine(c *gin.Context, sess *sessionCart) (string, bool) {
	productID, ok := sess.productID(c.Param("id"))
	if ok {
		ok = false
		for _, l := range sess.svc.Lines(c.Request.Context()) {
			if l.ProductID == productID {
				ok = true
				break
			}
		}
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "error": "cart line not found"})
		return "", false
	}
	return productID, true
}

func (s *Server) updateCartItem(c *gin.Context) {
	sess := s.session(c)
	productID, ok := s.resolveLine(c, sess)
	if !ok {
		return
	}
	var in struct {
		Quantity int `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_ARGUMENT", "error": "malformed body"})
		return
	}
	// quantity <= 0 deletes the line, mirroring the store's SetQuantity.
	if err := sess.svc.SetQuantity(c.Request.Context(), productID, in.Quantity); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.renderCart(c, sess))
}

func (s *Server) removeCartItem(c *gin.Context) {
	sess := s.session(c)
	productID, ok := s.resolveLine(c, sess)
	if !ok {
		return
	}
	if err := sess.svc.RemoveItem(c.Request.Context(), productID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.renderCart(c, sess))
}

func (s *Server) clearCart(c *gin.Context) {
	sess := s.session(c)
	if err := sess.svc.Clear(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.renderCart(c, sess))
}

func (s *Server) checkout(c *gin.Context) {
	sess := s.session(c)
	svc := checkoutapp.NewService(
		checkoutadapter.NewCartStoreReader(sess.svc),
		checkoutadapter.NewCatalogStoreReader(s.catalog),
		s.phone, 10,
	)
	msg, err := svc.Summary(c.Request.Context())
	if err != nil {
		if errors.Is(err, checkoutapp.ErrEmptyCart) {
			c.JSON(http.StatusBadRequest, gin.H{"code": "EMPTY_CART", "error": "cart is empty"})
			return
		}
		s.fail(c, err)
		return
	}
	// Payment stays simulated: compose the handoff, empty the cart.
	if err := sess.svc.Clear(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"summary":      msg.Text,
		"whatsapp_url": msg.WhatsAppURL,
	})
}
