package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gmart-backend/internal/infrastructure/paypal"
	"gmart-backend/internal/usecase"
)

type cartItemReq struct {
	ProductID string `json:"productId" binding:"required"`
	Qty       int    `json:"qty" binding:"required,min=1,max=10000"`
}

type createOrderReq struct {
	Items         []cartItemReq `json:"items" binding:"required,min=1,dive"`
	CustomerEmail string        `json:"customerEmail" binding:"omitempty,email"`
}

func (s *Server) handleCreateOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		s.err(c, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}
	items := make([]usecase.CartItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = usecase.CartItem{ProductID: it.ProductID, Qty: it.Qty}
	}
	o, err := s.orders.Create(c.Request.Context(), items, req.CustomerEmail)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"externalOrderId": o.ExternalOrderID, "orderId": o.OrderID})
}

// handleCaptureOrder answers 200 with the provider's payload whenever the
// provider answered, declines included.
func (s *Server) handleCaptureOrder(c *gin.Context) {
	res, err := s.orders.Capture(c.Request.Context(), c.Param("id"))
	var ge *paypal.GatewayError
	if err != nil && !(errors.As(err, &ge) && res.StatusCode != 0) {
		s.fail(c, err)
		return
	}
	if len(res.Body) == 0 {
		body := gin.H{"status": res.Status, "providerStatus": res.StatusCode}
		if err != nil {
			body["error"] = err.Error()
		}
		c.JSON(http.StatusOK, body)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", res.Body)
}

func (s *Server) handleGetInvoice(c *gin.Context) {
	id := c.Param("id")
	pdf, err := s.orders.GetInvoice(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+id+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (s *Server) handleListOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	page, pageSize = usecase.NormalizePage(page, pageSize)
	items, total := s.orders.ListOrders(c.Request.Context(), page, pageSize)
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "page": page, "pageSize": pageSize})
}

type registerReq struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type otpReq struct {
	Email string `json:"email" binding:"required,email"`
}

type verifyOTPReq struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6,numeric"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		s.err(c, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}
	token, u, err := s.auth.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "user": u})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		s.err(c, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}
	token, u, err := s.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": u})
}

func (s *Server) handleSendOTP(c *gin.Context) {
	var req otpReq
	if err := c.ShouldBindJSON(&req); err != nil {
		s.err(c, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}
	if err := s.auth.SendOTP(c.Request.Context(), req.Email); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "code sent"})
}

func (s *Server) handleVerifyOTP(c *gin.Context) {
	var req verifyOTPReq
	if err := c.ShouldBindJSON(&req); err != nil {
		s.err(c, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}
	token, u, err := s.auth.VerifyOTP(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": u})
}

type createProductReq struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Price       *int64 `json:"price" binding:"required"`
}

func (s *Server) handleListProducts(c *gin.Context) {
	list, err := s.catalog.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleGetProduct(c *gin.Context) {
	p, err := s.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleCreateProduct(c *gin.Context) {
	var req createProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		s.err(c, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}
	p, err := s.catalog.Create(c.Request.Context(), req.Name, req.Description, *req.Price)
	if err != nil {
		s.fail(c, err)
		return
	}
	logFor(c, s.log).Info("product created", zap.String("product_id", p.ID))
	c.JSON(http.StatusCreated, p)
}

func (s *Server) handleDeleteProduct(c *gin.Context) {
	if err := s.catalog.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
