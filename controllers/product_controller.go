package controllers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/common/errors"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/models"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/repository"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/storage"
)

// ProductService is implemented by *services.ProductService.
type ProductService interface {
	CreateProduct(ctx context.Context, req models.CreateProductRequest) (*models.Product, error)
	GetProduct(ctx context.Context, productID int64) (*models.Product, error)
	ListProducts(ctx context.Context, filter repository.ProductFilter, page, limit int) ([]models.Product, models.PaginationMeta, error)
	UpdateProduct(ctx context.Context, productID int64, req models.UpdateProductRequest) (*models.Product, error)
	DeleteProduct(ctx context.Context, productID int64) error
	UploadImage(ctx context.Context, productID int64, data []byte, declaredType string) (*models.Product, error)
	GetImage(ctx context.Context, productID int64) ([]byte, string, error)
	ImageDataURI(ctx context.Context, productID int64) (string, error)
}

type ProductController struct {
	products ProductService
}

func NewProductController(products ProductService) *ProductController {
	return &ProductController{products: products}
}

// productResponse is a product with its image inlined as a data URI.
type productResponse struct {
	models.Product
	Image string `json:"image,omitempty"`
}

type imageUpload struct {
	Image string `json:"image"`
}

func wantsImage(c *gin.Context) bool {
	for _, v := range strings.Split(c.Query("include"), ",") {
		if strings.TrimSpace(v) == "image" {
			return true
		}
	}
	return false
}

// withImage inlines the product image. A missing image or unconfigured
// storage leaves the field empty.
func (pc *ProductController) withImage(ctx context.Context, p models.Product) (productResponse, error) {
	resp := productResponse{Product: p}
	if !p.HasImage() {
		return resp, nil
	}
	uri, err := pc.products.ImageDataURI(ctx, p.ProductID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrUnavailable) {
			return resp, nil
		}
		return resp, err
	}
	resp.Image = uri
	return resp, nil
}

// ListProducts handles GET /products.
func (pc *ProductController) ListProducts(c *gin.Context) {
	page, limit := parsePaginationParams(c)

	organic, err := parseBool(c, "organic")
	if err != nil {
		_ = c.Error(err)
		return
	}
	inStock, err := parseBool(c, "inStock")
	if err != nil {
		_ = c.Error(err)
		return
	}

	filter := repository.ProductFilter{
		Category:    strings.TrimSpace(c.Query("category")),
		Subcategory: strings.TrimSpace(c.Query("subcategory")),
		Brand:       strings.TrimSpace(c.Query("brand")),
		Organic:     organic,
		InStock:     inStock,
		Search:      strings.TrimSpace(c.Query("q")),
	}

	products, meta, err := pc.products.ListProducts(c.Request.Context(), filter, page, limit)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if !wantsImage(c) {
		c.JSON(http.StatusOK, gin.H{"products": products, "pagination": meta})
		return
	}

	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp, err := pc.withImage(c.Request.Context(), p)
		if err != nil {
			_ = c.Error(err)
			return
		}
		out = append(out, resp)
	}
	c.JSON(http.StatusOK, gin.H{"products": out, "pagination": meta})
}

func (pc *ProductController) GetProduct(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	p, err := pc.products.GetProduct(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if !wantsImage(c) {
		c.JSON(http.StatusOK, p)
		return
	}
	resp, err := pc.withImage(c.Request.Context(), *p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (pc *ProductController) CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	p, err := pc.products.CreateProduct(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (pc *ProductController) UpdateProduct(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	p, err := pc.products.UpdateProduct(c.Request.Context(), id, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (pc *ProductController) DeleteProduct(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	if err := pc.products.DeleteProduct(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "product deleted"})
}

// GetImage streams the stored image bytes.
func (pc *ProductController) GetImage(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	data, contentType, err := pc.products.GetImage(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, contentType, data)
}

// UploadImage accepts either the raw image bytes or a JSON body
// {"image": "data:<type>;base64,<payload>"}.
func (pc *ProductController) UploadImage(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	// Base64 inflates by 4/3, so allow twice the blob limit on the wire.
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 2*storage.MaxImageSize+1))
	if err != nil {
		_ = c.Error(apperrors.Validation("failed to read image body"))
		return
	}
	if len(body) > 2*storage.MaxImageSize {
		_ = c.Error(apperrors.Validation(storage.ErrImageTooLarge.Error()))
		return
	}

	data, declared := body, c.ContentType()
	if declared == gin.MIMEJSON {
		var upload imageUpload
		if err := json.Unmarshal(body, &upload); err != nil {
			_ = c.Error(apperrors.Validation("invalid request body"))
			return
		}
		data, declared, err = decodeDataURI(upload.Image)
		if err != nil {
			_ = c.Error(err)
			return
		}
	}

	p, err := pc.products.UploadImage(c.Request.Context(), id, data, declared)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func decodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", apperrors.Validation("image must be a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", apperrors.Validation("image must be a data URI")
	}
	contentType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return nil, "", apperrors.Validation("image data URI must be base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", apperrors.Validation("image data URI is not valid base64")
	}
	return data, contentType, nil
}
