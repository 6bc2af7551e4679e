package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/storefront/internal/service"
	"github.com/linemk/storefront/internal/storage"
)

// ProductRequest тело создания товара
type ProductRequest struct {
	Name        string   `json:"name" validate:"required,notblank"`
	Description string   `json:"description"`
	Price       float64  `json:"price" validate:"gte=0"`
	Category    string   `json:"category" validate:"required,oneof=electronics clothing books home sports other"`
	Stock       int      `json:"stock" validate:"gte=0"`
	Images      []string `json:"images" validate:"omitempty,dive,notblank"`
}

// ProductUpdateRequest частичное обновление; отсутствующие поля не меняются
type ProductUpdateRequest struct {
	Name        *string  `json:"name" validate:"omitempty,notblank"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Category    *string  `json:"category" validate:"omitempty,oneof=electronics clothing books home sports other"`
	Stock       *int     `json:"stock" validate:"omitempty,gte=0"`
	Images      []string `json:"images" validate:"omitempty,dive,notblank"`
}

// ReviewRequest отзыв; rating указателем, чтобы 0 отличался от отсутствия поля
type ReviewRequest struct {
	Rating  *int   `json:"rating" validate:"required,gte=0,lte=5"`
	Comment string `json:"comment" validate:"required,notblank"`
}

// ListProductsHandler обрабатывает GET /api/products?keyword=&page=
func ListProductsHandler(log *slog.Logger, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListProductsHandler"
		logger := log.With(slog.String("op", op))

		page := 1
		if raw := r.URL.Query().Get("page"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeMessage(w, logger, http.StatusBadRequest, "page must be a number")
				return
			}
			page = n
		}

		res, err := productService.List(r.Context(), r.URL.Query().Get("keyword"), page)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, res)
	}
}

// GetProductHandler обрабатывает GET /api/products/{id}
func GetProductHandler(log *slog.Logger, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetProductHandler"
		logger := log.With(slog.String("op", op))

		product, err := productService.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, product)
	}
}

// CreateProductHandler обрабатывает POST /api/products (только админ)
func CreateProductHandler(log *slog.Logger, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateProductHandler"
		logger := log.With(slog.String("op", op))

		var req ProductRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		product, err := productService.Create(r.Context(), service.ProductInput{
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
			Category:    models.Category(req.Category),
			Stock:       req.Stock,
			Images:      req.Images,
		})
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusCreated, product)
	}
}

// UpdateProductHandler обрабатывает PUT /api/products/{id} (только админ)
func UpdateProductHandler(log *slog.Logger, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateProductHandler"
		logger := log.With(slog.String("op", op))

		var req ProductUpdateRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		upd := storage.ProductUpdate{
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
			Stock:       req.Stock,
			Images:      req.Images,
		}
		if req.Category != nil {
			c := models.Category(*req.Category)
			upd.Category = &c
		}

		product, err := productService.Update(r.Context(), chi.URLParam(r, "id"), upd)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, product)
	}
}

// DeleteProductHandler обрабатывает DELETE /api/products/{id} (только админ)
func DeleteProductHandler(log *slog.Logger, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DeleteProductHandler"
		logger := log.With(slog.String("op", op))

		if err := productService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, logger, err)
			return
		}
		writeMessage(w, logger, http.StatusOK, "Product removed")
	}
}

// CreateReviewHandler обрабатывает POST /api/products/{id}/reviews
func CreateReviewHandler(log *slog.Logger, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateReviewHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeMessage(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req ReviewRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		err := productService.AddReview(r.Context(), userID, chi.URLParam(r, "id"), *req.Rating, req.Comment)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeMessage(w, logger, http.StatusCreated, "Review added")
	}
}
