package api

import (
	"net/http"

	"pdv-service/internal/models"
	"pdv-service/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listProducts(c *gin.Context) {
	filter := models.ProductFilter{
		CategoryID:    c.Query("categoryId"),
		AvailableOnly: c.Query("available") == "true",
	}

	products, err := h.svc.Catalog.ListProducts(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) createProduct(c *gin.Context) {
	var req service.ProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.svc.Catalog.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.svc.Catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	var req service.ProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.svc.Catalog.UpdateProduct(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.svc.Catalog.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.svc.Catalog.ListCategories(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (h *Handler) createCategory(c *gin.Context) {
	var req service.CategoryRequest
	if !bindJSON(c, &req) {
		return
	}

	category, err := h.svc.Catalog.CreateCategory(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (h *Handler) getCategory(c *gin.Context) {
	category, err := h.svc.Catalog.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *Handler) updateCategory(c *gin.Context) {
	var req service.CategoryRequest
	if !bindJSON(c, &req) {
		return
	}

	category, err := h.svc.Catalog.UpdateCategory(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

// deleteCategory accepts ?strategy=reassign|cascade for non-empty categories
func (h *Handler) deleteCategory(c *gin.Context) {
	err := h.svc.Catalog.DeleteCategory(c.Request.Context(), c.Param("id"), c.Query("strategy"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
