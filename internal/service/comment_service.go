package service

import (
	"context"
	"strings"

	"pdv-service/internal/models"
	"pdv-service/internal/store"
)

// CommentRequest appends a note to an order
type CommentRequest struct {
	Content    string `json:"content" binding:"required"`
	AuthorName string `json:"authorName"`
}

// CommentService manages order comments
type CommentService struct {
	store *store.Store
}

func NewCommentService(store *store.Store) *CommentService {
	return &CommentService{store: store}
}

func (s *CommentService) AddComment(ctx context.Context, orderID string, req *CommentRequest) (*models.Comment, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, models.NewValidationError("content", "is required")
	}
	author := strings.TrimSpace(req.AuthorName)
	if author == "" {
		return nil, models.NewValidationError("authorName", "is required")
	}

	c := &models.Comment{OrderID: orderID, Content: content, AuthorName: author}
	if err := s.store.CreateComment(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CommentService) ListComments(ctx context.Context, orderID string) ([]models.Comment, error) {
	if _, err := s.store.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.store.ListComments(ctx, orderID)
}
