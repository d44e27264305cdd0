package service

import (
	"context"
	"errors"

	"rejectionlog/internal/model"
	"rejectionlog/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrProductNotFound = errors.New("product not found")

type CreateProductRequest struct {
	Name    string `json:"name" binding:"required"`
	BatchNo string `json:"batch_no" binding:"required"`
	LineNo  string `json:"line_no" binding:"required"`
}

type UpdateProductRequest struct {
	Name    string `json:"name"`
	BatchNo string `json:"batch_no"`
	LineNo  string `json:"line_no"`
}

type ProductService interface {
	CreateProduct(ctx context.Context, req CreateProductRequest) (*model.Product, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	ListProducts(ctx context.Context, page, limit int, search string) ([]model.Product, int64, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, req UpdateProductRequest) (*model.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

type productService struct {
	repo repository.ProductRepository
}

func NewProductService(repo repository.ProductRepository) ProductService {
	return &productService{repo: repo}
}

func (s *productService) CreateProduct(ctx context.Context, req CreateProductRequest) (*model.Product, error) {
	product := &model.Product{
		ID:      uuid.New(),
		Name:    req.Name,
		BatchNo: req.BatchNo,
		LineNo:  req.LineNo,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *productService) GetProductByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *productService) ListProducts(ctx context.Context, page, limit int, search string) ([]model.Product, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return s.repo.List(ctx, page, limit, search)
}

func (s *productService) UpdateProduct(ctx context.Context, id uuid.UUID, req UpdateProductRequest) (*model.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	// Catalog edits never rewrite existing entries: LogEntry keeps its own
	// denormalized copy of these fields.
	if req.Name != "" {
		product.Name = req.Name
	}
	if req.BatchNo != "" {
		product.BatchNo = req.BatchNo
	}
	if req.LineNo != "" {
		product.LineNo = req.LineNo
	}

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *productService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return err
	}
	return s.repo.Delete(ctx, id)
}
