package service

import (
	"context"
	"strings"

	"vendapos/internal/apperror"
	"vendapos/internal/dto"
	"vendapos/internal/model"
	"vendapos/internal/repository"
	"vendapos/internal/settlement"

	"github.com/google/uuid"
)

type ProductService interface {
	Create(ctx context.Context, req dto.CreateProductRequest) (*model.Product, error)
	Update(ctx context.Context, id uuid.UUID, req dto.UpdateProductRequest) (*model.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Product, error)
	List(ctx context.Context, activeOnly bool) ([]model.Product, error)
	// Resolve prices an item draft against the catalog and returns the line
	// ready to be stored, subtotal included.
	Resolve(ctx context.Context, req dto.ItemRequest) (model.SaleItem, error)
}

type productService struct {
	repo  repository.ProductRepository
	guard *Guard
}

func NewProductService(repo repository.ProductRepository, guard *Guard) ProductService {
	return &productService{repo: repo, guard: guard}
}

func (s *productService) Create(ctx context.Context, req dto.CreateProductRequest) (*model.Product, error) {
	mode, err := model.ParsePricingMode(req.PricingMode)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}
	p := &model.Product{
		Name:         strings.TrimSpace(req.Name),
		Category:     strings.TrimSpace(req.Category),
		PricingMode:  mode,
		UnitPrice:    req.UnitPrice,
		PricePerGram: req.PricePerGram,
		Active:       true,
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if err := s.guard.Do(ctx, "criar produto", func(ctx context.Context) error { return s.repo.Create(ctx, p) }); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *productService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateProductRequest) (*model.Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		p.Category = strings.TrimSpace(*req.Category)
	}
	if req.UnitPrice != nil {
		p.UnitPrice = *req.UnitPrice
	}
	if req.PricePerGram != nil {
		p.PricePerGram = *req.PricePerGram
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if err := s.guard.Do(ctx, "atualizar produto", func(ctx context.Context) error { return s.repo.Update(ctx, p) }); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *productService) Get(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var p *model.Product
	err := s.guard.Do(ctx, "buscar produto", func(ctx context.Context) (err error) {
		p, err = s.repo.FindByID(ctx, id)
		return err
	})
	return p, err
}

func (s *productService) List(ctx context.Context, activeOnly bool) ([]model.Product, error) {
	var out []model.Product
	err := s.guard.Do(ctx, "listar produtos", func(ctx context.Context) (err error) {
		out, err = s.repo.List(ctx, activeOnly)
		return err
	})
	return out, err
}

func (s *productService) Resolve(ctx context.Context, req dto.ItemRequest) (model.SaleItem, error) {
	pid, err := uuid.Parse(req.ProductID)
	if err != nil {
		return model.SaleItem{}, apperror.ValidationFields("produto inválido", map[string]string{"product_id": "uuid"})
	}
	p, err := s.Get(ctx, pid)
	if apperror.IsNotFound(err) {
		return model.SaleItem{}, apperror.Validationf("produto %s não encontrado", req.ProductID)
	}
	if err != nil {
		return model.SaleItem{}, err
	}
	if !p.Active {
		return model.SaleItem{}, apperror.Validationf("produto %s está inativo e não pode ser vendido", p.Name)
	}

	switch p.PricingMode {
	case model.PricingUnit:
		if !req.WeightGrams.IsZero() {
			return model.SaleItem{}, apperror.Validationf("%s é vendido por unidade, não por peso", p.Name)
		}
		if req.Quantity < 1 {
			return model.SaleItem{}, apperror.Validationf("informe a quantidade de %s", p.Name)
		}
	case model.PricingWeight:
		if req.Quantity != 0 {
			return model.SaleItem{}, apperror.Validationf("%s é vendido por peso, não por unidade", p.Name)
		}
		if !req.WeightGrams.IsPositive() {
			return model.SaleItem{}, apperror.Validationf("informe o peso de %s", p.Name)
		}
	default:
		return model.SaleItem{}, apperror.Validationf("produto %s sem modo de preço", p.Name)
	}

	it := model.SaleItem{
		ID:          uuid.New(),
		ProductID:   p.ID,
		ProductName: p.Name,
		PricingMode: p.PricingMode,
		Quantity:    req.Quantity,
		WeightGrams: req.WeightGrams,
		UnitPrice:   p.Price(),
		Discount:    req.Discount,
		Observation: req.Observation,
	}
	for _, c := range req.Complements {
		it.Complements = append(it.Complements, model.ItemComplement{ID: uuid.New(), Name: c.Name, Price: c.Price})
	}
	it.Subtotal, err = settlement.LineSubtotal(settlement.LineFromItem(it))
	if err != nil {
		return model.SaleItem{}, err
	}
	return it, nil
}

// validateProduct enforces exactly one configured pricing mode.
func validateProduct(p *model.Product) error {
	if p.Name == "" {
		return apperror.ValidationFields("nome obrigatório", map[string]string{"name": "required"})
	}
	switch p.PricingMode {
	case model.PricingUnit:
		if !p.UnitPrice.IsPositive() {
			return apperror.ValidationFields("preço unitário obrigatório", map[string]string{"unit_price": "gt=0"})
		}
		if !p.PricePerGram.IsZero() {
			return apperror.ValidationFields("produto por unidade não tem preço por grama", map[string]string{"price_per_gram": "eq=0"})
		}
	case model.PricingWeight:
		if !p.PricePerGram.IsPositive() {
			return apperror.ValidationFields("preço por grama obrigatório", map[string]string{"price_per_gram": "gt=0"})
		}
		if !p.UnitPrice.IsZero() {
			return apperror.ValidationFields("produto por peso não tem preço unitário", map[string]string{"unit_price": "eq=0"})
		}
	default:
		return apperror.Validationf("modo de preço desconhecido: %q", p.PricingMode)
	}
	return nil
}
