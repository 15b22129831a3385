// Package market holds the category and market directory. Lookups by symbol and
// title go through secondary indexes instead of scans.
package market

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ajaydeep123/TradeOpx/internal/errs"
	"github.com/Ajaydeep123/TradeOpx/internal/models"
)

type Directory struct {
	markets         map[string]*models.Market   // keyed by symbol
	categories      map[string]*models.Category // keyed by id
	categoryByTitle map[string]*models.Category
}

func NewDirectory() *Directory {
	return &Directory{
		markets:         make(map[string]*models.Market),
		categories:      make(map[string]*models.Category),
		categoryByTitle: make(map[string]*models.Category),
	}
}

// CreateCategory adds a new category. Titles are unique; a duplicate is rejected.
func (d *Directory) CreateCategory(title, icon, description string) (*models.Category, error) {
	if title == "" {
		return nil, errs.New(errs.KindValidation, "category title is required")
	}
	if _, exists := d.categoryByTitle[title]; exists {
		return nil, errs.New(errs.KindState, "category %q already exists", title)
	}
	c := &models.Category{
		ID:          uuid.NewString(),
		Title:       title,
		Icon:        icon,
		Description: description,
	}
	d.categories[c.ID] = c
	d.categoryByTitle[title] = c
	return c, nil
}

// CreateMarket adds a new ACTIVE market under an existing category. Last prices
// seed at the midpoint of the price domain.
func (d *Directory) CreateMarket(symbol string, endTime time.Time, description, sourceOfTruth, categoryTitle, createdBy string) (*models.Market, error) {
	if symbol == "" {
		return nil, errs.New(errs.KindValidation, "market symbol is required")
	}
	if _, exists := d.markets[symbol]; exists {
		return nil, errs.New(errs.KindState, "market %q already exists", symbol)
	}
	category, ok := d.categoryByTitle[categoryTitle]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "category %q not found", categoryTitle)
	}
	m := &models.Market{
		ID:            uuid.NewString(),
		Symbol:        symbol,
		Description:   description,
		EndTime:       endTime,
		SourceOfTruth: sourceOfTruth,
		CategoryID:    category.ID,
		CategoryTitle: category.Title,
		Status:        models.MarketActive,
		LastYesPrice:  models.PriceMax / 2,
		LastNoPrice:   models.PriceMax / 2,
		CreatedBy:     createdBy,
		Timestamp:     time.Now(),
	}
	d.markets[symbol] = m
	return m, nil
}

// GetMarket returns the market for symbol.
func (d *Directory) GetMarket(symbol string) (*models.Market, error) {
	m, ok := d.markets[symbol]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "market %q not found", symbol)
	}
	return m, nil
}

// GetActiveMarket returns the market for symbol only if it is open for trading.
func (d *Directory) GetActiveMarket(symbol string) (*models.Market, error) {
	m, err := d.GetMarket(symbol)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MarketActive {
		return nil, errs.New(errs.KindState, "market %q is %s", symbol, m.Status)
	}
	return m, nil
}

// ListMarkets returns all markets.
func (d *Directory) ListMarkets() []*models.Market {
	out := make([]*models.Market, 0, len(d.markets))
	for _, m := range d.markets {
		out = append(out, m)
	}
	return out
}

// ListCategories returns all categories.
func (d *Directory) ListCategories() []*models.Category {
	out := make([]*models.Category, 0, len(d.categories))
	for _, c := range d.categories {
		out = append(out, c)
	}
	return out
}

// CloseMarket transitions ACTIVE -> CLOSED.
func (d *Directory) CloseMarket(symbol string) (*models.Market, error) {
	m, err := d.GetMarket(symbol)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MarketActive {
		return nil, errs.New(errs.KindState, "market %q is %s, not ACTIVE", symbol, m.Status)
	}
	m.Status = models.MarketClosed
	return m, nil
}

// ResolveMarket transitions CLOSED -> RESOLVED and records the outcome.
func (d *Directory) ResolveMarket(symbol string, outcome models.Side) (*models.Market, error) {
	m, err := d.GetMarket(symbol)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MarketClosed {
		return nil, errs.New(errs.KindState, "market %q is %s, not CLOSED", symbol, m.Status)
	}
	if !outcome.Valid() {
		return nil, errs.New(errs.KindValidation, "invalid outcome %q", outcome)
	}
	m.Status = models.MarketResolved
	m.ResolvedOutcome = outcome
	return m, nil
}
