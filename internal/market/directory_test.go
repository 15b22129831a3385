package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ajaydeep123/TradeOpx/internal/errs"
	"github.com/Ajaydeep123/TradeOpx/internal/models"
)

func TestCreateCategory(t *testing.T) {
	d := NewDirectory()

	c, err := d.CreateCategory("Cricket", "cricket.png", "Cricket markets")
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "Cricket", c.Title)

	// Duplicate titles are rejected.
	_, err = d.CreateCategory("Cricket", "other.png", "dup")
	assert.Equal(t, errs.KindState, errs.KindOf(err))

	_, err = d.CreateCategory("", "x", "empty title")
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	assert.Len(t, d.ListCategories(), 1)
}

func TestCreateMarket(t *testing.T) {
	d := NewDirectory()
	_, err := d.CreateMarket("IND-WC", time.Now().Add(time.Hour), "desc", "icc", "Cricket", "admin-1")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err), "category must pre-exist")

	_, err = d.CreateCategory("Cricket", "", "")
	require.NoError(t, err)

	m, err := d.CreateMarket("IND-WC", time.Now().Add(time.Hour), "desc", "icc", "Cricket", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.MarketActive, m.Status)
	assert.Equal(t, int64(models.PriceMax/2), m.LastYesPrice)
	assert.Equal(t, int64(models.PriceMax/2), m.LastNoPrice)
	assert.Equal(t, int64(0), m.TotalVolume)
	assert.Equal(t, "Cricket", m.CategoryTitle)
	assert.Equal(t, "admin-1", m.CreatedBy)

	// Duplicate symbol rejected.
	_, err = d.CreateMarket("IND-WC", time.Now().Add(time.Hour), "", "", "Cricket", "admin-1")
	assert.Equal(t, errs.KindState, errs.KindOf(err))
}

func TestMarketLifecycle(t *testing.T) {
	d := NewDirectory()
	_, err := d.CreateCategory("Cricket", "", "")
	require.NoError(t, err)
	_, err = d.CreateMarket("IND-WC", time.Now().Add(time.Hour), "", "", "Cricket", "admin-1")
	require.NoError(t, err)

	// Resolve before close fails.
	_, err = d.ResolveMarket("IND-WC", models.SideYes)
	assert.Equal(t, errs.KindState, errs.KindOf(err))

	m, err := d.CloseMarket("IND-WC")
	require.NoError(t, err)
	assert.Equal(t, models.MarketClosed, m.Status)

	// Closed markets are no longer tradable.
	_, err = d.GetActiveMarket("IND-WC")
	assert.Equal(t, errs.KindState, errs.KindOf(err))

	// Double close fails.
	_, err = d.CloseMarket("IND-WC")
	assert.Equal(t, errs.KindState, errs.KindOf(err))

	m, err = d.ResolveMarket("IND-WC", models.SideYes)
	require.NoError(t, err)
	assert.Equal(t, models.MarketResolved, m.Status)
	assert.Equal(t, models.SideYes, m.ResolvedOutcome)
}

func TestGetMarket_NotFound(t *testing.T) {
	d := NewDirectory()
	_, err := d.GetMarket("missing")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}
