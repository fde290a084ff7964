package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Thin read-side consumers of already-persisted data. The ingestion
// pipeline never goes through these handlers.

type Handler struct {
	db *gorm.DB
}

func SetupRoutes(r *gin.RouterGroup, db *gorm.DB) *Handler {
	handler := &Handler{db: db}

	r.GET("/arbitrage", handler.Arbitrage)
	r.GET("/items/lookup", handler.LookupItem)

	return handler
}

// listingView is the joined row shape both queries return.
type listingView struct {
	ItemID      int       `json:"id" gorm:"column:item_id"`
	Icon        string    `json:"icon" gorm:"column:icon"`
	Name        string    `json:"name" gorm:"column:name"`
	Level       int       `json:"level" gorm:"column:level"`
	SPrice      int       `json:"s_price" gorm:"column:s_price"`
	BPrice      int       `json:"b_price" gorm:"column:b_price"`
	PMargin     *float64  `json:"p_margin" gorm:"column:p_margin"`
	Demand      int       `json:"demand" gorm:"column:demand"`
	Supply      int       `json:"supply" gorm:"column:supply"`
	LastUpdated time.Time `json:"last_updated" gorm:"column:last_updated"`
}

const viewColumns = "items.item_id, items.icon, items.name, items.level, " +
	"listings.s_price, listings.b_price, listings.p_margin, " +
	"listings.demand, listings.supply, listings.last_updated"

// Arbitrage lists the top liquid high-margin items from snapshots taken
// in the last day. Zero-sell-price listings carry a NULL margin and fall
// out of the range predicate here rather than at ingest time.
func (h *Handler) Arbitrage(c *gin.Context) {
	since := time.Now().Add(-24 * time.Hour)

	var results []listingView
	err := h.db.Table("listings").
		Select(viewColumns).
		Joins("JOIN items ON items.item_id = listings.item_id").
		Where("listings.p_margin >= ? AND listings.p_margin < ?", 0.2, 1.0).
		Where("listings.supply > ? AND listings.demand > ?", 800, 800).
		Where("listings.last_updated >= ?", since).
		Order("listings.last_updated DESC").
		Order("listings.p_margin DESC").
		Limit(10).
		Scan(&results).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "arbitrage query failed"})
		return
	}

	c.JSON(http.StatusOK, results)
}

// LookupItem returns the latest snapshot for an exact item name.
func (h *Handler) LookupItem(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	var results []listingView
	err := h.db.Table("listings").
		Select(viewColumns).
		Joins("JOIN items ON items.item_id = listings.item_id").
		Where("items.name = ?", name).
		Order("listings.last_updated DESC").
		Limit(1).
		Scan(&results).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup query failed"})
		return
	}
	if len(results) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no listing for item"})
		return
	}

	c.JSON(http.StatusOK, results[0])
}
