package server

import (
	"net/http"
	"time"

	usagedomain "github.com/amourlabs/amour/internal/usage/domain"
	"github.com/gin-gonic/gin"
)

type queryLogItem struct {
	ID               string    `json:"id"`
	AccountID        string    `json:"accountId"`
	Category         string    `json:"type"`
	Model            string    `json:"model,omitempty"`
	PromptTokens     int64     `json:"promptTokens"`
	CompletionTokens int64     `json:"completionTokens"`
	TotalTokens      int64     `json:"tokens"`
	CostINR          float64   `json:"costINR"`
	CreatedAt        time.Time `json:"createdAt"`
}

// ListQueryLogs pages through recent generation requests with window
// totals. The detail rows expire; permanent totals live in the
// aggregates endpoint.
func (s *Server) ListQueryLogs(c *gin.Context) {
	page, limit, err := parsePagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.usageSvc.Stats(c.Request.Context(), usagedomain.StatsQuery{
		Category: c.Query("type"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items := make([]queryLogItem, 0, len(result.Items))
	for _, event := range result.Items {
		items = append(items, queryLogItem{
			ID:               event.ID.String(),
			AccountID:        event.AccountID.String(),
			Category:         event.Category,
			Model:            event.Model,
			PromptTokens:     event.PromptTokens,
			CompletionTokens: event.CompletionTokens,
			TotalTokens:      event.TotalTokens,
			CostINR:          event.CostINR,
			CreatedAt:        event.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": result.Total,
		"page":  result.Page,
		"totals": gin.H{
			"costINR":  result.Totals.CostINR,
			"tokens":   result.Totals.Tokens,
			"requests": result.Totals.Requests,
		},
	})
}

type queryLogAggregate struct {
	Category              string    `json:"type"`
	TotalRequests         int64     `json:"totalRequests"`
	TotalPromptTokens     int64     `json:"totalPromptTokens"`
	TotalCompletionTokens int64     `json:"totalCompletionTokens"`
	TotalTokens           int64     `json:"totalTokens"`
	TotalCostINR          float64   `json:"totalCostINR"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// ListQueryLogAggregates returns the lifetime totals per category plus
// the all-categories row.
func (s *Server) ListQueryLogAggregates(c *gin.Context) {
	aggregates, err := s.usageSvc.Aggregates(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items := make([]queryLogAggregate, 0, len(aggregates))
	for _, aggregate := range aggregates {
		items = append(items, queryLogAggregate{
			Category:              aggregate.Category,
			TotalRequests:         aggregate.TotalRequests,
			TotalPromptTokens:     aggregate.TotalPromptTokens,
			TotalCompletionTokens: aggregate.TotalCompletionTokens,
			TotalTokens:           aggregate.TotalTokens,
			TotalCostINR:          aggregate.TotalCostINR,
			UpdatedAt:             aggregate.UpdatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}
