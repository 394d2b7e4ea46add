package server

import (
	"errors"
	"net/http"
	"time"

	payoutdomain "github.com/amourlabs/amour/internal/payout/domain"
	"github.com/gin-gonic/gin"
)

type createInfluencerRequest struct {
	Name         string `json:"name"`
	Contact      string `json:"contact"`
	ReferralCode string `json:"referralCode"`
}

type influencerResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Contact        string    `json:"contact"`
	ReferralCode   string    `json:"referralCode"`
	ReferralCount  int64     `json:"referralCount"`
	PendingPayment int64     `json:"pendingPayment"`
	TotalEarning   int64     `json:"totalEarning"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toInfluencerResponse(influencer payoutdomain.Influencer) influencerResponse {
	return influencerResponse{
		ID:             influencer.ID.String(),
		Name:           influencer.Name,
		Contact:        influencer.Contact,
		ReferralCode:   influencer.ReferralCode,
		ReferralCount:  influencer.ReferralCount,
		PendingPayment: influencer.PendingPayment,
		TotalEarning:   influencer.TotalEarning,
		CreatedAt:      influencer.CreatedAt,
	}
}

func (s *Server) CreateInfluencer(c *gin.Context) {
	var req createInfluencerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	influencer, err := s.payoutSvc.Create(c.Request.Context(), req.Name, req.Contact, req.ReferralCode)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toInfluencerResponse(*influencer))
}

func (s *Server) ListInfluencers(c *gin.Context) {
	page, limit, err := parsePagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	influencers, total, err := s.payoutSvc.List(c.Request.Context(), payoutdomain.ListQuery{
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items := make([]influencerResponse, 0, len(influencers))
	for _, influencer := range influencers {
		items = append(items, toInfluencerResponse(influencer))
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": total,
		"page":  page,
	})
}

func (s *Server) GetInfluencer(c *gin.Context) {
	id, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	influencer, err := s.payoutSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toInfluencerResponse(*influencer))
}

type payInfluencerRequest struct {
	Amount int64  `json:"amount"`
	Method string `json:"paymentMethod"`
	Note   string `json:"note"`
}

// PayInfluencer settles part of the pending balance. The amount must
// not exceed what is owed.
func (s *Server) PayInfluencer(c *gin.Context) {
	id, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req payInfluencerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.payoutSvc.Pay(c.Request.Context(), payoutdomain.PayRequest{
		InfluencerID: id,
		Amount:       req.Amount,
		Method:       req.Method,
		Note:         req.Note,
		ActorID:      adminIDFromContext(c),
	})
	if err != nil {
		if errors.Is(err, payoutdomain.ErrInsufficientPending) {
			c.JSON(http.StatusConflict, gin.H{
				"success":        false,
				"message":        "insufficient_pending_payment",
				"pendingPayment": result.PendingPayment,
			})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"paid":           result.Paid,
		"pendingPayment": result.PendingPayment,
		"totalEarning":   result.TotalEarning,
	})
}
