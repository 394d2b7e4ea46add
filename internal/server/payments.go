package server

import (
	"errors"
	"net/http"

	paymentdomain "github.com/amourlabs/amour/internal/payment/domain"
	"github.com/gin-gonic/gin"
)

type verifyPaymentRequest struct {
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpaySignature string `json:"razorpay_signature"`
	AmountRupees      int64  `json:"amountRupees"`
}

type verifyPaymentResponse struct {
	Success        bool                        `json:"success"`
	Verified       bool                        `json:"verified"`
	CreditsApplied int64                       `json:"creditsApplied"`
	Credits        int64                       `json:"credits"`
	Message        string                      `json:"message"`
	Record         *paymentdomain.PaymentEvent `json:"record,omitempty"`
}

// VerifyPayment handles the gateway completion callback. Replays of an
// already credited order return success without changing the balance.
func (s *Server) VerifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.paymentSvc.VerifyAndCredit(c.Request.Context(), paymentdomain.VerifyRequest{
		AccountID:    accountIDFromContext(c),
		OrderID:      req.RazorpayOrderID,
		PaymentID:    req.RazorpayPaymentID,
		Signature:    req.RazorpaySignature,
		AmountRupees: req.AmountRupees,
	})
	if errors.Is(err, paymentdomain.ErrSignatureMismatch) {
		// The rejected attempt is still recorded and echoed for audit.
		c.JSON(http.StatusBadRequest, gin.H{
			"success":  false,
			"verified": false,
			"record":   result.Event,
		})
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, verifyPaymentResponse{
		Success:        true,
		Verified:       result.Verified,
		CreditsApplied: result.CreditsApplied,
		Credits:        result.Balance,
		Message:        result.Message,
		Record:         result.Event,
	})
}
