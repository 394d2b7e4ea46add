package server

import (
	"net/http"

	signupdomain "github.com/amourlabs/amour/internal/signup/domain"
	"github.com/gin-gonic/gin"
)

type signupRequest struct {
	Username     string `json:"username"`
	Phone        string `json:"phone"`
	ReferralCode string `json:"referralCode"`
}

type signupResponse struct {
	Success  bool   `json:"success"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Credits  int64  `json:"credits"`
}

func (s *Server) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.signupSvc.Signup(c.Request.Context(), signupdomain.Request{
		Username:     req.Username,
		Phone:        req.Phone,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, signupResponse{
		Success:  true,
		UserID:   result.Account.ID.String(),
		Username: result.Account.Username,
		Credits:  result.Account.Credits,
	})
}
