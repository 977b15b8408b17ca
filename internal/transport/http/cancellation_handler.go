package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fjfoyain/reservation-boss/internal/service"
)

// CancellationHandler 处理两步取消流程的端点。
type CancellationHandler struct {
	cancellations *service.CancellationService
	log           *zap.Logger
}

// NewCancellationHandler 创建取消流程处理器。
func NewCancellationHandler(cancellations *service.CancellationService, log *zap.Logger) *CancellationHandler {
	return &CancellationHandler{cancellations: cancellations, log: log}
}

type requestCodeRequest struct {
	ReservationID string `json:"reservationId"`
	Email         string `json:"email"`
}

// RequestCode 校验取消资格并发送验证码邮件。
func (h *CancellationHandler) RequestCode(c *gin.Context) {
	var req requestCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, messageFor(service.ErrMissingCancellationFields, MsgRequestCodeFailed))
		return
	}

	if err := h.cancellations.RequestCode(req.ReservationID, req.Email); err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.log.Error("request cancellation code failed",
				zap.String("reservation_id", req.ReservationID),
				zap.Error(err))
		}
		fail(c, status, messageFor(err, MsgRequestCodeFailed))
		return
	}

	c.JSON(http.StatusOK, actionResponse{
		Success: true,
		Message: "Cancellation code sent to your email. It will expire in 10 minutes.",
	})
}

type verifyCancelRequest struct {
	ReservationID string `json:"reservationId"`
	Code          string `json:"code"`
}

// VerifyAndCancel 验证验证码并删除预订。
func (h *CancellationHandler) VerifyAndCancel(c *gin.Context) {
	var req verifyCancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, messageFor(service.ErrMissingVerificationFields, MsgVerifyCancelFailed))
		return
	}

	if err := h.cancellations.VerifyAndCancel(req.ReservationID, req.Code); err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.log.Error("verify and cancel failed",
				zap.String("reservation_id", req.ReservationID),
				zap.Error(err))
		}
		fail(c, status, messageFor(err, MsgVerifyCancelFailed))
		return
	}

	c.JSON(http.StatusOK, actionResponse{
		Success: true,
		Message: "Reservation cancelled successfully",
	})
}
