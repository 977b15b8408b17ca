package httptransport

import (
	"net/http"

	"github.com/fjfoyain/reservation-boss/internal/domain"
	"github.com/fjfoyain/reservation-boss/internal/service"
	"github.com/fjfoyain/reservation-boss/internal/storage"
)

// 错误消息映射表（业务错误 -> 对外消息）
var errorMessages = map[error]string{
	// 预订校验错误
	service.ErrMissingReservationFields: "Email, date, and parking spot are required",
	domain.ErrEmailRequired:             "Email is required",
	domain.ErrEmailDomain:               "Only North Highland Email accepted.",
	domain.ErrInvalidEmail:              "Invalid email format",
	domain.ErrDateRequired:              "Email, date, and parking spot are required",
	domain.ErrInvalidDate:               "Invalid date format. Use YYYY-MM-DD.",
	domain.ErrDateOutsideWeek:           "You can only reserve dates within the visible week.",
	domain.ErrSpotRequired:              "Email, date, and parking spot are required",
	domain.ErrInvalidSpot:               "Invalid parking spot selected.",

	// 预订冲突错误
	storage.ErrDuplicateDayBooking: "You can only reserve one parking spot per day.",
	storage.ErrReservationNotFound: "Reservation not found",

	// 取消流程错误
	service.ErrMissingCancellationFields: "Reservation ID and email are required",
	service.ErrMissingVerificationFields: "Reservation ID and code are required",
	service.ErrEmailMismatch:             "Email does not match reservation",
	service.ErrCancellationWindowClosed:  "Cancellation not allowed. You can only cancel future reservations or before 8:00 AM on the reservation day.",
	service.ErrInvalidOrExpiredRequest:   "Invalid or expired cancellation request",
	service.ErrCodeExpired:               "Cancellation code has expired. Please request a new one.",
	service.ErrInvalidCode:               "Invalid cancellation code",
	service.ErrTooManyAttempts:           "Too many attempts. Please request a new code.",
}

// 错误状态码映射表（业务错误 -> HTTP 状态码），缺省为 500
var errorStatus = map[error]int{
	service.ErrMissingReservationFields: http.StatusBadRequest,
	domain.ErrEmailRequired:             http.StatusBadRequest,
	domain.ErrEmailDomain:               http.StatusBadRequest,
	domain.ErrInvalidEmail:              http.StatusBadRequest,
	domain.ErrDateRequired:              http.StatusBadRequest,
	domain.ErrInvalidDate:               http.StatusBadRequest,
	domain.ErrDateOutsideWeek:           http.StatusBadRequest,
	domain.ErrSpotRequired:              http.StatusBadRequest,
	domain.ErrInvalidSpot:               http.StatusBadRequest,
	storage.ErrDuplicateDayBooking:      http.StatusBadRequest,
	storage.ErrSpotTaken:                http.StatusBadRequest,
	storage.ErrReservationNotFound:      http.StatusNotFound,

	service.ErrMissingCancellationFields: http.StatusBadRequest,
	service.ErrMissingVerificationFields: http.StatusBadRequest,
	service.ErrEmailMismatch:             http.StatusForbidden,
	service.ErrCancellationWindowClosed:  http.StatusForbidden,
	service.ErrInvalidOrExpiredRequest:   http.StatusNotFound,
	service.ErrCodeExpired:               http.StatusForbidden,
	service.ErrInvalidCode:               http.StatusForbidden,
	service.ErrTooManyAttempts:           http.StatusTooManyRequests,
}

// statusFor 返回业务错误对应的 HTTP 状态码。
func statusFor(err error) int {
	if status, ok := errorStatus[err]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// messageFor 返回业务错误对应的对外消息，未登记的错误使用端点兜底消息。
func messageFor(err error, fallback string) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return fallback
}

// 端点级兜底消息（内部错误不向外透出细节）
const (
	MsgReserveFailed        = "Failed to create reservation"
	MsgWeekFetchFailed      = "Failed to fetch weekly reservations"
	MsgSummaryFetchFailed   = "Failed to fetch weekly summary"
	MsgConfigFetchFailed    = "Failed to fetch configuration"
	MsgListFetchFailed      = "Failed to fetch reservations"
	MsgClearFailed          = "Failed to clear reservations"
	MsgReleaseFailed        = "Failed to release reservation."
	MsgCleanupFailed        = "Failed to delete old reservations."
	MsgWeeklyReportFailed   = "Failed to fetch weekly report"
	MsgMonthlyReportFailed  = "Failed to generate monthly report"
	MsgRequestCodeFailed    = "Failed to request cancellation code"
	MsgVerifyCancelFailed   = "Failed to cancel reservation"
	MsgYearMonthRequired    = "Year and month are required"
	MsgReservationIDMissing = "Reservation ID is required"
)
