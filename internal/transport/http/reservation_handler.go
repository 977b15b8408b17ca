package httptransport

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fjfoyain/reservation-boss/internal/service"
	"github.com/fjfoyain/reservation-boss/internal/storage"
)

// ReservationHandler 处理车位预订相关的公开端点。
type ReservationHandler struct {
	reservations *service.ReservationService
	log          *zap.Logger
}

// NewReservationHandler 创建预订处理器。
func NewReservationHandler(reservations *service.ReservationService, log *zap.Logger) *ReservationHandler {
	return &ReservationHandler{reservations: reservations, log: log}
}

type reserveRequest struct {
	Email string `json:"email"`
	Date  string `json:"date"`
	Spot  string `json:"spot"`
}

type reservationDetails struct {
	Email string `json:"email"`
	Date  string `json:"date"`
	Spot  string `json:"spot"`
}

type reserveResponse struct {
	Message            string             `json:"message"`
	ReservationDetails reservationDetails `json:"reservationDetails"`
}

// Reserve 创建预订。
func (h *ReservationHandler) Reserve(c *gin.Context) {
	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, messageFor(service.ErrMissingReservationFields, MsgReserveFailed))
		return
	}

	reservation, err := h.reservations.Reserve(service.ReserveInput{
		Email: req.Email,
		Date:  req.Date,
		Spot:  req.Spot,
	})
	if err != nil {
		var limitErr *storage.WeeklyLimitError
		switch {
		case errors.Is(err, storage.ErrSpotTaken):
			fail(c, http.StatusBadRequest, fmt.Sprintf("Parking spot %s is already reserved for this date.", req.Spot))
		case errors.As(err, &limitErr):
			fail(c, http.StatusBadRequest, fmt.Sprintf("You can only make %d reservations per week. You currently have %d reservations.", limitErr.Limit, limitErr.Count))
		default:
			status := statusFor(err)
			if status == http.StatusInternalServerError {
				h.log.Error("reserve failed", zap.Error(err))
			}
			fail(c, status, messageFor(err, MsgReserveFailed))
		}
		return
	}

	c.JSON(http.StatusCreated, reserveResponse{
		Message: fmt.Sprintf("Reservation successful for %s on %s", reservation.Spot, reservation.Date),
		ReservationDetails: reservationDetails{
			Email: reservation.Email,
			Date:  reservation.Date,
			Spot:  reservation.Spot,
		},
	})
}

// Week 返回指定范围（缺省为可见周）的预订列表。
func (h *ReservationHandler) Week(c *gin.Context) {
	reservations, err := h.reservations.WeekReservations(c.Query("start"), c.Query("end"))
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.log.Error("week listing failed", zap.Error(err))
		}
		fail(c, status, messageFor(err, MsgWeekFetchFailed))
		return
	}

	c.JSON(http.StatusOK, reservations)
}

// Summary 返回 日期 -> 车位 -> 邮箱 的周占用汇总。
func (h *ReservationHandler) Summary(c *gin.Context) {
	summary, err := h.reservations.WeekSummary(c.Query("start"), c.Query("end"))
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.log.Error("summary failed", zap.Error(err))
		}
		fail(c, status, messageFor(err, MsgSummaryFetchFailed))
		return
	}

	c.JSON(http.StatusOK, summary)
}

type configResponse struct {
	ParkingSpots     []string          `json:"parkingSpots"`
	VisibleWeekDates []visibleWeekDate `json:"visibleWeekDates"`
}

type visibleWeekDate struct {
	Date string `json:"date"`
	Day  string `json:"day"`
}

// Config 返回前端所需的车位列表与可见周日期。
func (h *ReservationHandler) Config(c *gin.Context) {
	dates := h.reservations.VisibleDates()
	out := make([]visibleWeekDate, 0, len(dates))
	for _, d := range dates {
		out = append(out, visibleWeekDate{Date: d.Date, Day: d.Day})
	}

	c.JSON(http.StatusOK, configResponse{
		ParkingSpots:     h.reservations.Spots(),
		VisibleWeekDates: out,
	})
}

// Health 简单存活探针。
func (h *ReservationHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"service":   "Reservation Boss API",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
