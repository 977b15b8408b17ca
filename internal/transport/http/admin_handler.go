package httptransport

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fjfoyain/reservation-boss/internal/service"
	"github.com/fjfoyain/reservation-boss/internal/storage"
)

// AdminHandler 处理需要管理员令牌的运维端点。
type AdminHandler struct {
	reservations *service.ReservationService
	reports      *service.ReportService
	log          *zap.Logger
}

// NewAdminHandler 创建管理端处理器。
func NewAdminHandler(reservations *service.ReservationService, reports *service.ReportService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{reservations: reservations, reports: reports, log: log}
}

// ListReservations 返回全部预订，最新在前。
func (h *AdminHandler) ListReservations(c *gin.Context) {
	reservations, err := h.reservations.ListAll()
	if err != nil {
		h.log.Error("admin listing failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, MsgListFetchFailed)
		return
	}

	c.JSON(http.StatusOK, reservations)
}

// ClearReservations 删除全部预订。
func (h *AdminHandler) ClearReservations(c *gin.Context) {
	count, err := h.reservations.ClearAll()
	if err != nil {
		h.log.Error("clear reservations failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, MsgClearFailed)
		return
	}

	if count == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "No reservations to delete."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All reservations have been successfully deleted."})
}

// ReleaseReservation 按 ID 释放单个预订。
func (h *AdminHandler) ReleaseReservation(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		fail(c, http.StatusBadRequest, MsgReservationIDMissing)
		return
	}

	if err := h.reservations.Release(id); err != nil {
		if errors.Is(err, storage.ErrReservationNotFound) {
			fail(c, http.StatusNotFound, "Reservation not found.")
			return
		}
		h.log.Error("release failed", zap.String("id", id), zap.Error(err))
		fail(c, http.StatusInternalServerError, MsgReleaseFailed)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Reservation released successfully."})
}

// CleanupReservations 删除可见周之前的历史预订。
func (h *AdminHandler) CleanupReservations(c *gin.Context) {
	count, before, err := h.reservations.PurgeOld()
	if err != nil {
		h.log.Error("cleanup failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, MsgCleanupFailed)
		return
	}

	if count == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "No old reservations found to delete."})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      fmt.Sprintf("Successfully deleted %d old reservations (older than %s).", count, before),
		"deletedCount": count,
	})
}

// WeeklyReport 返回可见周的人员出勤汇总。
func (h *AdminHandler) WeeklyReport(c *gin.Context) {
	report, err := h.reports.Weekly()
	if err != nil {
		h.log.Error("weekly report failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, MsgWeeklyReportFailed)
		return
	}

	c.JSON(http.StatusOK, report)
}

// MonthlyCSV 生成并下载指定月份的出勤 CSV 报表。
func (h *AdminHandler) MonthlyCSV(c *gin.Context) {
	yearStr, monthStr := c.Query("year"), c.Query("month")
	if yearStr == "" || monthStr == "" {
		fail(c, http.StatusBadRequest, MsgYearMonthRequired)
		return
	}

	year, err := strconv.Atoi(yearStr)
	if err != nil {
		fail(c, http.StatusBadRequest, MsgYearMonthRequired)
		return
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		fail(c, http.StatusBadRequest, MsgYearMonthRequired)
		return
	}

	filename, data, err := h.reports.MonthlyCSV(year, time.Month(month))
	if err != nil {
		h.log.Error("monthly report failed",
			zap.Int("year", year),
			zap.Int("month", month),
			zap.Error(err))
		fail(c, http.StatusInternalServerError, MsgMonthlyReportFailed)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "text/csv", data)
}
