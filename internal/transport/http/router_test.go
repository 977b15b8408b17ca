package httptransport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fjfoyain/reservation-boss/internal/auth/jwt"
	"github.com/fjfoyain/reservation-boss/internal/cache"
	"github.com/fjfoyain/reservation-boss/internal/config"
	"github.com/fjfoyain/reservation-boss/internal/domain"
	"github.com/fjfoyain/reservation-boss/internal/middleware"
	"github.com/fjfoyain/reservation-boss/internal/service"
	"github.com/fjfoyain/reservation-boss/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubSender 测试用邮件发送器，记录调用但不真正发送。
type stubSender struct {
	confirmations []string
	codes         []string
}

func (s *stubSender) SendReservationConfirmation(email, spot, date string) error {
	s.confirmations = append(s.confirmations, email)
	return nil
}

func (s *stubSender) SendCancellationCode(email, code, spot, date string) error {
	s.codes = append(s.codes, email)
	return nil
}

type testEnv struct {
	router     *gin.Engine
	store      *memory.Store
	sender     *stubSender
	week       domain.WeekWindow
	adminToken string
	userToken  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Reservation: config.ReservationConfig{
			Spots:            []string{"Parqueadero 57", "Parqueadero 61", "Parqueadero 343"},
			AllowedDomain:    "@northhighland.com",
			MaxPerWeek:       3,
			CutoverHour:      19,
			CancelCutoffHour: 8,
		},
		Cancellation: config.CancellationConfig{CodeTTL: 10 * time.Minute, MaxAttempts: 5},
		Cache:        config.CacheConfig{TTL: time.Minute},
		CORS:         config.CORSConfig{AllowedOrigins: []string{"*"}},
	}

	log := zap.NewNop()
	store := memory.NewStore()
	sender := &stubSender{}
	local := cache.NewLocalCache(time.Minute)

	jwtManager := jwt.NewManager("0123456789abcdef0123456789abcdef", "reservation-boss", time.Hour)
	adminToken, err := jwtManager.GenerateToken("admin@northhighland.com", jwt.RoleAdmin)
	require.NoError(t, err)
	userToken, err := jwtManager.GenerateToken("user@northhighland.com", "user")
	require.NoError(t, err)

	router := NewRouter(RouterDependencies{
		Config:              cfg,
		ReservationService:  service.NewReservationService(store, local, sender, nil, cfg, log),
		CancellationService: service.NewCancellationService(store, local, sender, nil, cfg, log),
		ReportService:       service.NewReportService(store, cfg, log),
		AdminAuth:           middleware.NewAdminAuth(jwtManager, log),
		Logger:              log,
	})

	return &testEnv{
		router:     router,
		store:      store,
		sender:     sender,
		week:       domain.VisibleWeek(time.Now().UTC(), time.UTC, 19),
		adminToken: adminToken,
		userToken:  userToken,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// seed 直接向存储写入一条预订，绕过业务校验。
func (e *testEnv) seed(t *testing.T, id, email, date, spot string) {
	t.Helper()
	r := &domain.Reservation{ID: id, Email: email, Date: date, Spot: spot, CreatedAt: time.Now().UTC()}
	week := domain.WeekWindow{Start: date, End: date, Dates: []string{date}}
	require.NoError(t, e.store.CreateReservation(r, week, 99))
}

func TestReserveEndpoint(t *testing.T) {
	t.Run("创建成功", func(t *testing.T) {
		env := newTestEnv(t)
		date := env.week.Dates[0]

		w := env.do(t, http.MethodPost, "/reserve", "", gin.H{
			"email": "Alice@NorthHighland.com",
			"date":  date,
			"spot":  "Parqueadero 57",
		})

		require.Equal(t, http.StatusCreated, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, fmt.Sprintf("Reservation successful for Parqueadero 57 on %s", date), body["message"])

		details, ok := body["reservationDetails"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "alice@northhighland.com", details["email"])
		assert.Equal(t, date, details["date"])
		assert.Equal(t, "Parqueadero 57", details["spot"])

		assert.Equal(t, []string{"alice@northhighland.com"}, env.sender.confirmations)
	})

	t.Run("缺少必填字段", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(t, http.MethodPost, "/reserve", "", gin.H{"email": "a@northhighland.com"})

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Email, date, and parking spot are required", decodeBody(t, w)["error"])
	})

	t.Run("域名不允许", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(t, http.MethodPost, "/reserve", "", gin.H{
			"email": "a@gmail.com",
			"date":  env.week.Dates[0],
			"spot":  "Parqueadero 57",
		})

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Only North Highland Email accepted.", decodeBody(t, w)["error"])
	})

	t.Run("日期不在可见周内", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(t, http.MethodPost, "/reserve", "", gin.H{
			"email": "a@northhighland.com",
			"date":  "2020-01-06",
			"spot":  "Parqueadero 57",
		})

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "You can only reserve dates within the visible week.", decodeBody(t, w)["error"])
	})

	t.Run("无效车位", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(t, http.MethodPost, "/reserve", "", gin.H{
			"email": "a@northhighland.com",
			"date":  env.week.Dates[0],
			"spot":  "Parqueadero 999",
		})

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid parking spot selected.", decodeBody(t, w)["error"])
	})

	t.Run("同一天重复预订", func(t *testing.T) {
		env := newTestEnv(t)
		date := env.week.Dates[0]

		first := env.do(t, http.MethodPost, "/reserve", "", gin.H{
			"email": "a@northhighland.com", "date": date, "spot": "Parqueadero 57",
		})
		require.Equal(t, http.StatusCreated, first.Code)

		second := env.do(t, http.MethodPost, "/reserve", "", gin.H{
			"email": "a@northhighland.com", "date": date, "spot": "Parqueadero 61",
		})
		require.Equal(t, http.StatusBadRequest, second.Code)
		assert.Equal(t, "You can only reserve one parking spot per day.", decodeBody(t, second)["error"])
	})

	t.Run("车位已被占用", func(t *testing.T) {
		env := newTestEnv(t)
		date := env.week.Dates[0]

		first := env.do(t, http.MethodPost, "/reserve", "", gin.H{
			"email": "a@northhighland.com", "date": date, "spot": "Parqueadero 57",
		})
		require.Equal(t, http.StatusCreated, first.Code)

		second := env.do(t, http.MethodPost, "/reserve", "", gin.H{
			"email": "b@northhighland.com", "date": date, "spot": "Parqueadero 57",
		})
		require.Equal(t, http.StatusBadRequest, second.Code)
		assert.Equal(t, "Parking spot Parqueadero 57 is already reserved for this date.", decodeBody(t, second)["error"])
	})

	t.Run("超出周限额", func(t *testing.T) {
		env := newTestEnv(t)

		for i := 0; i < 3; i++ {
			w := env.do(t, http.MethodPost, "/reserve", "", gin.H{
				"email": "a@northhighland.com", "date": env.week.Dates[i], "spot": "Parqueadero 57",
			})
			require.Equal(t, http.StatusCreated, w.Code)
		}

		w := env.do(t, http.MethodPost, "/reserve", "", gin.H{
			"email": "a@northhighland.com", "date": env.week.Dates[3], "spot": "Parqueadero 57",
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "You can only make 3 reservations per week. You currently have 3 reservations.", decodeBody(t, w)["error"])
	})
}

func TestPublicEndpoints(t *testing.T) {
	t.Run("配置端点", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(t, http.MethodGet, "/config", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		spots, ok := body["parkingSpots"].([]interface{})
		require.True(t, ok)
		assert.Len(t, spots, 3)

		dates, ok := body["visibleWeekDates"].([]interface{})
		require.True(t, ok)
		require.Len(t, dates, 5)
		first := dates[0].(map[string]interface{})
		assert.Equal(t, env.week.Dates[0], first["date"])
		assert.Equal(t, "Monday", first["day"])
	})

	t.Run("周预订列表", func(t *testing.T) {
		env := newTestEnv(t)
		created := env.do(t, http.MethodPost, "/reserve", "", gin.H{
			"email": "a@northhighland.com", "date": env.week.Dates[0], "spot": "Parqueadero 57",
		})
		require.Equal(t, http.StatusCreated, created.Code)

		w := env.do(t, http.MethodGet, "/reservations/week", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var list []map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
		require.Len(t, list, 1)
		assert.Equal(t, "a@northhighland.com", list[0]["email"])
		assert.NotEmpty(t, list[0]["id"])
	})

	t.Run("周汇总", func(t *testing.T) {
		env := newTestEnv(t)
		created := env.do(t, http.MethodPost, "/reserve", "", gin.H{
			"email": "a@northhighland.com", "date": env.week.Dates[0], "spot": "Parqueadero 57",
		})
		require.Equal(t, http.StatusCreated, created.Code)

		w := env.do(t, http.MethodGet, "/summary/week", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		// 汇总表就是响应体本身，日期为顶层键
		summary := decodeBody(t, w)
		require.Len(t, summary, 5)

		day := summary[env.week.Dates[0]].(map[string]interface{})
		assert.Equal(t, "a@northhighland.com", day["Parqueadero 57"])
		assert.Nil(t, day["Parqueadero 61"])
	})

	t.Run("健康检查", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(t, http.MethodGet, "/health", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, "OK", body["status"])
		assert.Equal(t, "Reservation Boss API", body["service"])
		assert.NotEmpty(t, body["timestamp"])
	})
}

func TestCancellationEndpoints(t *testing.T) {
	futureDate := time.Now().UTC().AddDate(0, 0, 7).Format(domain.DateLayout)

	t.Run("缺少必填字段", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(t, http.MethodPost, "/cancellation/request-code", "", gin.H{"email": "a@northhighland.com"})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Reservation ID and email are required", decodeBody(t, w)["error"])

		w = env.do(t, http.MethodPost, "/cancellation/verify-and-cancel", "", gin.H{"reservationId": "res-1"})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Reservation ID and code are required", decodeBody(t, w)["error"])
	})

	t.Run("预订不存在", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(t, http.MethodPost, "/cancellation/request-code", "", gin.H{
			"reservationId": "missing", "email": "a@northhighland.com",
		})
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Reservation not found", decodeBody(t, w)["error"])
	})

	t.Run("完整取消流程", func(t *testing.T) {
		env := newTestEnv(t)
		env.seed(t, "res-1", "a@northhighland.com", futureDate, "Parqueadero 57")

		w := env.do(t, http.MethodPost, "/cancellation/request-code", "", gin.H{
			"reservationId": "res-1", "email": "a@northhighland.com",
		})
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "Cancellation code sent to your email. It will expire in 10 minutes.", body["message"])
		assert.Equal(t, []string{"a@northhighland.com"}, env.sender.codes)

		code, err := env.store.GetCancellationCode("res-1")
		require.NoError(t, err)

		wrong := env.do(t, http.MethodPost, "/cancellation/verify-and-cancel", "", gin.H{
			"reservationId": "res-1", "code": "000000",
		})
		require.Equal(t, http.StatusForbidden, wrong.Code)
		assert.Equal(t, "Invalid cancellation code", decodeBody(t, wrong)["error"])

		ok := env.do(t, http.MethodPost, "/cancellation/verify-and-cancel", "", gin.H{
			"reservationId": "res-1", "code": code.Code,
		})
		require.Equal(t, http.StatusOK, ok.Code)
		body = decodeBody(t, ok)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "Reservation cancelled successfully", body["message"])

		_, err = env.store.GetReservation("res-1")
		assert.Error(t, err)
	})

	t.Run("邮箱不匹配", func(t *testing.T) {
		env := newTestEnv(t)
		env.seed(t, "res-1", "a@northhighland.com", futureDate, "Parqueadero 57")

		w := env.do(t, http.MethodPost, "/cancellation/request-code", "", gin.H{
			"reservationId": "res-1", "email": "b@northhighland.com",
		})
		require.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "Email does not match reservation", decodeBody(t, w)["error"])
	})

	t.Run("过去日期不可取消", func(t *testing.T) {
		env := newTestEnv(t)
		env.seed(t, "res-1", "a@northhighland.com", "2020-01-06", "Parqueadero 57")

		w := env.do(t, http.MethodPost, "/cancellation/request-code", "", gin.H{
			"reservationId": "res-1", "email": "a@northhighland.com",
		})
		require.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "Cancellation not allowed. You can only cancel future reservations or before 8:00 AM on the reservation day.", decodeBody(t, w)["error"])
	})
}

func TestAdminEndpoints(t *testing.T) {
	t.Run("缺少令牌", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(t, http.MethodGet, "/reservations", "", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("角色不足", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(t, http.MethodGet, "/reservations", env.userToken, nil)
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("预订列表", func(t *testing.T) {
		env := newTestEnv(t)
		env.seed(t, "res-1", "a@northhighland.com", env.week.Dates[0], "Parqueadero 57")

		w := env.do(t, http.MethodGet, "/reservations", env.adminToken, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var list []map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
		require.Len(t, list, 1)
		assert.Equal(t, "res-1", list[0]["id"])
	})

	t.Run("释放预订", func(t *testing.T) {
		env := newTestEnv(t)

		missing := env.do(t, http.MethodDelete, "/release/unknown", env.adminToken, nil)
		require.Equal(t, http.StatusNotFound, missing.Code)
		assert.Equal(t, "Reservation not found.", decodeBody(t, missing)["error"])

		env.seed(t, "res-1", "a@northhighland.com", env.week.Dates[0], "Parqueadero 57")
		released := env.do(t, http.MethodDelete, "/release/res-1", env.adminToken, nil)
		require.Equal(t, http.StatusOK, released.Code)
		assert.Equal(t, "Reservation released successfully.", decodeBody(t, released)["message"])
	})

	t.Run("清空预订", func(t *testing.T) {
		env := newTestEnv(t)

		empty := env.do(t, http.MethodDelete, "/clear-reservations", env.adminToken, nil)
		require.Equal(t, http.StatusOK, empty.Code)
		assert.Equal(t, "No reservations to delete.", decodeBody(t, empty)["message"])

		env.seed(t, "res-1", "a@northhighland.com", env.week.Dates[0], "Parqueadero 57")
		cleared := env.do(t, http.MethodDelete, "/clear-reservations", env.adminToken, nil)
		require.Equal(t, http.StatusOK, cleared.Code)
		assert.Equal(t, "All reservations have been successfully deleted.", decodeBody(t, cleared)["message"])
	})

	t.Run("清理历史预订", func(t *testing.T) {
		env := newTestEnv(t)

		empty := env.do(t, http.MethodDelete, "/delete-old-reservations", env.adminToken, nil)
		require.Equal(t, http.StatusOK, empty.Code)
		assert.Equal(t, "No old reservations found to delete.", decodeBody(t, empty)["message"])

		env.seed(t, "res-old", "a@northhighland.com", "2020-01-06", "Parqueadero 57")
		cleaned := env.do(t, http.MethodDelete, "/delete-old-reservations", env.adminToken, nil)
		require.Equal(t, http.StatusOK, cleaned.Code)
		body := decodeBody(t, cleaned)
		assert.Equal(t, float64(1), body["deletedCount"])
		assert.Contains(t, body["message"], "Successfully deleted 1 old reservations")
	})

	t.Run("周报表", func(t *testing.T) {
		env := newTestEnv(t)
		env.seed(t, "res-1", "a@northhighland.com", env.week.Dates[0], "Parqueadero 57")

		w := env.do(t, http.MethodGet, "/reports/weekly", env.adminToken, nil)
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, env.week.Start, body["weekStart"])
		report, ok := body["report"].([]interface{})
		require.True(t, ok)
		require.Len(t, report, 1)
	})

	t.Run("月度CSV", func(t *testing.T) {
		env := newTestEnv(t)

		missing := env.do(t, http.MethodGet, "/reports/monthly-csv", env.adminToken, nil)
		require.Equal(t, http.StatusBadRequest, missing.Code)
		assert.Equal(t, "Year and month are required", decodeBody(t, missing)["error"])

		env.seed(t, "res-1", "a@northhighland.com", "2026-01-05", "Parqueadero 57")
		w := env.do(t, http.MethodGet, "/reports/monthly-csv?year=2026&month=1", env.adminToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
		assert.Contains(t, w.Header().Get("Content-Disposition"), "parking-report-January-2026.csv")
		assert.Contains(t, w.Body.String(), "Email,Week 1 Days")
	})
}
