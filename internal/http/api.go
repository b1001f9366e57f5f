package http

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"energytrack/internal/apperr"
	"energytrack/internal/auth"
	"energytrack/internal/domain"
	"energytrack/internal/obs"
	"energytrack/internal/service"
	"energytrack/internal/timeparse"
)

// Options tunes the transport layer.
type Options struct {
	LoginRatePerSecond float64
	LoginBurst         int
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users    service.UserService
	meters   service.MeterService
	readings service.ReadingService
	reports  service.ReportService
	verifier TokenVerifier
	logger   *logrus.Logger
	limiter  *ipRateLimiter
}

func NewHandler(
	users service.UserService,
	meters service.MeterService,
	readings service.ReadingService,
	reports service.ReportService,
	verifier TokenVerifier,
	logger *logrus.Logger,
	opts Options,
) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		users:    users,
		meters:   meters,
		readings: readings,
		reports:  reports,
		verifier: verifier,
		logger:   logger,
		limiter:  newIPRateLimiter(opts.LoginRatePerSecond, opts.LoginBurst),
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		writeError(c, h.logger, apperr.New(apperr.CodeMethodNotAllowed))
	})

	router.Use(
		requestID(),
		recovery(h.logger),
		requestLogger(h.logger),
		obs.Instrument(),
		corsMiddleware(),
		AuthMiddleware(h.verifier, h.users, h.logger),
	)

	router.GET("/health", func(c *gin.Context) {
		ok(c, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(obs.Handler()))

	authed := RequireAuth(h.logger)
	admin := RequireRole(auth.RoleAdmin, h.logger)
	limited := h.limiter.middleware(h.logger)

	users := router.Group("/sysUser")
	{
		users.POST("/register", limited, h.register)
		users.POST("/login", limited, h.login)
		users.POST("/add", admin, h.addUser)
		users.PUT("/update", admin, h.updateUser)
		users.DELETE("/:id", admin, h.deleteUser)
		users.GET("/search", admin, h.searchUsers)
		users.GET("/findSysUserAll", admin, h.listUsers)
		users.GET("/info", authed, h.userInfo)
		users.POST("/updateInfo", authed, h.updateUserInfo)
		users.POST("/changePassword", authed, h.changePassword)
	}

	meters := router.Group("/meter", authed)
	{
		meters.POST("/add", h.addMeter)
		meters.POST("/delete", h.deleteMeter)
		meters.POST("/update", h.updateMeter)
		meters.GET("/search", h.searchMeters)
		meters.GET("/findAll", h.listMeters)
		meters.GET("/check/:meterId", h.checkMeter)
	}

	readings := router.Group("/meter/reading", authed)
	{
		readings.POST("/add", h.addReading)
		readings.POST("/update", h.updateReading)
		readings.DELETE("/delete/:readingId", h.deleteReading)
		readings.GET("/readings", h.readingSeries)
		readings.GET("/findAll", h.listReadings)
		readings.GET("/maxValue", h.maxReading)
		readings.POST("/archive", admin, h.archiveReadings)
		readings.GET("/archives", admin, h.listArchives)
	}

	reports := router.Group("/electricity-report", authed)
	{
		reports.POST("/add", h.addReport)
		reports.POST("/update", h.updateReport)
		reports.POST("/delete", h.deleteReport)
		reports.GET("/search", h.searchReports)
		reports.GET("/findAllReports", h.listReports)
		reports.GET("/surge-detection", h.detectSurge)
		reports.GET("/consumption", h.consumption)
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	writeError(c, h.logger, err)
}

// bindJSON decodes the body or writes the 4004 envelope.
func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.fail(c, apperr.Wrap(apperr.CodeBodyNotReadable, err))
		return false
	}
	return true
}

func pageRequest(c *gin.Context) (domain.PageRequest, error) {
	page, err := intQuery(c, "page", domain.DefaultPage)
	if err != nil {
		return domain.PageRequest{}, err
	}
	limit, err := intQuery(c, "limit", domain.DefaultLimit)
	if err != nil {
		return domain.PageRequest{}, err
	}
	return domain.PageRequest{Page: page, Limit: limit}.Normalize(), nil
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Newf(apperr.CodeParamType, "参数类型错误: %s", name)
	}
	return v, nil
}

// idValue parses an optional id. Empty input yields zero so the service can
// report its own "missing id" code.
func idValue(raw, name string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.Newf(apperr.CodeParamType, "参数类型错误: %s", name)
	}
	return id, nil
}

func rangeQuery(c *gin.Context) (int64, domain.TimeRange, error) {
	meterID, err := idValue(c.Query("meterId"), "meterId")
	if err != nil {
		return 0, domain.TimeRange{}, err
	}
	if meterID <= 0 {
		return 0, domain.TimeRange{}, apperr.Newf(apperr.CodeInvalidMeterID, "电表ID不能为空")
	}
	rng, err := timeparse.ParseRange(c.Query("startTime"), c.Query("endTime"))
	if err != nil {
		return 0, domain.TimeRange{}, err
	}
	return meterID, rng, nil
}

// optionalTime parses a body time field. Nil and empty strings stay nil.
func optionalTime(raw *string, code apperr.Code) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := timeparse.Parse(*raw)
	if err != nil {
		return nil, apperr.Wrap(code, err)
	}
	return &t, nil
}
