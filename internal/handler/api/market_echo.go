package api

import (
	"errors"
	"net/http"
	"time"

	models "BTCPulse/internal/domain/models"
	domrepo "BTCPulse/internal/domain/repository"
	"BTCPulse/internal/service/metrics"
	"BTCPulse/internal/usecase"
	xhttp "BTCPulse/pkg/http"
	xlogger "BTCPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// MarketHandler serves the read-only market API over the persisted dataset.
type MarketHandler struct {
	logger *xlogger.Logger
	market *usecase.MarketQueryUseCase
}

func NewMarketHandler(logger *xlogger.Logger, market *usecase.MarketQueryUseCase) *MarketHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	metrics.Register()
	return &MarketHandler{logger: logger, market: market}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/klines", h.Klines)
	g.GET("/predict", h.Predict)
	g.GET("/compare", h.Compare)
	g.GET("/stats", h.Stats)
	g.GET("/analysis", h.Analysis)
	g.GET("/anomalies", h.Anomalies)
	g.GET("/health", h.Health)
}

func (h *MarketHandler) Klines(c echo.Context) error {
	defer observe("klines", time.Now())
	req := &models.KlinesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return h.invalid(c, "klines", verr)
	}

	ex, ok := models.CanonicalExchange(req.Exchange)
	if !ok {
		return h.fail(c, "klines", xhttp.InvalidExchangeError(req.Exchange))
	}
	tf, ok := domrepo.ParseTimeframe(req.Timeframe)
	if !ok {
		return h.fail(c, "klines", xhttp.InvalidParamsErrorf("timeframe", "timeframe must be one of 1D, 1W, 1M, got %q", req.Timeframe))
	}

	p := usecase.KlinesParams{Exchange: ex, Timeframe: tf, Limit: req.Limit}
	if req.Start != "" {
		if p.From, ok = xhttp.ParseTime(req.Start); !ok {
			return h.fail(c, "klines", xhttp.InvalidParamsErrorf("start", "invalid start %q", req.Start))
		}
	}
	if req.End != "" {
		if p.To, ok = xhttp.ParseTime(req.End); !ok {
			return h.fail(c, "klines", xhttp.InvalidParamsErrorf("end", "invalid end %q", req.End))
		}
	}
	if !p.From.IsZero() && !p.To.IsZero() && p.From.After(p.To) {
		return h.fail(c, "klines", xhttp.InvalidParamsError("start", "start must be before end"))
	}

	res, err := h.market.Klines(c.Request().Context(), p)
	if err != nil {
		return h.fail(c, "klines", err)
	}
	if len(res) == 0 {
		return xhttp.WarningResponse(c, []models.DailyCandle{}, "No data in the requested range")
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketHandler) Predict(c echo.Context) error {
	defer observe("predict", time.Now())
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return h.invalid(c, "predict", verr)
	}
	ex, ok := models.CanonicalExchange(req.Exchange)
	if !ok {
		return h.fail(c, "predict", xhttp.InvalidExchangeError(req.Exchange))
	}

	res, err := h.market.Predict(c.Request().Context(), ex)
	if err != nil {
		return h.fail(c, "predict", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketHandler) Compare(c echo.Context) error {
	defer observe("compare", time.Now())
	req := &models.CompareRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return h.invalid(c, "compare", verr)
	}

	var exchanges []string
	for _, name := range xhttp.SplitCSV(req.Exchanges) {
		ex, ok := models.CanonicalExchange(name)
		if !ok {
			return h.fail(c, "compare", xhttp.InvalidExchangeError(name))
		}
		exchanges = append(exchanges, ex)
	}
	if len(exchanges) == 0 {
		return h.fail(c, "compare", xhttp.InvalidParamsError("exchanges", "exchanges is required"))
	}

	res, err := h.market.Compare(c.Request().Context(), exchanges, req.Date)
	if errors.Is(err, models.ErrNoData) {
		err = xhttp.DataNotFoundErrorf("No data for date %q", req.Date).WithError(err)
	}
	if err != nil {
		return h.fail(c, "compare", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketHandler) Stats(c echo.Context) error {
	defer observe("stats", time.Now())
	req := &models.StatsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return h.invalid(c, "stats", verr)
	}
	ex, ok := models.CanonicalExchange(req.Exchange)
	if !ok {
		return h.fail(c, "stats", xhttp.InvalidExchangeError(req.Exchange))
	}
	period, _ := domrepo.ParsePeriod(req.Period)

	res, err := h.market.Stats(c.Request().Context(), ex, period)
	if err != nil {
		return h.fail(c, "stats", err)
	}
	if res.Days == 0 {
		return xhttp.WarningResponse(c, res, "No data in the requested period")
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketHandler) Analysis(c echo.Context) error {
	defer observe("analysis", time.Now())
	res, err := h.market.Analysis(c.Request().Context())
	if err != nil {
		return h.fail(c, "analysis", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketHandler) Anomalies(c echo.Context) error {
	defer observe("anomalies", time.Now())
	res, err := h.market.Anomalies(c.Request().Context())
	if err != nil {
		return h.fail(c, "anomalies", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *MarketHandler) invalid(c echo.Context, endpoint string, verr []xhttp.ValidationError) error {
	metrics.APIErrors.WithLabelValues(endpoint, xhttp.CodeInvalidParams).Inc()
	return xhttp.ValidationErrorResponse(c, verr)
}

// fail maps domain errors onto API error codes and writes the envelope.
func (h *MarketHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := toAppError(err)
	metrics.APIErrors.WithLabelValues(endpoint, appErr.Code).Inc()
	if appErr.Code == xhttp.CodeServerError || appErr.Code == xhttp.CodeInvalidData {
		h.logger.Error(endpoint+" usecase error", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, models.ErrPersistenceMissing):
		return xhttp.DataFileNotFoundError().WithError(err)
	case errors.Is(err, models.ErrNoData):
		return xhttp.InvalidDataError("Dataset is empty").WithError(err)
	case errors.Is(err, models.ErrModelNotTrained):
		return xhttp.ModelNotTrainedError().WithError(err)
	case errors.Is(err, models.ErrInvalidExchange):
		return xhttp.NewAppError(xhttp.CodeInvalidExchange, "exchange", err.Error(), http.StatusBadRequest)
	default:
		return xhttp.InternalError("Internal server error").WithError(err)
	}
}

func observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
