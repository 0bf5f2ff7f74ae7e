package api

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/GabrielWalak/delivery-prediction/internal/domain/models"
	"github.com/GabrielWalak/delivery-prediction/internal/usecase"
	xhttp "github.com/GabrielWalak/delivery-prediction/pkg/http"
	xlogger "github.com/GabrielWalak/delivery-prediction/pkg/logger"
)

const (
	ServiceName    = "Delivery Time Estimation API"
	ServiceVersion = "1.0.0"

	warmingUpMessage = "Prediction engine is still warming up"
)

// DeliveryEstimator is the engine surface the handler needs.
type DeliveryEstimator interface {
	Init() models.InitResult
	Health() (*models.HealthResponse, error)
	Estimate(ctx context.Context, req models.DeliveryEstimateRequest) (*models.PredictionResponse, error)
}

// DeliveryEchoHandler serves the estimation API.
type DeliveryEchoHandler struct {
	logger *xlogger.Logger
	engine DeliveryEstimator
}

func NewDeliveryEchoHandler(logger *xlogger.Logger, engine DeliveryEstimator) *DeliveryEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &DeliveryEchoHandler{logger: logger, engine: engine}
}

func (h *DeliveryEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Root)
	e.GET("/health", h.Health)
	e.POST("/predict", h.Predict)
}

// Root godoc
// @Summary      Service metadata
// @Tags         meta
// @Produce      json
// @Success      200  {object}  models.ServiceInfo
// @Router       / [get]
func (h *DeliveryEchoHandler) Root(c echo.Context) error {
	return xhttp.SuccessResponse(c, models.ServiceInfo{
		Service: ServiceName,
		Version: ServiceVersion,
		Status:  "operational",
		Endpoints: map[string]string{
			"health":  "/health",
			"docs":    "/docs",
			"predict": "/predict (POST)",
			"openapi": "/openapi.json",
			"metrics": "/metrics",
		},
	})
}

// Health godoc
// @Summary      Readiness of the prediction engine
// @Tags         meta
// @Produce      json
// @Success      200  {object}  models.HealthResponse
// @Failure      503  {object}  xhttp.APIResponse503Err
// @Router       /health [get]
func (h *DeliveryEchoHandler) Health(c echo.Context) error {
	res, err := h.engine.Health()
	if err != nil {
		return h.notReady(c)
	}
	return xhttp.SuccessResponse(c, res)
}

// Predict godoc
// @Summary      Estimate delivery time in days
// @Description  Every field is required and unknown fields are rejected. Warnings flag unusual but valid inputs.
// @Tags         prediction
// @Accept       json
// @Produce      json
// @Param        request  body      models.DeliveryEstimateRequest  true  "Order features"
// @Success      200      {object}  models.PredictionResponse
// @Failure      400      {object}  xhttp.APIResponse400Err
// @Failure      422      {object}  xhttp.APIResponse422Err
// @Failure      503      {object}  xhttp.APIResponse503Err
// @Router       /predict [post]
func (h *DeliveryEchoHandler) Predict(c echo.Context) error {
	// Readiness is checked before the body is looked at.
	if !h.engine.Init().Ready {
		return h.notReady(c)
	}

	req := &models.DeliveryEstimateRequest{}
	if verrs := xhttp.ReadAndValidateStrict(c, req); verrs != nil {
		return xhttp.UnprocessableResponse(c, verrs)
	}

	res, err := h.engine.Estimate(c.Request().Context(), *req)
	if err != nil {
		var mf *usecase.MissingFeatureError
		switch {
		case errors.Is(err, usecase.ErrNotReady):
			return h.notReady(c)
		case errors.As(err, &mf):
			h.logger.Error("model expects a feature the request schema lacks",
				xlogger.String("feature", mf.Feature))
			return xhttp.AppErrorResponse(c,
				xhttp.BadRequestError("ERR_MISSING_FEATURE", mf.Feature, err.Error()).WithError(err))
		default:
			h.logger.Error("predict usecase error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DeliveryEchoHandler) notReady(c echo.Context) error {
	appErr := xhttp.ServiceUnavailableError("ERR_NOT_READY", warmingUpMessage)
	if reason := h.engine.Init().Reason(); reason != "" {
		appErr = appErr.WithParam("reason", reason)
	}
	return xhttp.AppErrorResponse(c, appErr)
}
