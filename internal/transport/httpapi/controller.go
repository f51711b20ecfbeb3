package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papertrade/brokersim/internal/model"
	"github.com/papertrade/brokersim/internal/service"
	"github.com/papertrade/brokersim/internal/trade"
	customMW "github.com/papertrade/brokersim/internal/transport/httpapi/middleware"
	"github.com/papertrade/brokersim/utils"
)

type BrokerService interface {
	ExecuteTrade(ctx context.Context, req model.TradeRequest) (model.TradeResult, error)
	GetDashboard(ctx context.Context) (model.Dashboard, error)
}

type ReportGenerator interface {
	Generate(ctx context.Context, dashboard model.Dashboard) (fileBytes []byte, fileExtension string, err error)
}

type Controller struct {
	brokerService   BrokerService
	reportGenerator ReportGenerator
}

func NewController(brokerService BrokerService, reportGenerator ReportGenerator) *Controller {
	return &Controller{
		brokerService:   brokerService,
		reportGenerator: reportGenerator,
	}
}

func (ctrl *Controller) InitRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", ctrl.Health)
	mux.HandleFunc("POST /api/trade", ctrl.Trade)
	mux.HandleFunc("GET /api/portfolio", ctrl.Dashboard)
	mux.HandleFunc("GET /api/portfolio/export", ctrl.ExportDashboard)

	return customMW.Logger(customMW.Recover(mux))
}

type tradeBody struct {
	Action   string      `json:"action"`
	Ticker   string      `json:"ticker"`
	Quantity json.Number `json:"quantity"`
}

type tradeResponse struct {
	Message   string               `json:"message"`
	Cash      decimal.Decimal      `json:"cash"`
	Positions []model.PositionView `json:"positions"`
}

type dashboardResponse struct {
	Cash             decimal.Decimal      `json:"cash"`
	TotalMarketValue decimal.Decimal      `json:"totalMarketValue"`
	TotalEquity      decimal.Decimal      `json:"totalEquity"`
	Positions        []model.PositionView `json:"positions"`
	Warning          string               `json:"warning,omitempty"`
}

type errorResponse struct {
	Message string `json:"message"`
}

func (ctrl *Controller) Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (ctrl *Controller) Trade(w http.ResponseWriter, r *http.Request) {
	req, err := parseTradeBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := ctrl.brokerService.ExecuteTrade(r.Context(), req)
	if err != nil {
		status, msg := rejectionStatus(r.Context(), err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, tradeResponse{
		Message:   result.Message,
		Cash:      result.Cash,
		Positions: result.Positions,
	})
}

func (ctrl *Controller) Dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := ctrl.brokerService.GetDashboard(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, dashboardToResponse(dashboard))
}

func (ctrl *Controller) ExportDashboard(w http.ResponseWriter, r *http.Request) {
	rqID := utils.GetRequestIDFromCtx(r.Context())

	dashboard, err := ctrl.brokerService.GetDashboard(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	fileBytes, fileExtension, err := ctrl.reportGenerator.Generate(r.Context(), dashboard)
	if err != nil {
		slog.Error("got error from reportGenerator.Generate", slog.String("rqID", rqID), slog.String("err", err.Error()))
		writeError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	filename := fmt.Sprintf("portfolio_%s%s", time.Now().Format("2006-01-02"), fileExtension)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(fileBytes)
}

func parseTradeBody(r *http.Request) (model.TradeRequest, error) {
	body := tradeBody{}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return model.TradeRequest{}, errors.New("invalid JSON body")
	}

	action, err := model.ParseAction(body.Action)
	if err != nil {
		return model.TradeRequest{}, err
	}

	quantity, err := decimal.NewFromString(body.Quantity.String())
	if err != nil {
		return model.TradeRequest{}, fmt.Errorf("invalid quantity %q", body.Quantity.String())
	}

	return model.TradeRequest{
		Action:   action,
		Ticker:   body.Ticker,
		Quantity: quantity,
	}, nil
}

// rejectionStatus maps trade rejections to 422 with the reason; anything else
// is an internal failure hidden behind a generic message.
func rejectionStatus(ctx context.Context, err error) (int, string) {
	switch {
	case errors.Is(err, trade.ErrEmptyTicker),
		errors.Is(err, trade.ErrInvalidQuantity),
		errors.Is(err, trade.ErrInvalidPrice),
		errors.Is(err, trade.ErrUnknownAction),
		errors.Is(err, trade.ErrInsufficientFunds),
		errors.Is(err, trade.ErrInsufficientShares),
		errors.Is(err, service.ErrPriceUnavailable):
		return http.StatusUnprocessableEntity, err.Error()
	}

	slog.Error("trade failed", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
	return http.StatusInternalServerError, "something went wrong"
}

func dashboardToResponse(dashboard model.Dashboard) dashboardResponse {
	resp := dashboardResponse{
		Cash:             dashboard.Cash,
		TotalMarketValue: dashboard.TotalMarketValue,
		TotalEquity:      dashboard.TotalEquity,
		Positions:        dashboard.Positions,
	}

	if len(dashboard.Unresolved) > 0 {
		resp.Warning = fmt.Sprintf("no fresh quotes for: %s", strings.Join(dashboard.Unresolved, ", "))
	}

	return resp
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("can't encode response", slog.String("err", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, errorResponse{Message: "ERROR: " + reason})
}
