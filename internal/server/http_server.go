package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/JsonMa/erp/internal/apperrors"
	"github.com/JsonMa/erp/internal/model"
	"github.com/JsonMa/erp/internal/repository"
	"github.com/JsonMa/erp/internal/service"
	"github.com/JsonMa/erp/pkg/wechat"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// apiResponse 统一 API 响应
type apiResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// orderResponse 订单响应结构（自定义 JSON 输出）
type orderResponse struct {
	ID          string `json:"id"`
	UserID      int64  `json:"user_id"`
	CommodityID string `json:"commodity_id"`
	Status      int16  `json:"status"`
	StatusText  string `json:"status_text"`
	RealPrice   string `json:"real_price"`
	TradeID     string `json:"trade_id,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// orderListData 订单列表数据
type orderListData struct {
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	Orders   []orderResponse `json:"orders"`
}

// tradeData 发起支付的响应数据：交易记录加客户端调起支付的参数
type tradeData struct {
	Trade   *model.Trade      `json:"trade"`
	Payload map[string]string `json:"payload"`
}

// notificationListData 消息列表数据
type notificationListData struct {
	Unread        int64                `json:"unread"`
	Notifications []model.Notification `json:"notifications"`
}

// shipRequest 发货请求体
type shipRequest struct {
	Company string `json:"company"`
	OrderNo string `json:"order_no"`
}

// HTTPHandler HTTP 接口处理器
type HTTPHandler struct {
	orderRepo        *repository.OrderRepository
	notificationRepo *repository.NotificationRepository
	tradeService     *service.TradeService
	logisticsService *service.LogisticsService
	wechatClient     *wechat.Client
}

// NewHTTPServer 创建并返回 HTTP 服务器
func NewHTTPServer(
	orderRepo *repository.OrderRepository,
	notificationRepo *repository.NotificationRepository,
	tradeService *service.TradeService,
	logisticsService *service.LogisticsService,
	wechatClient *wechat.Client,
	port int,
) *http.Server {
	h := &HTTPHandler{
		orderRepo:        orderRepo,
		notificationRepo: notificationRepo,
		tradeService:     tradeService,
		logisticsService: logisticsService,
		wechatClient:     wechatClient,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/orders", h.handleListOrders)
	r.Post("/api/orders/{id}/trade", h.handleCreateTrade)
	r.Post("/api/orders/{id}/logistics", h.handleShip)
	r.Post("/api/wechat/notify", h.handleWechatNotify)
	r.Get("/api/users/{id}/notifications", h.handleListNotifications)

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
}

// handleCreateTrade 发起微信支付
func (h *HTTPHandler) handleCreateTrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, apiResponse{Code: -1, Message: "缺少用户身份"})
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Code: -1, Message: "订单 ID 无效"})
		return
	}

	trade, payload, err := h.tradeService.CreateTrade(r.Context(), userID, orderID, clientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{
		Code:    0,
		Message: "success",
		Data:    tradeData{Trade: trade, Payload: payload},
	})
}

// handleShip 订单发货
func (h *HTTPHandler) handleShip(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, apiResponse{Code: -1, Message: "缺少用户身份"})
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Code: -1, Message: "订单 ID 无效"})
		return
	}

	var req shipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Code: -1, Message: "请求体无效"})
		return
	}
	if l := len(req.Company); l < 1 || l > 32 {
		writeJSON(w, http.StatusBadRequest, apiResponse{Code: -1, Message: "company 长度需在 1-32 之间"})
		return
	}
	if l := len(req.OrderNo); l < 1 || l > 32 {
		writeJSON(w, http.StatusBadRequest, apiResponse{Code: -1, Message: "order_no 长度需在 1-32 之间"})
		return
	}

	logistics, err := h.logisticsService.Ship(r.Context(), userID, orderID, req.Company, req.OrderNo)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Code: 0, Message: "success", Data: logistics})
}

// handleWechatNotify 微信支付异步回调：验证签名和状态词汇后应用交易状态，
// 按微信协议以 XML 应答
func (h *HTTPHandler) handleWechatNotify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeNotifyXML(w, "FAIL", "读取请求失败")
		return
	}

	params, err := wechat.DecodeXML(body)
	if err != nil {
		writeNotifyXML(w, "FAIL", "报文解析失败")
		return
	}

	if !h.wechatClient.Verify(params) {
		log.Warn("微信回调签名验证失败")
		writeNotifyXML(w, "FAIL", "签名验证失败")
		return
	}

	tradeID, err := wechat.UUIDFromTradeNo(params["trade_id"])
	if err != nil {
		writeNotifyXML(w, "FAIL", "商户订单号无效")
		return
	}

	// 回调状态必须落在合法词汇表内，pending 不是合法的目标状态
	status, ok := model.TradeStatusFromName(params["status"])
	if !ok || status == model.TradeStatusPending {
		log.Warnf("微信回调携带非法状态: %q", params["status"])
		writeNotifyXML(w, "FAIL", "非法的交易状态")
		return
	}

	if err := h.tradeService.FinishTrade(r.Context(), tradeID, status); err != nil {
		log.Errorf("应用支付回调失败 (交易: %s): %v", tradeID, err)
		writeNotifyXML(w, "FAIL", "处理失败")
		return
	}

	writeNotifyXML(w, "SUCCESS", "OK")
}

// handleListOrders 分页查询订单列表
func (h *HTTPHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("page_size"))
	userID, _ := strconv.ParseInt(query.Get("user_id"), 10, 64)

	filter := repository.OrderFilter{
		UserID:   userID,
		Page:     page,
		PageSize: pageSize,
	}

	if statusStr := query.Get("status"); statusStr != "" {
		statusVal, err := strconv.ParseInt(statusStr, 10, 16)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiResponse{
				Code:    -1,
				Message: "status 参数无效，应为 1(已创建)、2(已支付)、3(已发货)、4(已完成)",
			})
			return
		}
		s := int16(statusVal)
		filter.Status = &s
	}

	orders, total, err := h.orderRepo.ListOrders(filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiResponse{Code: -1, Message: "查询失败: " + err.Error()})
		return
	}

	filter.Normalize()
	orderList := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		orderList = append(orderList, toOrderResponse(o))
	}

	writeJSON(w, http.StatusOK, apiResponse{
		Code:    0,
		Message: "success",
		Data: orderListData{
			Total:    total,
			Page:     filter.Page,
			PageSize: filter.PageSize,
			Orders:   orderList,
		},
	})
}

// handleListNotifications 查询用户消息列表及未读数
func (h *HTTPHandler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	uid, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Code: -1, Message: "用户 ID 无效"})
		return
	}

	notifications, err := h.notificationRepo.ListByUser(uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiResponse{Code: -1, Message: "查询失败: " + err.Error()})
		return
	}
	unread, err := h.notificationRepo.CountUnread(uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiResponse{Code: -1, Message: "查询失败: " + err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{
		Code:    0,
		Message: "success",
		Data: notificationListData{
			Unread:        unread,
			Notifications: notifications,
		},
	})
}

// callerID 从请求头取调用方用户 ID，鉴权中间件在上游完成
func callerID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get("X-User-Id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// clientIP 取调用方 IP
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// toOrderResponse 将 model.Order 转为响应结构
func toOrderResponse(o model.Order) orderResponse {
	resp := orderResponse{
		ID:          o.ID.String(),
		UserID:      o.UserID,
		CommodityID: o.CommodityID.String(),
		Status:      o.Status,
		StatusText:  orderStatusText(o.Status),
		RealPrice:   o.RealPrice.String(),
		CreatedAt:   o.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if o.TradeID != nil {
		resp.TradeID = o.TradeID.String()
	}
	return resp
}

// orderStatusText 将订单状态码转为中文描述
func orderStatusText(status int16) string {
	switch status {
	case model.OrderStatusCreated:
		return "已创建"
	case model.OrderStatusPayed:
		return "已支付"
	case model.OrderStatusShipment:
		return "已发货"
	case model.OrderStatusFinished:
		return "已完成"
	default:
		return "未知"
	}
}

// writeError 将业务错误映射为 HTTP 响应
func writeError(w http.ResponseWriter, err error) {
	if e := apperrors.As(err); e != nil {
		writeJSON(w, httpStatus(e.Kind), apiResponse{Code: e.Code, Message: e.Message})
		return
	}
	log.Errorf("内部错误: %v", err)
	writeJSON(w, http.StatusInternalServerError, apiResponse{Code: -1, Message: "内部错误"})
}

func httpStatus(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindForbidden:
		return http.StatusForbidden
	case apperrors.KindInvalidState:
		return http.StatusBadRequest
	case apperrors.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON 写入 JSON 响应
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeNotifyXML 按微信协议写回调应答
func writeNotifyXML(w http.ResponseWriter, code, msg string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	fmt.Fprintf(w, "<xml><return_code><![CDATA[%s]]></return_code><return_msg><![CDATA[%s]]></return_msg></xml>", code, msg)
}
