package handler

import (
	"errors"
	"strconv"

	"pointledger/internal/emotion"
	"pointledger/internal/ledger"
	"pointledger/internal/service"
	"pointledger/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	pointService   *service.PointService
	accountService *service.AccountService
	logger         *zap.Logger
}

func NewHandler(points *service.PointService, accounts *service.AccountService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		pointService:   points,
		accountService: accounts,
		logger:         logger.Named("handler"),
	}
}

// renderError 把服务层错误转换为业务错误码
func (h *Handler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidTransfer),
		errors.Is(err, service.ErrTransferTooSmall),
		errors.Is(err, service.ErrSelfTransfer),
		errors.Is(err, service.ErrSystemAccount):
		response.ParamError(c, err.Error())
	case errors.Is(err, ledger.ErrAccountNotFound):
		response.BusinessError(c, response.CodeAccountNotFound, "账户不存在")
	case errors.Is(err, ledger.ErrAccountExists):
		response.BusinessError(c, response.CodeAccountExists, "账户已存在")
	case errors.Is(err, service.ErrSystemBusy):
		response.BusinessError(c, response.CodeSystemBusy, "系统繁忙，请稍后重试")
	case errors.Is(err, emotion.ErrUpdateFailed):
		response.BusinessError(c, response.CodeUpdateFailed, "更新失败")
	case errors.Is(err, ledger.ErrLedgerWrite):
		h.logger.Error("账本写入失败", zap.String("path", c.FullPath()), zap.Error(err))
		response.BusinessError(c, response.CodeTransferFailed, "转账失败")
	default:
		h.logger.Error("请求处理失败", zap.String("path", c.FullPath()), zap.Error(err))
		response.ServerError(c, "服务器内部错误")
	}
}

func (h *Handler) balanceNotEnough(c *gin.Context) {
	response.BusinessError(c, response.CodeBalanceNotEnough, "积分余额不足")
}

// ============================================================
// 积分相关接口
// ============================================================

// GetBalance 查询积分余额
// GET /api/v1/point/balance?user_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ParamError(c, "user_id 不能为空")
		return
	}

	balance, err := h.pointService.Balance(c.Request.Context(), userID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id": userID,
		"balance": balance,
	})
}

// ListTransfers 分页查询积分记录
// GET /api/v1/point/transfers?user_id=xxx&page=1&page_size=10
func (h *Handler) ListTransfers(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ParamError(c, "user_id 不能为空")
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	transfers, total, err := h.pointService.Transfers(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		h.renderError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":  transfers,
		"total": total,
		"page":  page,
	})
}

// TransferRequest 积分转账请求
type TransferRequest struct {
	FromUserID string `json:"from_user_id" binding:"required"`
	ToUserID   string `json:"to_user_id" binding:"required"`
	Amount     int64  `json:"amount" binding:"required,gt=0"`
}

// TransferPoints 用户之间转账
// POST /api/v1/point/transfer
func (h *Handler) TransferPoints(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.pointService.TransferPoints(c.Request.Context(), req.FromUserID, req.ToUserID, req.Amount)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if result.InsufficientFunds() {
		h.balanceNotEnough(c)
		return
	}

	response.Success(c, gin.H{
		"transfer_id": result.TransferID,
	})
}

// UserRequest 只带用户ID的请求
type UserRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// BuyInvitecode 积分购买邀请码
// POST /api/v1/point/buy-invitecode
func (h *Handler) BuyInvitecode(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	bought, err := h.pointService.BuyInvitecode(c.Request.Context(), req.UserID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if bought.InsufficientFunds() {
		h.balanceNotEnough(c)
		return
	}

	response.Success(c, gin.H{
		"invitecode":  bought.DataID,
		"transfer_id": bought.TransferID,
	})
}

// ExportPosts 扣费导出帖子
// POST /api/v1/export/posts
func (h *Handler) ExportPosts(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	charged, err := h.pointService.ChargeDataExport(c.Request.Context(), req.UserID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if charged.InsufficientFunds() {
		h.balanceNotEnough(c)
		return
	}

	response.Success(c, gin.H{
		"export_id":   charged.DataID,
		"transfer_id": charged.TransferID,
	})
}

// ============================================================
// 账户与设置
// ============================================================

// OpenAccountRequest 开户请求
type OpenAccountRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	InviterID  string `json:"inviter_id"`
	Invitecode string `json:"invitecode"`
}

// OpenAccount 开户并发放初始积分
// POST /api/v1/account/open
func (h *Handler) OpenAccount(c *gin.Context) {
	var req OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	err := h.accountService.Open(c.Request.Context(), service.OpenRequest{
		UserID:     req.UserID,
		InviterID:  req.InviterID,
		Invitecode: req.Invitecode,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id": req.UserID,
	})
}

// UpdateEmotionsRequest 设置常用表情
type UpdateEmotionsRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Emotions string `json:"emotions"`
}

// UpdateEmotions 整体替换常用表情
// POST /api/v1/settings/emotions
func (h *Handler) UpdateEmotions(c *gin.Context) {
	var req UpdateEmotionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.accountService.UpdateEmotions(c.Request.Context(), req.UserID, req.Emotions); err != nil {
		h.renderError(c, err)
		return
	}
	response.Success(c, nil)
}

// GetEmotions 查询常用表情
// GET /api/v1/settings/emotions?user_id=xxx
func (h *Handler) GetEmotions(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ParamError(c, "user_id 不能为空")
		return
	}

	emotions, err := h.accountService.Emotions(c.Request.Context(), userID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.Success(c, gin.H{
		"emotions": emotions,
	})
}
