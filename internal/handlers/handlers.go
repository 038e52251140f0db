package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sharefolio/internal/clock"
	"sharefolio/internal/database"
	"sharefolio/internal/ledger"
	"sharefolio/internal/marketdata"
	"sharefolio/internal/models"
	"sharefolio/internal/portfolio"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// WatchStore persists watchlist snapshots. *database.Repo implements it.
type WatchStore interface {
	UpsertWatch(ctx context.Context, id string, q marketdata.Quote, ts time.Time) (database.WatchItem, bool, error)
	ListWatch(ctx context.Context, symbol string, limit, offset int) ([]database.WatchItem, int, error)
	DeleteWatch(ctx context.Context, id string) error
}

type Handler struct {
	engine            *ledger.Engine
	quotes            marketdata.Source
	watch             WatchStore
	clock             clock.Clock
	depositoryDefault bool
	timeout           time.Duration
	newID             func() string
	log               *logrus.Logger
}

type Options struct {
	Clock             clock.Clock
	DepositoryDefault bool
	NewID             func() string
}

func NewHandler(e *ledger.Engine, q marketdata.Source, w WatchStore, opts Options, log *logrus.Logger) *Handler {
	if opts.Clock == nil {
		opts.Clock = clock.System{Loc: e.Location()}
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Handler{
		engine:            e,
		quotes:            q,
		watch:             w,
		clock:             opts.Clock,
		depositoryDefault: opts.DepositoryDefault,
		timeout:           30 * time.Second,
		newID:             opts.NewID,
		log:               log,
	}
}

func (h *Handler) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// fail writes a structured failure for err.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := ledger.KindOf(err)
	status := http.StatusInternalServerError
	msg := "internal"
	switch kind {
	case ledger.KindValidation:
		status, msg = http.StatusBadRequest, err.Error()
	case ledger.KindNotFound:
		status, msg = http.StatusNotFound, err.Error()
	case ledger.KindInsufficientQuantity:
		status, msg = http.StatusUnprocessableEntity, err.Error()
	case ledger.KindConflict:
		status, msg = http.StatusConflict, "position changed concurrently, retry"
	case ledger.KindDependency:
		status, msg = http.StatusBadGateway, "upstream dependency failed"
	}
	if status >= 500 {
		h.log.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	} else {
		h.log.Warnf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"success": false, "error": msg, "kind": kind.String()})
}

func (h *Handler) badRequest(c *gin.Context, msg string) {
	h.log.Warnf("%s %s: %s", c.Request.Method, c.FullPath(), msg)
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg, "kind": ledger.KindValidation.String()})
}

func (h *Handler) parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := clock.ParseDay(s, h.engine.Location())
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (h *Handler) PostBuy(c *gin.Context) {
	var req models.BuyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}
	date, err := h.parseDate(req.Date)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}
	dp := h.depositoryDefault
	if req.IsDpCharged != nil {
		dp = *req.IsDpCharged
	}

	ctx, cancel := h.ctx(c)
	defer cancel()
	res, err := h.engine.Buy(ctx, ledger.BuyRequest{
		Symbol:            req.Symbol,
		Quantity:          req.Quantity,
		Rate:              req.Rate,
		Date:              date,
		DepositoryCharged: dp,
		IdempotencyKey:    req.IdempotencyKey,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if res.Replayed {
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "already_exists", "data": toActivityView(res.Activity)})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Stock added/updated in holdings and activity log updated.",
		"data":    buyView(res),
	})
}

func (h *Handler) PostSell(c *gin.Context) {
	var req models.SellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}
	date, err := h.parseDate(req.Date)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}
	dp := h.depositoryDefault
	if req.IsDpCharged != nil {
		dp = *req.IsDpCharged
	}

	ctx, cancel := h.ctx(c)
	defer cancel()
	res, err := h.engine.Sell(ctx, ledger.SellRequest{
		Symbol:            req.Symbol,
		Quantity:          req.SellQuantity,
		Rate:              req.SellRate,
		Date:              date,
		DepositoryCharged: dp,
		HeldUnderOneYear:  req.IsHeldUnderOneYear,
		IdempotencyKey:    req.IdempotencyKey,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if res.Replayed {
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "already_exists", "data": toActivityView(res.Activity)})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Stock sold successfully.",
		"data":    sellView(res),
	})
}

// maxPage keeps (page-1)*limit well inside the int range.
const maxPage = 1_000_000

type pageParams struct {
	limit int
	page  int
}

func (p pageParams) offset() int { return (p.page - 1) * p.limit }

func parsePage(c *gin.Context) (pageParams, string) {
	p := pageParams{limit: ledger.DefaultLimit, page: 1}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return p, "limit must be a positive integer"
		}
		if n > ledger.MaxLimit {
			n = ledger.MaxLimit
		}
		p.limit = n
	}
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return p, "page must be a positive integer"
		}
		if n > maxPage {
			return p, "page must not exceed " + strconv.Itoa(maxPage)
		}
		p.page = n
	}
	return p, ""
}

// dayWindow turns the date query parameter into a [from, to) window.
func (h *Handler) dayWindow(c *gin.Context) (*time.Time, *time.Time, string) {
	v := c.Query("date")
	if v == "" {
		return nil, nil, ""
	}
	day, err := clock.ParseDay(v, h.engine.Location())
	if err != nil {
		return nil, nil, err.Error()
	}
	from, to := clock.DayBounds(day, h.engine.Location())
	return &from, &to, ""
}

func (h *Handler) GetHoldings(c *gin.Context) {
	p, msg := parsePage(c)
	if msg != "" {
		h.badRequest(c, msg)
		return
	}
	from, to, msg := h.dayWindow(c)
	if msg != "" {
		h.badRequest(c, msg)
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()
	list, err := h.engine.Holdings(ctx, ledger.PositionFilter{
		Symbol: c.Query("symbol"), From: from, To: to, Limit: p.limit, Offset: p.offset(),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	data := make([]positionView, 0, len(list.Data))
	for _, pos := range list.Data {
		data = append(data, toPositionView(pos))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data, "total": list.Total, "limit": p.limit, "page": p.page})
}

func (h *Handler) GetActivity(c *gin.Context) {
	p, msg := parsePage(c)
	if msg != "" {
		h.badRequest(c, msg)
		return
	}
	from, to, msg := h.dayWindow(c)
	if msg != "" {
		h.badRequest(c, msg)
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()
	list, err := h.engine.Activity(ctx, ledger.ActivityFilter{
		Symbol: c.Query("symbol"),
		Type:   ledger.TxType(strings.ToLower(c.Query("type"))),
		From:   from,
		To:     to,
		Limit:  p.limit,
		Offset: p.offset(),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	data := make([]activityView, 0, len(list.Data))
	for _, e := range list.Data {
		data = append(data, toActivityView(e))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data, "total": list.Total, "limit": p.limit, "page": p.page})
}

// notFoundID reports whether id cannot name a stored record, answering 404.
func (h *Handler) notFoundID(c *gin.Context, what, id string) bool {
	if _, err := uuid.Parse(id); err != nil {
		h.fail(c, &ledger.Error{Kind: ledger.KindNotFound, Msg: what + " " + id + " not found"})
		return true
	}
	return false
}

func (h *Handler) DeleteActivity(c *gin.Context) {
	id := c.Param("id")
	if h.notFoundID(c, "activity", id) {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.engine.PurgeActivity(ctx, id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "activity purged"})
}

func (h *Handler) GetUnrealized(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	positions, err := h.engine.AllPositions(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	lines := portfolio.Unrealized(positions)
	data := make([]unrealizedView, 0, len(lines))
	for _, l := range lines {
		data = append(data, toUnrealizedView(l))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func (h *Handler) GetSummary(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	positions, err := h.engine.AllPositions(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": summaryView(portfolio.Summarize(positions))})
}
