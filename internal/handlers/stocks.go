package handlers

import (
	"errors"
	"net/http"
	"strings"

	"sharefolio/internal/ledger"
	"sharefolio/internal/marketdata"
	"sharefolio/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetStocks(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	quotes, err := h.quotes.FetchQuotes(ctx)
	if err != nil {
		h.fail(c, &ledger.Error{Kind: ledger.KindDependency, Msg: "fetch market data", Err: err})
		return
	}
	data := make([]map[string]string, 0, len(quotes))
	for _, q := range quotes {
		data = append(data, quoteView(q))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Stock Details Fetched Successfully", "data": data})
}

func (h *Handler) GetStock(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	ctx, cancel := h.ctx(c)
	defer cancel()
	quotes, err := h.quotes.FetchQuotes(ctx)
	if err != nil {
		h.fail(c, &ledger.Error{Kind: ledger.KindDependency, Msg: "fetch market data", Err: err})
		return
	}
	q, err := marketdata.Find(quotes, symbol)
	if err != nil {
		h.fail(c, &ledger.Error{Kind: ledger.KindNotFound, Msg: "Stock not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": quoteView(q)})
}

func (h *Handler) PostWatch(c *gin.Context) {
	var req models.WatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "symbol is required")
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))

	ctx, cancel := h.ctx(c)
	defer cancel()
	quotes, err := h.quotes.FetchQuotes(ctx)
	if err != nil {
		h.fail(c, &ledger.Error{Kind: ledger.KindDependency, Msg: "fetch market data", Err: err})
		return
	}
	q, err := marketdata.Find(quotes, symbol)
	if err != nil {
		h.fail(c, &ledger.Error{Kind: ledger.KindNotFound, Msg: "Stock data for symbol \"" + symbol + "\" not found"})
		return
	}

	item, created, err := h.watch.UpsertWatch(ctx, h.newID(), q, h.clock.Now())
	if err != nil {
		h.fail(c, &ledger.Error{Kind: ledger.KindDependency, Msg: "save watchlist", Err: err})
		return
	}
	msg := "Watchlist updated successfully"
	status := http.StatusOK
	if created {
		msg = "Symbol added to watchlist successfully"
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"success": true, "message": msg, "data": watchView(item)})
}

func (h *Handler) GetWatchlist(c *gin.Context) {
	p, msg := parsePage(c)
	if msg != "" {
		h.badRequest(c, msg)
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	items, total, err := h.watch.ListWatch(ctx, strings.ToUpper(c.Query("symbol")), p.limit, p.offset())
	if err != nil {
		h.fail(c, &ledger.Error{Kind: ledger.KindDependency, Msg: "list watchlist", Err: err})
		return
	}
	data := make([]map[string]interface{}, 0, len(items))
	for _, it := range items {
		data = append(data, watchView(it))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data, "total": total, "limit": p.limit, "page": p.page})
}

func (h *Handler) DeleteWatch(c *gin.Context) {
	id := c.Param("id")
	if h.notFoundID(c, "watchlist entry", id) {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	err := h.watch.DeleteWatch(ctx, id)
	if errors.Is(err, ledger.ErrRecordNotFound) {
		h.fail(c, &ledger.Error{Kind: ledger.KindNotFound, Msg: "watchlist entry " + id + " not found"})
		return
	}
	if err != nil {
		h.fail(c, &ledger.Error{Kind: ledger.KindDependency, Msg: "delete watchlist", Err: err})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Document with ID " + id + " has been successfully deleted."})
}
