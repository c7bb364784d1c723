package handlers

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ozergarant/internal/logging"
	"ozergarant/internal/models"
	"ozergarant/internal/services"
)

// ReceiptWriter renders a PDF receipt; *pdf.ReceiptGenerator implements it.
type ReceiptWriter interface {
	Write(w io.Writer, d *models.Deal, generatedAt time.Time) error
}

type DealHandler struct {
	deals    services.DealService
	receipts ReceiptWriter
	log      logging.Logger
	now      func() time.Time
}

func NewDealHandler(deals services.DealService, receipts ReceiptWriter, log logging.Logger) *DealHandler {
	return &DealHandler{deals: deals, receipts: receipts, log: log.With("component", "http.deals"), now: time.Now}
}

// @Summary  Сделка по коду
// @Tags     Deals
// @Produce  json
// @Security BearerAuth
// @Param    code  path      string  true  "Код сделки"
// @Success  200   {object}  models.Deal
// @Failure  404   {object}  map[string]string
// @Router   /api/deals/{code} [get]
func (h *DealHandler) GetByCode(c *gin.Context) {
	deal, err := h.deals.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, h.log, "get deal", err)
		return
	}
	c.JSON(http.StatusOK, deal)
}

// @Summary  PDF-квитанция по сделке
// @Tags     Deals
// @Produce  application/pdf
// @Security BearerAuth
// @Param    code  path  string  true  "Код сделки"
// @Success  200
// @Failure  404  {object}  map[string]string
// @Router   /api/deals/{code}/receipt [get]
func (h *DealHandler) Receipt(c *gin.Context) {
	deal, err := h.deals.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, h.log, "receipt", err)
		return
	}
	var buf bytes.Buffer
	if err := h.receipts.Write(&buf, deal, h.now()); err != nil {
		writeError(c, h.log, "receipt", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="receipt_`+deal.Code+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
