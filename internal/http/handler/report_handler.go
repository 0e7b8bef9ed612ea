package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/sitebook/sitebook-api/internal/service"
)

type ReportHandler struct {
	reportService *service.ReportService
	logger        *zap.Logger
}

func NewReportHandler(reportService *service.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		logger:        logger,
	}
}

// Download godoc
// @Summary Download a report export
// @Tags Reports
// @Produce text/csv
// @Param id path string true "Report export ID" format(uuid)
// @Success 200 {file} file
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /reports/{id}/download [get]
func (h *ReportHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	export, content, err := h.reportService.Download(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	if export.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(export.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, content); err != nil {
		h.logger.Warn("report download interrupted", zap.String("report_id", id.String()), zap.Error(err))
	}
}
