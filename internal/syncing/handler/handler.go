// Package handler exposes the syncing admin API: backfill runs, the sync
// ledger, the retry pass and blocklist management.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"leadbridge/internal/scheduler"
	"leadbridge/internal/syncing/repository"
	"leadbridge/internal/syncing/service"
	"leadbridge/internal/syncing/transport"
	"leadbridge/platform/emailaddr"
	"leadbridge/platform/httpkit"
	"leadbridge/platform/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc      *service.Service
	enqueuer scheduler.BackfillEnqueuer
	val      *validator.Validator
}

// New creates the syncing handler. The enqueuer may be nil when no task
// queue is configured; async backfill requests are then rejected.
func New(svc *service.Service, enqueuer scheduler.BackfillEnqueuer, val *validator.Validator) *Handler {
	return &Handler{svc: svc, enqueuer: enqueuer, val: val}
}

// HandleTriggerBackfill starts a campaign backfill.
// POST /api/v1/admin/sync/backfill
func (h *Handler) HandleTriggerBackfill(c *gin.Context) {
	var req transport.TriggerBackfillRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	if req.Async {
		if h.enqueuer == nil {
			httpkit.Error(c, http.StatusServiceUnavailable, "task queue not configured", nil)
			return
		}
		err := h.enqueuer.EnqueueBackfill(c.Request.Context(), scheduler.BackfillCampaignPayload{
			CampaignID: req.CampaignID,
			BatchSize:  req.BatchSize,
			MaxLeads:   req.MaxLeads,
			Cursor:     req.Cursor,
			Force:      req.Force,
		})
		if httpkit.HandleError(c, err) {
			return
		}
		c.JSON(http.StatusAccepted, transport.TriggerBackfillResponse{
			CampaignID: req.CampaignID,
			Queued:     true,
		})
		return
	}

	result, err := h.svc.BackfillCampaign(c.Request.Context(), req.CampaignID, service.BackfillOptions{
		BatchSize: req.BatchSize,
		MaxLeads:  req.MaxLeads,
		Cursor:    req.Cursor,
		Force:     req.Force,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// HandleResyncLead forces one lead back through the pipeline.
// POST /api/v1/admin/sync/resync
func (h *Handler) HandleResyncLead(c *gin.Context) {
	var req transport.ResyncLeadRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	result, err := h.svc.ResyncLead(c.Request.Context(), req.CampaignID, emailaddr.Normalize(req.Email), req.Force)
	if err != nil {
		if errors.Is(err, service.ErrLeadNotFound) {
			httpkit.Error(c, http.StatusNotFound, "lead not found in campaign", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, result)
}

// HandleRetryFailed re-runs failed ledger rows through the pipeline.
// POST /api/v1/admin/sync/retry
func (h *Handler) HandleRetryFailed(c *gin.Context) {
	var req transport.RetryFailedRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	result, err := h.svc.RetryFailed(c.Request.Context(), req.Limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// HandleSweepRemovals runs one delayed-cleanup sweep immediately.
// POST /api/v1/admin/sync/cleanup/sweep
func (h *Handler) HandleSweepRemovals(c *gin.Context) {
	result, err := h.svc.SweepPendingRemovals(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// HandleListSyncRecords lists ledger rows with optional filters.
// GET /api/v1/admin/sync/records
func (h *Handler) HandleListSyncRecords(c *gin.Context) {
	records, err := h.svc.ListSyncRecords(c.Request.Context(), listParamsFromQuery(c))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToSyncRecordResponses(records))
}

// HandleListBlocklist lists local suppression entries.
// GET /api/v1/admin/sync/blocklist
func (h *Handler) HandleListBlocklist(c *gin.Context) {
	limit, offset := pagination(c)
	entries, err := h.svc.ListBlocklist(c.Request.Context(), c.Query("kind"), limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToBlocklistResponses(entries))
}

// HandleAddBlocklistEntry adds a suppression entry and mirrors it to the
// engagement platform.
// POST /api/v1/admin/sync/blocklist
func (h *Handler) HandleAddBlocklistEntry(c *gin.Context) {
	var req transport.BlocklistEntryRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	entry, err := h.svc.AddBlocklistEntry(c.Request.Context(), req.Kind, req.Value, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}
	c.JSON(http.StatusCreated, transport.ToBlocklistResponse(entry))
}

// HandleRemoveBlocklistEntry deactivates a local suppression entry.
// DELETE /api/v1/admin/sync/blocklist
func (h *Handler) HandleRemoveBlocklistEntry(c *gin.Context) {
	kind := c.Query("kind")
	value := c.Query("value")
	if kind == "" || value == "" {
		httpkit.Error(c, http.StatusBadRequest, "kind and value are required", nil)
		return
	}

	removed, err := h.svc.RemoveBlocklistEntry(c.Request.Context(), kind, value)
	if httpkit.HandleError(c, err) {
		return
	}
	if !removed {
		httpkit.Error(c, http.StatusNotFound, "blocklist entry not found", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "blocklist entry removed"})
}

func (h *Handler) bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return false
	}
	return true
}

func listParamsFromQuery(c *gin.Context) repository.ListSyncRecordsParams {
	params := repository.ListSyncRecordsParams{
		CampaignID: c.Query("campaignId"),
		Email:      emailaddr.Normalize(c.Query("email")),
		Outcome:    c.Query("outcome"),
	}
	params.Limit, params.Offset = pagination(c)
	return params
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}
