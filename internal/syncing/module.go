// Package syncing is the lead status sync bounded context. It resolves
// CRM statuses from engagement events and keeps both systems consistent.
package syncing

import (
	apphttp "leadbridge/internal/http"
	"leadbridge/internal/scheduler"
	"leadbridge/internal/syncing/handler"
	"leadbridge/internal/syncing/service"
	"leadbridge/platform/validator"
)

// Module is the syncing bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule wires the admin API around an already constructed service.
// The enqueuer may be nil when no task queue is configured.
func NewModule(svc *service.Service, enqueuer scheduler.BackfillEnqueuer, val *validator.Validator) *Module {
	return &Module{
		handler: handler.New(svc, enqueuer, val),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "syncing"
}

// RegisterRoutes mounts the admin sync routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	sync := ctx.Admin.Group("/sync")
	sync.POST("/backfill", m.handler.HandleTriggerBackfill)
	sync.POST("/resync", m.handler.HandleResyncLead)
	sync.POST("/retry", m.handler.HandleRetryFailed)
	sync.POST("/cleanup/sweep", m.handler.HandleSweepRemovals)
	sync.GET("/records", m.handler.HandleListSyncRecords)

	blocklist := sync.Group("/blocklist")
	blocklist.GET("", m.handler.HandleListBlocklist)
	blocklist.POST("", m.handler.HandleAddBlocklistEntry)
	blocklist.DELETE("", m.handler.HandleRemoveBlocklistEntry)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
