package api

import (
	"github.com/gin-gonic/gin"
	"github.com/queuewatch/queuewatch/internal/alerting/service/engine"
	"github.com/queuewatch/queuewatch/internal/alerting/service/ruleset"
)

// Api binds the alerting HTTP surface to its collaborators.
type Api struct {
	Registry  *engine.Registry
	Scheduler *engine.Scheduler
	Rules     *ruleset.Manager
}

func NewApi(router *gin.Engine, registry *engine.Registry, scheduler *engine.Scheduler, rules *ruleset.Manager) *Api {
	api := &Api{Registry: registry, Scheduler: scheduler, Rules: rules}
	api.setupRouters(router)
	return api
}

func (api *Api) setupRouters(router *gin.Engine) {
	router.GET("/v1/alerts", api.ListAlerts)
	router.GET("/v1/alerts/:alertID", api.GetAlertByID)
	router.GET("/v1/rules", api.GetRules)
	router.PUT("/v1/rules", api.PutRules)
	router.POST("/v1/rules/reload", api.ReloadRules)
	router.GET("/v1/report", api.GetLastReport)
}
