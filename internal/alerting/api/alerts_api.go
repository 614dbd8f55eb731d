package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/queuewatch/queuewatch/internal/alerting/model"
)

func errorBody(code, message string) map[string]any {
	return map[string]any{"error": map[string]any{"code": code, "message": message}}
}

// ListAlerts returns alert instances at or above a minimum state. Without a
// state parameter it returns pending and firing instances.
func (api *Api) ListAlerts(c *gin.Context) {
	minState := model.StatePending
	if raw := c.Query("state"); raw != "" {
		parsed, ok := model.ParseAlertState(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, errorBody("INVALID_PARAMETER", "unknown state: "+raw))
			return
		}
		minState = parsed
	}
	alerts := api.Registry.ActiveAlerts(minState)
	c.JSON(http.StatusOK, map[string]any{"alerts": alerts, "total": len(alerts)})
}

func (api *Api) GetAlertByID(c *gin.Context) {
	alertID := c.Param("alertID")
	inst, ok := api.Registry.Get(alertID)
	if !ok {
		c.JSON(http.StatusNotFound, errorBody("NOT_FOUND", "alert not found"))
		return
	}
	c.JSON(http.StatusOK, inst)
}

// GetRules serves the installed rule configuration in its file form.
func (api *Api) GetRules(c *gin.Context) {
	data, err := model.MarshalRuleGroups(api.Rules.Groups())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("INTERNAL_ERROR", err.Error()))
		return
	}
	c.Data(http.StatusOK, "application/yaml", data)
}

// PutRules replaces the rule configuration with the YAML document in the
// request body. A rejected configuration leaves the running one untouched.
func (api *Api) PutRules(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("INVALID_BODY", err.Error()))
		return
	}
	groups, err := model.ParseRuleFile(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("INVALID_RULES", err.Error()))
		return
	}
	if err := api.Rules.Replace(c.Request.Context(), groups); err != nil {
		status := http.StatusInternalServerError
		code := "INTERNAL_ERROR"
		var cfgErr *model.ConfigError
		if errors.As(err, &cfgErr) {
			status = http.StatusBadRequest
			code = "INVALID_RULES"
		}
		c.JSON(status, errorBody(code, err.Error()))
		return
	}
	c.JSON(http.StatusOK, map[string]any{"groups": len(groups)})
}

// ReloadRules re-reads the configured rule file and installs it.
func (api *Api) ReloadRules(c *gin.Context) {
	if err := api.Rules.Reload(c.Request.Context()); err != nil {
		status := http.StatusInternalServerError
		code := "INTERNAL_ERROR"
		var cfgErr *model.ConfigError
		if errors.As(err, &cfgErr) {
			status = http.StatusBadRequest
			code = "INVALID_RULES"
		}
		c.JSON(status, errorBody(code, err.Error()))
		return
	}
	c.JSON(http.StatusOK, map[string]any{"groups": len(api.Rules.Groups())})
}

// GetLastReport returns the most recent evaluation tick report.
func (api *Api) GetLastReport(c *gin.Context) {
	report := api.Scheduler.LastReport()
	if report == nil {
		c.JSON(http.StatusNotFound, errorBody("NOT_FOUND", "no evaluation tick completed yet"))
		return
	}
	c.JSON(http.StatusOK, report)
}
