package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"motor_gateway/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errFromInvalid = "invalid 'from' time; use RFC3339 or YYYY-MM-DD"
	errToInvalid   = "invalid 'to' time; use RFC3339 or YYYY-MM-DD"
	errRange       = "'from' must be <= 'to'"

	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

var queryTimeLayouts = []string{time.RFC3339Nano, layoutDateTime, layoutDate}

// logFilterError carries the message shown to the client.
type logFilterError struct{ msg string }

func (e *logFilterError) Error() string { return e.msg }

// parseQueryTime accepts any of queryTimeLayouts and returns UTC. endOfDay
// moves a date-only value to the last instant of that day.
func parseQueryTime(s string, endOfDay bool) (time.Time, bool) {
	for _, layout := range queryTimeLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if endOfDay && layout == layoutDate {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return t.UTC(), true
	}
	return time.Time{}, false
}

func parseLogFilter(c *gin.Context) (service.LogFilter, error) {
	f := service.LogFilter{Type: strings.ToUpper(strings.TrimSpace(c.Query("type")))}
	if s := c.Query("from"); s != "" {
		t, ok := parseQueryTime(s, false)
		if !ok {
			return f, &logFilterError{errFromInvalid}
		}
		f.From = t
	}
	if s := c.Query("to"); s != "" {
		t, ok := parseQueryTime(s, true)
		if !ok {
			return f, &logFilterError{errToInvalid}
		}
		f.To = t
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return f, &logFilterError{errRange}
	}
	return f, nil
}

// @Summary      List gateway events
// @Description  Connection lifecycle, heartbeat timeouts, auth failures and forwarded commands, oldest first. A date-only 'to' covers that whole day.
// @Tags         logs
// @Produce      json
// @Param        from  query   string  false  "Start of range (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD')"  example(2025-08-01)
// @Param        to    query   string  false  "End of range (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD')"  example(2025-08-31)
// @Param        type  query   string  false  "Event type"  Enums(DEVICE_CONNECTED,DEVICE_DISCONNECTED,DASHBOARD_CONNECTED,DASHBOARD_DISCONNECTED,HEARTBEAT_TIMEOUT,AUTH_FAILURE,COMMAND)
// @Success      200   {object}  map[string]interface{}  "count, events"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/logs/ [get]
// @Security     BearerAuth
func (h *Handler) getLogs(c *gin.Context) {
	filter, err := parseLogFilter(c)
	var ferr *logFilterError
	if errors.As(err, &ferr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": ferr.msg})
		return
	}

	events, err := h.services.EventLog.List(c.Request.Context(), filter)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load logs", "logs_list_failed", err,
			"from", filter.From, "to", filter.To, "type", filter.Type)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}
