package routers

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/MeloQi/EasyGoLib/utils"
	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"

	"github.com/yusiwen/rtsp4k/models"
)

/**
 * @apiDefine stats statistics
 */

/**
 * @api {get} /api/v1/sessions Paged session list
 * @apiGroup stats
 * @apiName Sessions
 * @apiParam {Number} [start] page offset, from zero
 * @apiParam {Number} [limit] page size
 * @apiParam {String} [sort] sort field
 * @apiParam {String=ascending,descending} [order] sort order
 * @apiParam {String} [q] filter on route or input
 * @apiSuccess (200) {Number} total
 * @apiSuccess (200) {Array} rows
 * @apiSuccess (200) {String} rows.id
 * @apiSuccess (200) {String} rows.route
 * @apiSuccess (200) {String} rows.url url as seen by the caller
 * @apiSuccess (200) {String} rows.source
 * @apiSuccess (200) {String} rows.state
 * @apiSuccess (200) {String} rows.startAt
 */
func (h *APIHandler) Sessions(c *gin.Context) {
	form := utils.NewPageForm()
	if err := c.Bind(form); err != nil {
		return
	}
	hostname := utils.GetRequestHostname(c.Request)
	q := strings.ToLower(form.Q)
	sessions := make([]interface{}, 0)
	for route, s := range h.Registry.List() {
		if q != "" && !strings.Contains(strings.ToLower(route), q) && !strings.Contains(strings.ToLower(s.Input), q) {
			continue
		}
		row := map[string]interface{}{
			"id":      s.ID,
			"route":   route,
			"url":     publicURL(s.URL, hostname),
			"source":  s.Input,
			"state":   s.State.String(),
			"width":   s.Width,
			"height":  s.Height,
			"fps":     s.FPS,
			"error":   s.Error,
			"startAt": "",
		}
		if s.StartedAt != nil {
			row["startAt"] = utils.DateTime(*s.StartedAt)
		}
		sessions = append(sessions, row)
	}
	pr := utils.NewPageResult(sessions)
	if form.Sort != "" {
		pr.Sort(form.Sort, form.Order)
	}
	pr.Slice(form.Start, form.Limit)
	c.IndentedJSON(http.StatusOK, pr)
}

// publicURL swaps a loopback host in rawURL for hostname.
func publicURL(rawURL, hostname string) string {
	if rawURL == "" || hostname == "" {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
	default:
		return rawURL
	}
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(hostname, port)
	} else {
		u.Host = hostname
	}
	return u.String()
}

/**
 * @api {get} /health Host load and session counts
 * @apiGroup stats
 * @apiName Health
 */
func (h *APIHandler) Health(c *gin.Context) {
	counts := make(map[string]int, len(models.SessionStates))
	for _, st := range models.SessionStates {
		counts[st.String()] = 0
	}
	for st, n := range h.Registry.StateCounts() {
		counts[st.String()] = n
	}
	resp := gin.H{
		"version":  BuildVersion,
		"sessions": counts,
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		resp["cpu"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		resp["memory"] = gin.H{
			"total":       vm.Total,
			"used":        vm.Used,
			"usedPercent": vm.UsedPercent,
		}
	}
	c.IndentedJSON(http.StatusOK, resp)
}
