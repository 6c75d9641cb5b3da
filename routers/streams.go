package routers

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/teris-io/shortid"

	"github.com/yusiwen/rtsp4k/log"
)

/**
 * @api {get} /streams List relays
 * @apiGroup streams
 * @apiName StreamList
 * @apiSuccess (200) {Object} message route -> session snapshot
 */
func (h *APIHandler) StreamList(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, gin.H{"message": h.Registry.List()})
}

/**
 * @api {post} /streams Start a relay
 * @apiGroup streams
 * @apiName StreamAdd
 * @apiParam {String} [route] route name, generated when empty
 * @apiParam {String} [input] source path, device or url
 * @apiParam {File} [file] uploaded source, used instead of input
 * @apiSuccess (200) {Object} message session snapshot, state "failed" when the source or encoder could not be opened
 */
func (h *APIHandler) StreamAdd(c *gin.Context) {
	route := c.Query("route")
	if route == "" {
		route = c.PostForm("route")
	}
	input := c.Query("input")
	if input == "" {
		input = c.PostForm("input")
	}

	uploaded := ""
	if file, err := c.FormFile("file"); err == nil {
		if err := os.MkdirAll(h.DataDir, 0o755); err != nil {
			c.Error(err)
			return
		}
		uploaded = filepath.Join(h.DataDir, shortid.MustGenerate()+"-"+filepath.Base(file.Filename))
		if err := c.SaveUploadedFile(file, uploaded); err != nil {
			c.Error(err)
			return
		}
		input = uploaded
	}
	if input == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "either input or file is required"})
		return
	}

	session, err := h.Registry.Add(c.Request.Context(), route, input)
	if err != nil {
		if uploaded != "" {
			if rerr := os.Remove(uploaded); rerr != nil {
				log.Warn("remove rejected upload: ", rerr)
			}
		}
		log.Errorf("add stream %q: %v", route, err)
		c.Error(err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": session})
}

/**
 * @api {delete} /streams Stop a relay
 * @apiGroup streams
 * @apiName StreamDelete
 * @apiParam {String} route route name (JSON body)
 * @apiSuccess (200) {Object} message remaining sessions
 */
func (h *APIHandler) StreamDelete(c *gin.Context) {
	type Form struct {
		Route string `json:"route" binding:"required"`
	}
	var form Form
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}
	remaining, err := h.Registry.Remove(form.Route)
	if err != nil {
		log.Errorf("delete stream %q: %v", form.Route, err)
		c.Error(err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": remaining})
}
