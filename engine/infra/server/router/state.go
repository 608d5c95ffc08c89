package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Druk83/TrainingGround/engine/infra/server/appstate"
)

// RequestIDHeader carries the per-request identifier.
const RequestIDHeader = "X-Request-ID"

// GetAppState returns the application state or writes a 500 problem and returns nil.
func GetAppState(c *gin.Context) *appstate.State {
	if v, ok := c.Get(appstate.GinKey); ok {
		if state, ok := v.(*appstate.State); ok && state != nil {
			return state
		}
	}
	if state, err := appstate.GetState(c.Request.Context()); err == nil {
		return state
	}
	RespondProblemWithCode(c, http.StatusInternalServerError, ErrInternalCode, ErrMsgAppStateNotInitialized)
	return nil
}

// BindJSON decodes the request body or writes a 400 problem and returns false.
func BindJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		RespondProblemWithCode(c, http.StatusBadRequest, ErrBadRequestCode, "invalid request body: "+err.Error())
		return false
	}
	return true
}
