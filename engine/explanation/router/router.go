package exprouter

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Druk83/TrainingGround/engine/explanation"
	"github.com/Druk83/TrainingGround/engine/infra/server/router"
)

func Register(group *gin.RouterGroup) {
	// POST /v1/explanations/
	// Explain why the submitted answer is wrong
	group.POST("/", handleExplain)
	group.POST("", handleExplain)
}

func handleExplain(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	var req explanation.Request
	if !router.BindJSON(c, &req) {
		return
	}
	resp, err := state.Explanations.Explain(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, explanation.ErrInvalidRequest) {
			router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrBadRequestCode, err.Error())
			return
		}
		router.RespondProblemWithCode(c, http.StatusInternalServerError, router.ErrInternalCode, "failed to build explanation")
		return
	}
	c.JSON(http.StatusOK, resp)
}
