package tplrouter

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Druk83/TrainingGround/engine/infra/server/router"
	"github.com/Druk83/TrainingGround/engine/template"
)

func Register(group *gin.RouterGroup) {
	// POST /internal/generate_instances
	// Generate task instances from the ready templates of a level
	group.POST("/generate_instances", handleGenerate)
}

func handleGenerate(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	if state.Templates == nil {
		router.RespondProblemWithCode(c, http.StatusServiceUnavailable, router.ErrServiceUnavailableCode, router.ErrMsgGeneratorUnavailable)
		return
	}
	var req template.GenerateRequest
	if !router.BindJSON(c, &req) {
		return
	}
	resp, err := state.Templates.Generate(c.Request.Context(), &req)
	if err != nil {
		status, code := statusFor(err)
		detail := err.Error()
		if status == http.StatusInternalServerError {
			detail = "failed to generate instances"
		}
		router.RespondProblemWithCode(c, status, code, detail)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, template.ErrEmptyLevel), errors.Is(err, template.ErrInvalidCount):
		return http.StatusUnprocessableEntity, router.ErrUnprocessableCode
	case errors.Is(err, template.ErrNoTemplates):
		return http.StatusNotFound, router.ErrNotFoundCode
	case errors.Is(err, template.ErrAllSeen):
		return http.StatusConflict, router.ErrConflictCode
	default:
		return http.StatusInternalServerError, router.ErrInternalCode
	}
}
