package handler

import (
	"net/http"
	"net/url"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/hello-pdf-submission/internal/middleware"
	"github.com/stemsi/hello-pdf-submission/internal/model"
	"github.com/stemsi/hello-pdf-submission/internal/response"
	"github.com/stemsi/hello-pdf-submission/internal/service"
	"github.com/stemsi/hello-pdf-submission/internal/validator"
	"github.com/stemsi/hello-pdf-submission/internal/view"
)

const htmlContentType = "text/html; charset=utf-8"

// usageIDPattern accepts opaque host usage ids such as
// "block-v1:Org+Course+Run+type@hello_pdf+block@3f2a".
var usageIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:@+\-]{1,255}$`)

// BlockHandler serves the block's views and JSON handlers.
type BlockHandler struct {
	submissionService *service.SubmissionService
	log               zerolog.Logger
}

// NewBlockHandler creates a new BlockHandler.
func NewBlockHandler(submissionService *service.SubmissionService, log zerolog.Logger) *BlockHandler {
	return &BlockHandler{
		submissionService: submissionService,
		log:               log.With().Str("component", "block_handler").Logger(),
	}
}

// StudentView godoc
// GET /api/v1/blocks/:usage_id/student_view
func (h *BlockHandler) StudentView(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}

	html, err := h.submissionService.StudentView(c.Request.Context(), id, endpoint(c, id.UnitID))
	if err != nil {
		h.internalError(c, err, "render student view")
		return
	}
	c.Data(http.StatusOK, htmlContentType, html)
}

// StudioView godoc
// GET /api/v1/blocks/:usage_id/studio_view
func (h *BlockHandler) StudioView(c *gin.Context) {
	usageID, ok := usageIDParam(c)
	if !ok {
		return
	}

	html, err := h.submissionService.StudioView(c.Request.Context(), usageID, endpoint(c, usageID))
	if err != nil {
		h.internalError(c, err, "render studio view")
		return
	}
	c.Data(http.StatusOK, htmlContentType, html)
}

// StudioSubmit godoc
// POST /api/v1/blocks/:usage_id/handler/studio_submit
func (h *BlockHandler) StudioSubmit(c *gin.Context) {
	usageID, ok := usageIDParam(c)
	if !ok {
		return
	}

	var req model.StudioSubmitRequest
	if fields := validator.BindOptional(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.submissionService.SaveSettings(c.Request.Context(), usageID, req)
	if err != nil {
		h.internalError(c, err, "save settings")
		return
	}
	c.JSON(http.StatusOK, result)
}

// ResetSubmission godoc
// POST /api/v1/blocks/:usage_id/handler/reset_submission
func (h *BlockHandler) ResetSubmission(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}

	result, err := h.submissionService.ResetSubmission(c.Request.Context(), id)
	if err != nil {
		h.internalError(c, err, "reset submission")
		return
	}
	c.JSON(http.StatusOK, result)
}

// SubmitText godoc
// POST /api/v1/blocks/:usage_id/handler/submit_text
func (h *BlockHandler) SubmitText(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}

	var req model.SubmitTextRequest
	if fields := validator.BindOptional(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.submissionService.SubmitText(c.Request.Context(), id, req)
	if err != nil {
		h.internalError(c, err, "submit text")
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandlerBase is the URL prefix the rendered views post their handler calls to.
func HandlerBase(usageID string) string {
	return "/api/v1/blocks/" + url.PathEscape(usageID) + "/handler/"
}

// endpoint points the rendered script at this usage's handlers, carrying
// the caller's own token so the script can authenticate its calls.
func endpoint(c *gin.Context, usageID string) view.Endpoint {
	return view.Endpoint{HandlerBase: HandlerBase(usageID), Token: middleware.GetToken(c)}
}

// identity builds the learner identity from the token and the path.
func (h *BlockHandler) identity(c *gin.Context) (model.Identity, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return model.Identity{}, false
	}

	usageID, ok := usageIDParam(c)
	if !ok {
		return model.Identity{}, false
	}

	return model.Identity{
		LearnerID: claims.Subject,
		CourseID:  claims.CourseID,
		UnitID:    usageID,
	}, true
}

func (h *BlockHandler) internalError(c *gin.Context, err error, op string) {
	h.log.Error().
		Err(err).
		Str("op", op).
		Str("usage_id", c.Param("usage_id")).
		Str("request_id", response.RequestID(c)).
		Msg("block handler failed")
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}

func usageIDParam(c *gin.Context) (string, bool) {
	usageID := c.Param("usage_id")
	if !usageIDPattern.MatchString(usageID) {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidUsage)
		return "", false
	}
	return usageID, true
}
