package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/animx/internal/models"
	"github.com/desertthunder/animx/internal/shared"
	"github.com/desertthunder/animx/internal/tasks"
	"github.com/gin-gonic/gin"
)

type convertRequest struct {
	ImageURL     string `json:"imageUrl"`
	Prompt       string `json:"prompt"`
	FunctionType string `json:"functionType"`
	OutputNum    int    `json:"outputNum"`
}

type text2ImgRequest struct {
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
}

// GenerationHandler serves /api/convert and /api/text2img.
type GenerationHandler struct {
	gen      tasks.Generator
	provider shared.ProviderConfig
	limiter  *RateLimiter
	logger   *log.Logger
}

func (h *GenerationHandler) Routes() []string {
	return []string{"/api/convert", "/api/text2img"}
}

func (h *GenerationHandler) Register(r gin.IRouter) {
	api := r.Group("/api", h.limiter.Middleware())
	api.POST("/convert", h.Convert)
	api.POST("/text2img", h.Text2Img)
}

// Convert runs an image-to-image generation.
func (h *GenerationHandler) Convert(c *gin.Context) {
	var body convertRequest
	if err := bindJSON(c, &body); err != nil {
		abortWithError(c, err)
		return
	}
	if body.ImageURL == "" || strings.TrimSpace(body.Prompt) == "" {
		abortWithError(c, fmt.Errorf("%w: imageUrl or prompt", shared.ErrMissingArgument))
		return
	}

	h.logger.Debug("convert request", "image", models.TruncateImageRef(body.ImageURL), "prompt", body.Prompt, "function", body.FunctionType, "n", body.OutputNum)

	req := models.GenerationRequest{
		Mode:      models.ModeEdit,
		ImageURL:  body.ImageURL,
		Prompt:    body.Prompt,
		Function:  body.FunctionType,
		OutputNum: body.OutputNum,
	}
	h.respond(c, req, "Style transfer complete")
}

// Text2Img runs a text-to-image generation.
func (h *GenerationHandler) Text2Img(c *gin.Context) {
	var body text2ImgRequest
	if err := bindJSON(c, &body); err != nil {
		abortWithError(c, err)
		return
	}
	if strings.TrimSpace(body.Prompt) == "" {
		abortWithError(c, fmt.Errorf("%w: prompt", shared.ErrMissingArgument))
		return
	}

	req := models.GenerationRequest{Mode: models.ModeText, Prompt: body.Prompt, Size: body.Size}
	h.respond(c, req, "Image generation complete")
}

func (h *GenerationHandler) respond(c *gin.Context, req models.GenerationRequest, message string) {
	if h.gen == nil {
		abortWithError(c, fmt.Errorf("%w: generator not configured", shared.ErrServiceUnavailable))
		return
	}

	out := h.gen.Run(c.Request.Context(), req, nil)
	if !out.OK() {
		abortWithError(c, out.Err)
		return
	}

	requested := req.OutputNum
	if requested <= 0 {
		requested = h.provider.OutputNum
	}

	resp := gin.H{"success": true, "message": message}
	if requested > 1 {
		resp["imageUrls"] = out.ImageURLs
	} else {
		resp["imageUrl"] = out.ImageURL()
	}
	if out.TaskID != "" {
		resp["taskId"] = out.TaskID
	}
	c.JSON(http.StatusOK, resp)
}

// bindJSON decodes the body, reporting syntax problems as invalid input.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		if StatusFor(err) == http.StatusRequestEntityTooLarge {
			return err
		}
		return fmt.Errorf("%w: request body must be JSON: %v", shared.ErrInvalidInput, err)
	}
	return nil
}
