package server

import (
	"errors"
	"image"
	"net/http"

	"github.com/cozy-creator/img2img/internal/generator"
	"github.com/cozy-creator/img2img/internal/services/fileuploader"
	"github.com/cozy-creator/img2img/internal/types"
	"github.com/cozy-creator/img2img/internal/utils/imageutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type GenerateResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output *GenerateOutput `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type GenerateOutput struct {
	URLs []string `json:"urls"`
}

func (s *Server) generateImage(c *gin.Context) {
	id := uuid.NewString()
	logger := s.app.Logger.With(zap.String("request_id", id))

	var params generator.Params
	if err := c.ShouldBindJSON(&params); err != nil {
		s.fail(c, id, types.Errorf(types.ErrArgument, "invalid request body: %v", err))
		return
	}

	var (
		img image.Image
		err error
	)
	ctx := c.Request.Context()
	s.pool.SubmitWait(func() {
		img, err = s.app.Generate(ctx, params)
	})
	if err != nil {
		logger.Error("Generation failed", zap.Error(err))
		s.fail(c, id, err)
		return
	}

	content, err := imageutil.Encode(img, "png")
	if err != nil {
		s.fail(c, id, err)
		return
	}

	uploader := s.app.Uploader()
	if uploader == nil {
		s.fail(c, id, types.Errorf(types.ErrConfiguration, "file uploader is not configured"))
		return
	}

	response := make(chan fileuploader.Result, 1)
	uploader.UploadBytes(ctx, content, ".png", response)
	result := <-response
	if result.Err != nil {
		logger.Error("Upload failed", zap.Error(result.Err))
		s.fail(c, id, result.Err)
		return
	}

	logger.Info("Generation completed", zap.String("url", result.URL))
	c.JSON(http.StatusOK, GenerateResponse{
		ID:     id,
		Status: types.StatusCompleted,
		Output: &GenerateOutput{URLs: []string{result.URL}},
	})
}

func (s *Server) fail(c *gin.Context, id string, err error) {
	c.JSON(statusCode(err), GenerateResponse{
		ID:     id,
		Status: types.StatusFailed,
		Error:  err.Error(),
	})
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, types.ErrArgument):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrTransport), errors.Is(err, types.ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrBackend):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
