package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/model"
)

// GetMyProject 查询当前用户负责的项目
func (c *Client) GetMyProject(ctx context.Context) (*model.ProjectInfo, error) {
	var project model.ProjectInfo
	if err := c.call(ctx, "my-project", http.MethodGet, myProjectPath, nil, c.cfg.RequestTimeout, true, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// BatchImport 批量提交日报，单次请求，不重试
func (c *Client) BatchImport(ctx context.Context, req *model.BatchImportRequest) (*model.BatchImportResult, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, err
	}

	var result model.BatchImportResult
	if err := c.call(ctx, "batch-import", http.MethodPost, batchImportPath, req, c.cfg.UploadTimeout, true, &result); err != nil {
		return nil, err
	}
	c.logger.Info("batch import finished",
		zap.Int("total", result.TotalCount),
		zap.Int("success", result.SuccessCount),
		zap.Int("failed", result.FailedCount),
		zap.Int("skipped", result.SkippedCount),
	)
	return &result, nil
}

func (c *Client) validateRequest(req *model.BatchImportRequest) error {
	if req == nil {
		return &APIError{Kind: KindInvalid, Op: "batch-import", Message: "empty request"}
	}
	err := c.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &APIError{Kind: KindInvalid, Op: "batch-import", Err: err}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s(%s)", fe.Namespace(), fe.Tag()))
	}
	return &APIError{Kind: KindInvalid, Op: "batch-import", Message: strings.Join(fields, ", "), Err: err}
}
