package middlewares

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/leads_backend/models"
	"github.com/mmdatafocus/leads_backend/utils"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders batch the lookups made while rendering lead lists and the board.
type Loaders struct {
	StageLoader    *dataloader.Loader[int, *models.PipelineStage]
	CampaignLoader *dataloader.Loader[int, *models.Campaign]
	UserLoader     *dataloader.Loader[int, *models.User]
}

// batchReader adapts a models.Get*ByIds function to a dataloader batch function.
type batchReader[T models.Identifier] struct {
	fetch func(ctx context.Context, businessId string, ids []int) ([]T, error)
}

func (r batchReader[T]) load(ctx context.Context, ids []int) []*dataloader.Result[T] {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return handleError[T](len(ids), utils.ErrorUnauthorized)
	}
	results, err := r.fetch(ctx, businessId, ids)
	if err != nil {
		return handleError[T](len(ids), err)
	}
	return generateLoaderResults(results, ids)
}

// NewLoaders instantiates data loaders for the middleware
func NewLoaders() *Loaders {
	stageReader := batchReader[*models.PipelineStage]{fetch: models.GetPipelineStagesByIds}
	campaignReader := batchReader[*models.Campaign]{fetch: models.GetCampaignsByIds}
	userReader := batchReader[*models.User]{fetch: models.GetUsersByIds}

	return &Loaders{
		StageLoader:    dataloader.NewBatchedLoader(stageReader.load, dataloader.WithWait[int, *models.PipelineStage](time.Millisecond)),
		CampaignLoader: dataloader.NewBatchedLoader(campaignReader.load, dataloader.WithWait[int, *models.Campaign](time.Millisecond)),
		UserLoader:     dataloader.NewBatchedLoader(userReader.load, dataloader.WithWait[int, *models.User](time.Millisecond)),
	}
}

func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithValue(c.Request.Context(), loadersKey, NewLoaders())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// For returns the request's loaders, creating a fresh set when the middleware did not run.
func For(ctx context.Context) *Loaders {
	if l, ok := ctx.Value(loadersKey).(*Loaders); ok {
		return l
	}
	return NewLoaders()
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

// generateLoaderResults orders results by the requested ids; a missing id gets ErrorRecordNotFound.
func generateLoaderResults[T models.Identifier](results []T, ids []int) []*dataloader.Result[T] {
	resultMap := make(map[int]T, len(results))
	for _, result := range results {
		resultMap[result.GetId()] = result
	}

	loaderResults := make([]*dataloader.Result[T], 0, len(ids))
	for _, id := range ids {
		data, ok := resultMap[id]
		if !ok {
			loaderResults = append(loaderResults, &dataloader.Result[T]{Error: utils.ErrorRecordNotFound})
			continue
		}
		loaderResults = append(loaderResults, &dataloader.Result[T]{Data: data})
	}
	return loaderResults
}
