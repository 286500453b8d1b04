package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sigilo/go-sigilo-server/global"
	"github.com/sigilo/go-sigilo-server/repository"
	"github.com/sigilo/go-sigilo-server/types"
)

const (
	counterSucceeded = "succeeded"
	counterFailed    = "failed"
	counterSkipped   = "skipped"
)

// BatchService tracks issuance batches. The batch document is the durable
// record, live counters and the cancellation flag live in redis where the
// queue workers can update them cheaply from any process.
type BatchService struct {
	batchRepo repository.Repository
	env       *types.Environment
}

func NewBatchService(dbSelector repository.DBSelector, env *types.Environment) *BatchService {
	batchRepo, err := dbSelector.ChooseDB(repository.IssuanceBatch)
	if err != nil {
		level.Error(global.Logger).Log("msg", "error while choosing db", "err", err)
		panic(err)
	}
	return &BatchService{batchRepo: batchRepo, env: env}
}

func (bs *BatchService) CreateBatch(templateID string, total int) (*types.IssuanceBatch, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	batch := &types.IssuanceBatch{
		TemplateID: templateID,
		Total:      total,
		Created:    time.Now().UTC().UnixMilli(),
	}
	batch.ID = uuid.NewString()
	if err := bs.batchRepo.Save(ctx, batch.ID, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

func (bs *BatchService) GetBatch(batchID string) (*types.IssuanceBatch, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	resp, err := bs.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	var batch types.IssuanceBatch
	if mErr := repository.MapToObject(resp, &batch); mErr != nil {
		return nil, mErr
	}
	return &batch, nil
}

// Cancel flags the batch so workers skip rows that have not started yet.
// Rows already in flight finish normally.
func (bs *BatchService) Cancel(ctx context.Context, batchID string) error {
	batch, err := bs.GetBatch(batchID)
	if err != nil {
		return err
	}
	if sErr := bs.env.RedisClient.Set(ctx, cancelFlagKey(batchID), "true", time.Hour*24).Err(); sErr != nil {
		return sErr
	}
	batch.Cancelled = true
	sCtx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()
	return bs.batchRepo.Update(sCtx, batch.ID, batch)
}

// IsCancelled checks the redis flag first and falls back to the batch
// document when the flag has expired
func (bs *BatchService) IsCancelled(ctx context.Context, batchID string) bool {
	val, err := bs.env.RedisClient.Get(ctx, cancelFlagKey(batchID)).Result()
	if err == nil {
		return val == "true"
	}
	if err != redis.Nil {
		level.Error(global.Logger).Log("msg", "failed to read cancel flag", "batch", batchID, "err", err)
	}
	batch, gErr := bs.GetBatch(batchID)
	if gErr != nil {
		return false
	}
	return batch.Cancelled
}

func (bs *BatchService) IncrSucceeded(ctx context.Context, batchID string) {
	bs.incr(ctx, batchID, counterSucceeded)
}

func (bs *BatchService) IncrFailed(ctx context.Context, batchID string) {
	bs.incr(ctx, batchID, counterFailed)
}

func (bs *BatchService) IncrSkipped(ctx context.Context, batchID string) {
	bs.incr(ctx, batchID, counterSkipped)
}

// Status combines the durable batch document with the live redis counters
func (bs *BatchService) Status(ctx context.Context, batchID string) (*types.BatchStatus, error) {
	batch, err := bs.GetBatch(batchID)
	if err != nil {
		return nil, err
	}
	status := &types.BatchStatus{
		BatchID:   batch.ID,
		Total:     batch.Total,
		Cancelled: batch.Cancelled,
	}
	counters, hErr := bs.env.RedisClient.HGetAll(ctx, counterKey(batchID)).Result()
	if hErr != nil && hErr != redis.Nil {
		return nil, hErr
	}
	status.Succeeded = parseCounter(counters[counterSucceeded])
	status.Failed = parseCounter(counters[counterFailed])
	status.Skipped = parseCounter(counters[counterSkipped])
	status.Done = status.Succeeded+status.Failed+status.Skipped >= status.Total
	return status, nil
}

func (bs *BatchService) incr(ctx context.Context, batchID, field string) {
	if err := bs.env.RedisClient.HIncrBy(ctx, counterKey(batchID), field, 1).Err(); err != nil {
		level.Error(global.Logger).Log("msg", "failed to increment batch counter", "batch", batchID, "field", field, "err", err)
	}
}

func counterKey(batchID string) string {
	return fmt.Sprintf("batch:%s", batchID)
}

func cancelFlagKey(batchID string) string {
	return fmt.Sprintf("cancel:batch:%s", batchID)
}

func parseCounter(val string) int {
	if val == "" {
		return 0
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return n
}
