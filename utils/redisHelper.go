package utils

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/mmdatafocus/leads_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil || lifespan <= 0 {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

func GetTypeName[T any]() string {
	var v T
	return reflect.TypeOf(v).Name()
}

// store instance under Type:id
func StoreRedis[T any](obj *T, id int) error {
	key := GetTypeName[T]() + ":" + fmt.Sprint(id)
	return config.SetRedisObject(key, obj, GetCacheLifespan())
}

// returns nil if it does not exist
func RetrieveRedis[T any](id int) (*T, error) {
	var result T
	key := GetTypeName[T]() + ":" + fmt.Sprint(id)
	exists, err := config.GetRedisObject(key, &result)
	if err != nil || !exists {
		return nil, err
	}
	return &result, nil
}

func RemoveRedisItem[T any](id int) error {
	return config.RemoveRedisKey(GetTypeName[T]() + ":" + fmt.Sprint(id))
}

func redisListKey[T any](businessId string) string {
	if businessId == "" {
		return GetTypeName[T]() + "List"
	}
	return GetTypeName[T]() + "List:" + businessId
}

// store a per-business list under TypeList:$business_id
func StoreRedisList[T any](list []*T, businessId string) error {
	return config.SetRedisObject(redisListKey[T](businessId), list, GetCacheLifespan())
}

func RetrieveRedisList[T any](businessId string) ([]*T, error) {
	var result []*T
	exists, err := config.GetRedisObject(redisListKey[T](businessId), &result)
	if err != nil || !exists {
		return nil, err
	}
	return result, nil
}

func RemoveRedisList[T any](businessId string) error {
	return config.RemoveRedisKey(redisListKey[T](businessId))
}

// NextSequence returns the next per-business sequence_no for T. Redis keeps the
// running counter; the database max seeds it and is the fallback without redis.
// Callers still rely on the unique index on (business_id, sequence_no).
func NextSequence[T any](ctx context.Context, businessId string) (int64, error) {
	var model T
	cacheKey := fmt.Sprintf("Seq:%s:%s", GetTypeName[T](), businessId)

	seqNo, err := config.IncrRedisCounter(ctx, cacheKey, 0)
	if err != nil {
		return 0, err
	}
	if seqNo > 1 {
		return seqNo, nil
	}

	var dbSeq int64
	if err := config.GetDB().WithContext(ctx).Model(&model).Select("COALESCE(MAX(sequence_no), 0)").
		Where("business_id = ?", businessId).
		Scan(&dbSeq).Error; err != nil {
		return 0, err
	}
	next := dbSeq + 1
	if err := config.SetRedisValue(cacheKey, strconv.FormatInt(next, 10), 0); err != nil {
		return 0, err
	}
	return next, nil
}
