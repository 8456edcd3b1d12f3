package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/reddomeuk/cityexperts-website-sub001/internal/apierror"
	"github.com/reddomeuk/cityexperts-website-sub001/internal/clock"
	"github.com/reddomeuk/cityexperts-website-sub001/internal/config"
	"github.com/reddomeuk/cityexperts-website-sub001/internal/jobs"
	"github.com/reddomeuk/cityexperts-website-sub001/internal/storage"
)

func setupJobs(cfg *config.Config, assets storage.AssetStore, log zerolog.Logger) (*redis.Client, *jobs.Manager, error) {
	opt, err := redis.ParseURL(cfg.QueueRedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse QUEUE_REDIS_URL: %w", err)
	}

	redisClient := redis.NewClient(opt)
	ttlMinutes := cfg.JobExpireMinutes
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	store := jobs.NewStore(redisClient, time.Duration(ttlMinutes)*time.Minute, clock.Real{})
	manager, err := jobs.NewManager(cfg, assets, store, log)
	if err != nil {
		redisClient.Close()
		return nil, nil, err
	}
	return redisClient, manager, nil
}

func jobStatusHandler(manager *jobs.Manager, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		if strings.TrimSpace(jobID) == "" {
			apierror.Respond(c, log, apierror.NotFound())
			return
		}

		record, err := manager.GetRecord(c.Request.Context(), jobID)
		if err != nil {
			apierror.Respond(c, log, apierror.Internal(err))
			return
		}
		if record == nil {
			apierror.Respond(c, log, apierror.NotFound())
			return
		}

		payload := gin.H{
			"jobId":     record.JobID,
			"operation": record.Operation,
			"assetId":   record.AssetID,
			"status":    record.Status,
			"attempts":  record.Attempts,
			"updatedAt": record.UpdatedAt,
		}
		if record.Error != nil {
			payload["error"] = record.Error
		}

		c.JSON(http.StatusOK, payload)
	}
}
