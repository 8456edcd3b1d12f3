package storage

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/reddomeuk/cityexperts-website-sub001/internal/apierror"
	"github.com/reddomeuk/cityexperts-website-sub001/internal/auth"
)

// multipart のヘッダー等に許容する余白
const multipartOverhead = 1 << 20

// DestroyScheduler はアセット削除を非同期キューに投入します。
type DestroyScheduler interface {
	ScheduleDestroy(ctx context.Context, assetID string) (string, error)
}

// UploadHandler は POST /api/uploads のハンドラーを返します。
// フォーム項目 "file" の画像を保存し、201 で Asset を返します。
func UploadHandler(store AssetStore, maxSize int64, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize+multipartOverhead)

		header, err := c.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				apierror.Respond(c, log, apierror.Validation(apierror.CodeFileTooLarge))
				return
			}
			apierror.Respond(c, log, apierror.Validation(apierror.CodeInvalidUpload))
			return
		}
		if header.Size > maxSize {
			apierror.Respond(c, log, apierror.Validation(apierror.CodeFileTooLarge))
			return
		}

		file, err := header.Open()
		if err != nil {
			apierror.Respond(c, log, apierror.Internal(err))
			return
		}
		defer file.Close()

		asset, err := store.Upload(c.Request.Context(), file)
		if err != nil {
			respondWithError(c, log, err)
			return
		}

		user, _ := auth.CurrentUser(c)
		log.Info().
			Str("asset", asset.ID).
			Str("contentType", asset.ContentType).
			Int64("size", asset.Size).
			Str("user", user).
			Msg("asset uploaded")
		c.JSON(http.StatusCreated, asset)
	}
}

// DeleteHandler は DELETE /api/uploads/:id のハンドラーを返します。
// scheduler が nil の場合はその場で削除し、設定されていればジョブとして投入して 202 を返します。
func DeleteHandler(store AssetStore, scheduler DestroyScheduler, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		user, _ := auth.CurrentUser(c)

		if scheduler == nil {
			if err := store.Destroy(c.Request.Context(), id); err != nil {
				respondWithError(c, log, err)
				return
			}
			log.Info().Str("asset", id).Str("user", user).Msg("asset deleted")
			c.JSON(http.StatusOK, gin.H{"ok": true})
			return
		}

		if _, err := store.Stat(c.Request.Context(), id); err != nil {
			respondWithError(c, log, err)
			return
		}
		jobID, err := scheduler.ScheduleDestroy(c.Request.Context(), id)
		if err != nil {
			apierror.Respond(c, log, apierror.Internal(err))
			return
		}
		log.Info().Str("asset", id).Str("job", jobID).Str("user", user).Msg("asset deletion scheduled")
		c.JSON(http.StatusAccepted, gin.H{"jobId": jobID})
	}
}

func respondWithError(c *gin.Context, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		apierror.Respond(c, log, apierror.NotFound())
	case errors.Is(err, ErrUnsupportedType):
		apierror.Respond(c, log, apierror.Validation(apierror.CodeUnsupportedMedia))
	case errors.Is(err, ErrTooLarge):
		apierror.Respond(c, log, apierror.Validation(apierror.CodeFileTooLarge))
	default:
		apierror.Respond(c, log, apierror.Internal(err))
	}
}
