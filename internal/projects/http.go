package projects

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/reddomeuk/cityexperts-website-sub001/internal/apierror"
	"github.com/reddomeuk/cityexperts-website-sub001/internal/auth"
)

// ListHandler は GET /api/projects のハンドラーを返します。
func ListHandler(store Store, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := store.List(c.Request.Context())
		if err != nil {
			respondWithError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"projects": items})
	}
}

// GetHandler は GET /api/projects/:id のハンドラーを返します。
func GetHandler(store Store, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		project, err := store.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondWithError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, project)
	}
}

// UpdateHandler は PUT /api/projects/:id のハンドラーを返します。
// 認可は前段の auth.Manager.Admit で済ませておく必要があります。
func UpdateHandler(store Store, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch Patch
		if err := c.ShouldBindJSON(&patch); err != nil {
			apierror.Respond(c, log, apierror.Validation(apierror.CodeInvalidJSON))
			return
		}

		id := c.Param("id")
		project, err := store.Update(c.Request.Context(), id, patch.Apply)
		if err != nil {
			respondWithError(c, log, err)
			return
		}

		user, _ := auth.CurrentUser(c)
		log.Info().Str("project", id).Str("user", user).Msg("project updated")
		c.JSON(http.StatusOK, project)
	}
}

func respondWithError(c *gin.Context, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		apierror.Respond(c, log, apierror.NotFound())
	case errors.Is(err, ErrInvalid):
		apierror.Respond(c, log, apierror.Validation(apierror.CodeInvalidProject))
	default:
		apierror.Respond(c, log, apierror.Internal(err))
	}
}
