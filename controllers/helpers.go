package controllers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/common/errors"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/middleware"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/services"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

func actorFrom(c *gin.Context) services.Actor {
	return services.Actor{UserID: middleware.GetUserID(c), Role: middleware.GetRole(c)}
}

func parsePaginationParams(c *gin.Context) (int, int) {
	page, limit := defaultPage, defaultLimit

	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = l
		if limit > maxLimit {
			limit = maxLimit
		}
	}
	return page, limit
}

func parseID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.Validation(fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}

// parseBool reads an optional boolean query parameter.
func parseBool(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperrors.Validation(fmt.Sprintf("invalid %s", name))
	}
	return &v, nil
}

// bindError turns a gin binding failure into a validation error naming the
// offending fields.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return apperrors.Validation("invalid request: " + strings.Join(fields, ", "))
	}
	return apperrors.Validation("invalid request body")
}
