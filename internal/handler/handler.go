// Package handler holds helpers shared by the per-resource gin handlers.
package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-flow/internal/middleware"
	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/pkg/errors"
	"github.com/jwalitptl/clinic-flow/pkg/httputil"
)

// Actor returns the authenticated staff member. Routes without the session
// middleware get the zero Actor, which every mutating service rejects.
func Actor(c *gin.Context) model.Actor {
	actor, _ := middleware.ActorFrom(c)
	return actor
}

// ParamID parses the named path parameter as a UUID and writes a 400 when
// it is malformed.
func ParamID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}

// Bind decodes the JSON body into obj and writes a 400 on failure
func Bind(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		httputil.RespondWithBindError(c, err)
		return false
	}
	return true
}

// ActiveOnly reads the ?active=true filter used by reference-data lists
func ActiveOnly(c *gin.Context) bool {
	return c.Query("active") == "true"
}
